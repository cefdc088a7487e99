package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/EiadSorour/Ticketr/internal/domain"
	"github.com/EiadSorour/Ticketr/internal/service"
	"github.com/EiadSorour/Ticketr/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookHandler handles Stripe webhook events. Successful payments finalize
// the purchase for the offered entry named in the PaymentIntent metadata;
// failed or canceled payments release the offer back to the queue.
type WebhookHandler struct {
	purchaseService   service.PurchaseService
	allocationService service.AllocationService
	webhookSecret     string
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(purchaseService service.PurchaseService, allocationService service.AllocationService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{
		purchaseService:   purchaseService,
		allocationService: allocationService,
		webhookSecret:     webhookSecret,
	}
}

// HandleStripeWebhook handles incoming Stripe webhook events
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	log := logger.Get()

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to read webhook body: %v", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		log.Warn("Missing Stripe-Signature header")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing Stripe-Signature header"})
		return
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to verify webhook signature: %v", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	log.Info(fmt.Sprintf("Received Stripe webhook event: %s", event.Type))

	switch event.Type {
	case "payment_intent.succeeded":
		h.handlePaymentIntentSucceeded(c, event)
	case "payment_intent.payment_failed":
		h.handlePaymentIntentFailed(c, event)
	case "payment_intent.canceled":
		h.handlePaymentIntentCanceled(c, event)
	default:
		log.Info(fmt.Sprintf("Unhandled event type: %s", event.Type))
		c.JSON(http.StatusOK, gin.H{"received": true, "message": "Event type not handled"})
	}
}

// handlePaymentIntentSucceeded finalizes the purchase for the entry in the
// PaymentIntent metadata.
func (h *WebhookHandler) handlePaymentIntentSucceeded(c *gin.Context, event stripe.Event) {
	log := logger.Get()

	paymentIntent, ok := h.parsePaymentIntent(c, event)
	if !ok {
		return
	}

	entryID := paymentIntent.Metadata["entry_id"]
	userID := paymentIntent.Metadata["user_id"]

	log.Info(fmt.Sprintf("Payment succeeded: entry_id=%s, user_id=%s, amount=%d %s",
		entryID, userID, paymentIntent.Amount, paymentIntent.Currency))

	if entryID == "" || userID == "" {
		log.Warn(fmt.Sprintf("Payment %s succeeded without entry metadata, nothing to finalize", paymentIntent.ID))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	ticket, err := h.purchaseService.Confirm(c.Request.Context(), entryID, userID, paymentIntent.ID)
	if err != nil {
		// Acknowledge anyway: a lost offer or a replayed event cannot be
		// fixed by a Stripe retry.
		log.Error(fmt.Sprintf("Failed to finalize purchase for entry %s: %v", entryID, err))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	log.Info(fmt.Sprintf("Purchase finalized: ticket_id=%s, entry_id=%s", ticket.ID, entryID))
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// handlePaymentIntentFailed releases the offer so the units return to the pool.
func (h *WebhookHandler) handlePaymentIntentFailed(c *gin.Context, event stripe.Event) {
	log := logger.Get()

	paymentIntent, ok := h.parsePaymentIntent(c, event)
	if !ok {
		return
	}

	failureMessage := "Payment failed"
	if paymentIntent.LastPaymentError != nil && paymentIntent.LastPaymentError.Msg != "" {
		failureMessage = paymentIntent.LastPaymentError.Msg
	}

	log.Warn(fmt.Sprintf("Payment failed: entry_id=%s, reason=%s",
		paymentIntent.Metadata["entry_id"], failureMessage))

	h.releaseOffer(c, paymentIntent)
}

// handlePaymentIntentCanceled releases the offer for an abandoned payment.
func (h *WebhookHandler) handlePaymentIntentCanceled(c *gin.Context, event stripe.Event) {
	log := logger.Get()

	paymentIntent, ok := h.parsePaymentIntent(c, event)
	if !ok {
		return
	}

	log.Info(fmt.Sprintf("Payment canceled: entry_id=%s", paymentIntent.Metadata["entry_id"]))

	h.releaseOffer(c, paymentIntent)
}

func (h *WebhookHandler) releaseOffer(c *gin.Context, paymentIntent stripe.PaymentIntent) {
	log := logger.Get()

	entryID := paymentIntent.Metadata["entry_id"]
	userID := paymentIntent.Metadata["user_id"]

	if entryID != "" && userID != "" {
		if err := h.allocationService.ReleaseOffer(c.Request.Context(), entryID, userID); err != nil {
			// The offer may already have expired or been purchased.
			if domain.IsConflictError(err) || domain.IsNotFoundError(err) {
				log.Info(fmt.Sprintf("Offer for entry %s no longer releasable: %v", entryID, err))
			} else {
				log.Error(fmt.Sprintf("Failed to release offer for entry %s: %v", entryID, err))
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *WebhookHandler) parsePaymentIntent(c *gin.Context, event stripe.Event) (stripe.PaymentIntent, bool) {
	var paymentIntent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
		logger.Get().Error(fmt.Sprintf("Failed to parse %s: %v", event.Type, err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse event data"})
		return paymentIntent, false
	}
	return paymentIntent, true
}
