package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/EiadSorour/Ticketr/pkg/telemetry"
)

var (
	// Waiting-list counters
	QueueJoined    *telemetry.Counter
	OffersMade     *telemetry.Counter
	OffersExpired  *telemetry.Counter
	OffersReleased *telemetry.Counter
	EntriesEvicted *telemetry.Counter

	// Purchase counters
	PurchasesFinalized *telemetry.Counter
	PurchasesFailed    *telemetry.Counter

	// Histograms
	AllocationScanDuration *telemetry.Histogram
	OfferHoldTime          *telemetry.Histogram

	// Gauges
	LiveOffers *telemetry.UpDownCounter
	QueueDepth *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all waiting-list metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	QueueJoined, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "waitlist_joins_total",
		Description: "Total number of users joined a waiting list",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	OffersMade, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "waitlist_offers_total",
		Description: "Total number of ticket offers made",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	OffersExpired, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "waitlist_offer_expirations_total",
		Description: "Total number of offers that lapsed unredeemed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	OffersReleased, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "waitlist_offer_releases_total",
		Description: "Total number of offers released by their holder",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	EntriesEvicted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "waitlist_evictions_total",
		Description: "Total number of entries evicted as unsatisfiable",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	PurchasesFinalized, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "waitlist_purchases_total",
		Description: "Total number of purchases finalized",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	PurchasesFailed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "waitlist_purchase_failures_total",
		Description: "Total number of failed purchase attempts",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	AllocationScanDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "waitlist_allocation_scan_duration_seconds",
		Description: "Duration of one allocation scan over an event's queue",
		Unit:        "s",
	}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5})
	if err != nil {
		return err
	}

	OfferHoldTime, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "waitlist_offer_hold_time_seconds",
		Description: "Time from offer to purchase or expiry",
		Unit:        "s",
	}, []float64{10, 30, 60, 300, 600, 900, 1800})
	if err != nil {
		return err
	}

	LiveOffers, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "waitlist_live_offers",
		Description: "Current number of live offers",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	QueueDepth, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "waitlist_queue_depth",
		Description: "Current number of waiting entries",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordJoin records a queue join
func RecordJoin(ctx context.Context, eventID string) {
	if QueueJoined != nil {
		QueueJoined.Inc(ctx, attribute.String("event_id", eventID))
	}
	if QueueDepth != nil {
		QueueDepth.Inc(ctx)
	}
}

// RecordOffer records an offer grant
func RecordOffer(ctx context.Context, eventID string) {
	if OffersMade != nil {
		OffersMade.Inc(ctx, attribute.String("event_id", eventID))
	}
	if LiveOffers != nil {
		LiveOffers.Inc(ctx)
	}
	if QueueDepth != nil {
		QueueDepth.Dec(ctx)
	}
}

// RecordOfferExpired records an offer lapsing, released tells a
// voluntary release apart from a timeout
func RecordOfferExpired(ctx context.Context, eventID string, released bool, holdSeconds float64) {
	if released {
		if OffersReleased != nil {
			OffersReleased.Inc(ctx, attribute.String("event_id", eventID))
		}
	} else if OffersExpired != nil {
		OffersExpired.Inc(ctx, attribute.String("event_id", eventID))
	}
	if LiveOffers != nil {
		LiveOffers.Dec(ctx)
	}
	if OfferHoldTime != nil && holdSeconds > 0 {
		OfferHoldTime.Record(ctx, holdSeconds, attribute.String("event_id", eventID))
	}
}

// RecordEviction records an unsatisfiable-entry eviction
func RecordEviction(ctx context.Context, eventID string) {
	if EntriesEvicted != nil {
		EntriesEvicted.Inc(ctx, attribute.String("event_id", eventID))
	}
	if QueueDepth != nil {
		QueueDepth.Dec(ctx)
	}
}

// RecordPurchase records a finalized purchase
func RecordPurchase(ctx context.Context, eventID string, holdSeconds float64) {
	if PurchasesFinalized != nil {
		PurchasesFinalized.Inc(ctx, attribute.String("event_id", eventID))
	}
	if LiveOffers != nil {
		LiveOffers.Dec(ctx)
	}
	if OfferHoldTime != nil && holdSeconds > 0 {
		OfferHoldTime.Record(ctx, holdSeconds, attribute.String("event_id", eventID))
	}
}

// RecordPurchaseFailure records a failed purchase attempt
func RecordPurchaseFailure(ctx context.Context, eventID, reason string) {
	if PurchasesFailed != nil {
		PurchasesFailed.Inc(ctx,
			attribute.String("event_id", eventID),
			attribute.String("reason", reason),
		)
	}
}

// RecordScan records the duration of one allocation scan
func RecordScan(ctx context.Context, eventID string, durationSeconds float64) {
	if AllocationScanDuration != nil {
		AllocationScanDuration.Record(ctx, durationSeconds, attribute.String("event_id", eventID))
	}
}
