package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/EiadSorour/Ticketr/internal/domain"
	"github.com/EiadSorour/Ticketr/pkg/kafka"
)

// EventPublisher defines the interface for publishing waiting-list
// lifecycle events
type EventPublisher interface {
	// PublishJoined publishes a waitlist joined event
	PublishJoined(ctx context.Context, entry *domain.WaitingEntry) error

	// PublishOffered publishes an offer made event
	PublishOffered(ctx context.Context, entry *domain.WaitingEntry) error

	// PublishOfferExpired publishes an offer expired event
	PublishOfferExpired(ctx context.Context, entry *domain.WaitingEntry) error

	// PublishEvicted publishes an unsatisfiable-entry eviction event
	PublishEvicted(ctx context.Context, entry *domain.WaitingEntry) error

	// PublishPurchased publishes a purchase finalized event
	PublishPurchased(ctx context.Context, entry *domain.WaitingEntry, ticketID string) error

	// PublishEventCancelled publishes an event cancellation
	PublishEventCancelled(ctx context.Context, eventID string) error

	// Close closes the publisher
	Close() error
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    *kafka.Producer
	topic       string
	serviceName string
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "waitlist-events"
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ticketr-waitlist"
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "ticketr-waitlist-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaEventPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// PublishJoined publishes a waitlist joined event
func (p *KafkaEventPublisher) PublishJoined(ctx context.Context, entry *domain.WaitingEntry) error {
	return p.publish(ctx, domain.NewWaitlistEvent(domain.WaitlistEventJoined, entry, uuid.New().String()))
}

// PublishOffered publishes an offer made event
func (p *KafkaEventPublisher) PublishOffered(ctx context.Context, entry *domain.WaitingEntry) error {
	return p.publish(ctx, domain.NewWaitlistEvent(domain.WaitlistEventOffered, entry, uuid.New().String()))
}

// PublishOfferExpired publishes an offer expired event
func (p *KafkaEventPublisher) PublishOfferExpired(ctx context.Context, entry *domain.WaitingEntry) error {
	return p.publish(ctx, domain.NewWaitlistEvent(domain.WaitlistEventExpired, entry, uuid.New().String()))
}

// PublishEvicted publishes an unsatisfiable-entry eviction event
func (p *KafkaEventPublisher) PublishEvicted(ctx context.Context, entry *domain.WaitingEntry) error {
	return p.publish(ctx, domain.NewWaitlistEvent(domain.WaitlistEventEvicted, entry, uuid.New().String()))
}

// PublishPurchased publishes a purchase finalized event
func (p *KafkaEventPublisher) PublishPurchased(ctx context.Context, entry *domain.WaitingEntry, ticketID string) error {
	event := domain.NewWaitlistEvent(domain.WaitlistEventPurchased, entry, uuid.New().String())
	event.TicketID = ticketID
	return p.publish(ctx, event)
}

// PublishEventCancelled publishes an event cancellation
func (p *KafkaEventPublisher) PublishEventCancelled(ctx context.Context, eventID string) error {
	event := domain.NewWaitlistEvent(domain.EventCancelledEvent, nil, uuid.New().String())
	event.EventID = eventID
	return p.publish(ctx, event)
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

func (p *KafkaEventPublisher) publish(ctx context.Context, event *domain.WaitlistEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := map[string]string{
		"event_type":   string(event.Type),
		"event_id":     event.ID,
		"source":       p.serviceName,
		"content_type": "application/json",
	}

	msg := &kafka.Message{
		Topic:     p.topic,
		Key:       []byte(event.Key()),
		Value:     value,
		Headers:   headers,
		Timestamp: time.Now(),
	}

	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	return nil
}

// NoOpEventPublisher is a no-op implementation of EventPublisher, used
// when Kafka is disabled and in tests
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

func (p *NoOpEventPublisher) PublishJoined(ctx context.Context, entry *domain.WaitingEntry) error {
	return nil
}

func (p *NoOpEventPublisher) PublishOffered(ctx context.Context, entry *domain.WaitingEntry) error {
	return nil
}

func (p *NoOpEventPublisher) PublishOfferExpired(ctx context.Context, entry *domain.WaitingEntry) error {
	return nil
}

func (p *NoOpEventPublisher) PublishEvicted(ctx context.Context, entry *domain.WaitingEntry) error {
	return nil
}

func (p *NoOpEventPublisher) PublishPurchased(ctx context.Context, entry *domain.WaitingEntry, ticketID string) error {
	return nil
}

func (p *NoOpEventPublisher) PublishEventCancelled(ctx context.Context, eventID string) error {
	return nil
}

func (p *NoOpEventPublisher) Close() error {
	return nil
}
