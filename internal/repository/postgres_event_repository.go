package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/EiadSorour/Ticketr/internal/domain"
	"github.com/EiadSorour/Ticketr/pkg/telemetry"
)

// PostgresEventRepository implements EventRepository using PostgreSQL with pgxpool
type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEventRepository creates a new PostgresEventRepository
func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

var _ EventRepository = (*PostgresEventRepository)(nil)

const eventColumns = `
	id, name, description, location, event_date, owner_id,
	silver_capacity, silver_price, gold_capacity, gold_price,
	platinum_capacity, platinum_price, is_cancelled,
	created_at, updated_at
`

// Create persists a new event record
func (r *PostgresEventRepository) Create(ctx context.Context, event *domain.Event) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.event.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", event.ID),
		attribute.String("owner_id", event.OwnerID),
	)

	query := `
		INSERT INTO events (
			id, name, description, location, event_date, owner_id,
			silver_capacity, silver_price, gold_capacity, gold_price,
			platinum_capacity, platinum_price, is_cancelled,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13,
			$14, $15
		)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.Name,
		event.Description,
		event.Location,
		event.EventDate,
		event.OwnerID,
		event.Silver.Capacity,
		event.Silver.UnitPrice,
		event.Gold.Capacity,
		event.Gold.UnitPrice,
		event.Platinum.Capacity,
		event.Platinum.UnitPrice,
		event.IsCancelled,
		event.CreatedAt,
		event.UpdatedAt,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create event: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves an event by its ID
func (r *PostgresEventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.event.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", id))

	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "")
			return nil, domain.ErrEventNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return event, nil
}

// UpdateTiers replaces an event's tier capacities and prices
func (r *PostgresEventRepository) UpdateTiers(ctx context.Context, event *domain.Event) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.event.update_tiers")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", event.ID))

	query := `
		UPDATE events SET
			silver_capacity = $2, silver_price = $3,
			gold_capacity = $4, gold_price = $5,
			platinum_capacity = $6, platinum_price = $7,
			updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		event.ID,
		event.Silver.Capacity,
		event.Silver.UnitPrice,
		event.Gold.Capacity,
		event.Gold.UnitPrice,
		event.Platinum.Capacity,
		event.Platinum.UnitPrice,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update event tiers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Ok, "")
		return domain.ErrEventNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// MarkCancelled flags an event as cancelled
func (r *PostgresEventRepository) MarkCancelled(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.event.mark_cancelled")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", id))

	query := `
		UPDATE events SET is_cancelled = TRUE, updated_at = NOW()
		WHERE id = $1 AND is_cancelled = FALSE
	`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to cancel event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Ok, "")
		return domain.ErrEventNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListByOwner retrieves events created by a user
func (r *PostgresEventRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.event.list_by_owner")
	defer span.End()

	span.SetAttributes(attribute.String("owner_id", ownerID))

	query := `SELECT ` + eventColumns + ` FROM events WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return events, nil
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	event := &domain.Event{}
	err := row.Scan(
		&event.ID,
		&event.Name,
		&event.Description,
		&event.Location,
		&event.EventDate,
		&event.OwnerID,
		&event.Silver.Capacity,
		&event.Silver.UnitPrice,
		&event.Gold.Capacity,
		&event.Gold.UnitPrice,
		&event.Platinum.Capacity,
		&event.Platinum.UnitPrice,
		&event.IsCancelled,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	event.Silver.Name = domain.TierSilver
	event.Gold.Name = domain.TierGold
	event.Platinum.Name = domain.TierPlatinum
	return event, nil
}
