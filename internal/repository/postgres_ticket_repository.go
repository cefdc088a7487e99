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

// PostgresTicketRepository implements TicketRepository using PostgreSQL
// with pgxpool
type PostgresTicketRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketRepository creates a new PostgresTicketRepository
func NewPostgresTicketRepository(pool *pgxpool.Pool) *PostgresTicketRepository {
	return &PostgresTicketRepository{pool: pool}
}

var _ TicketRepository = (*PostgresTicketRepository)(nil)

const ticketColumns = `
	id, event_id, user_id, silver_qty, gold_qty, platinum_qty,
	status, purchased_at, payment_ref, amount, created_at, updated_at
`

// GetByID retrieves a ticket by its ID
func (r *PostgresTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("ticket_id", id))

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "")
			return nil, domain.ErrTicketNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return ticket, nil
}

// ListByUser retrieves a user's tickets, newest first
func (r *PostgresTicketRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.list_by_user")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id = $1 ORDER BY purchased_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return tickets, nil
}

// SumSold sums per-tier quantities on valid and used tickets. This is
// the sold side of the availability ledger.
func (r *PostgresTicketRepository) SumSold(ctx context.Context, eventID string) (domain.TierCounts, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.sum_sold")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	query := `
		SELECT
			COALESCE(SUM(silver_qty), 0),
			COALESCE(SUM(gold_qty), 0),
			COALESCE(SUM(platinum_qty), 0)
		FROM tickets
		WHERE event_id = $1 AND status IN ('valid', 'used')
	`

	var counts domain.TierCounts
	err := r.pool.QueryRow(ctx, query, eventID).Scan(
		&counts.Silver,
		&counts.Gold,
		&counts.Platinum,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.TierCounts{}, fmt.Errorf("failed to sum sold tickets: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return counts, nil
}

// HasSold reports whether the event has any valid or used tickets
func (r *PostgresTicketRepository) HasSold(ctx context.Context, eventID string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.has_sold")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	query := `
		SELECT EXISTS (
			SELECT 1 FROM tickets
			WHERE event_id = $1 AND status IN ('valid', 'used')
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, eventID).Scan(&exists); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to check sold tickets: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return exists, nil
}

// UpdateStatus transitions a ticket's status with a guard on the
// expected current status
func (r *PostgresTicketRepository) UpdateStatus(ctx context.Context, id string, from, to domain.TicketStatus) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.update_status")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_id", id),
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	)

	query := `
		UPDATE tickets SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	tag, err := r.pool.Exec(ctx, query, id, from.String(), to.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to update ticket status: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return tag.RowsAffected() > 0, nil
}

// FinalizePurchase inserts the ticket and transitions its waiting entry
// offered -> purchased in one transaction. The UPDATE's status and
// deadline guards are the oversell gate: if the offer lapsed, was
// already used, or its deadline passed while the caller waited on the
// event lock, zero rows match and the whole transaction rolls back.
// The deadline predicate matters because availability stops counting an
// offer the instant its deadline passes; committing after that would
// let sold plus live offers exceed capacity.
func (r *PostgresTicketRepository) FinalizePurchase(ctx context.Context, ticket *domain.Ticket, entryID string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.finalize_purchase")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_id", ticket.ID),
		attribute.String("entry_id", entryID),
		attribute.String("event_id", ticket.EventID),
	)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	updateQuery := `
		UPDATE waiting_list
		SET status = 'purchased', offer_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'offered' AND offer_expires_at > NOW()
	`

	tag, err := tx.Exec(ctx, updateQuery, entryID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to transition entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Ok, "")
		return domain.ErrOfferNotActive
	}

	insertQuery := `
		INSERT INTO tickets (
			id, event_id, user_id, silver_qty, gold_qty, platinum_qty,
			status, purchased_at, payment_ref, amount, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12
		)
	`

	_, err = tx.Exec(ctx, insertQuery,
		ticket.ID,
		ticket.EventID,
		ticket.UserID,
		ticket.Counts.Silver,
		ticket.Counts.Gold,
		ticket.Counts.Platinum,
		ticket.Status.String(),
		ticket.PurchasedAt,
		ticket.PaymentRef,
		ticket.Amount,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to insert ticket: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to commit purchase: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	ticket := &domain.Ticket{}
	var status string
	err := row.Scan(
		&ticket.ID,
		&ticket.EventID,
		&ticket.UserID,
		&ticket.Counts.Silver,
		&ticket.Counts.Gold,
		&ticket.Counts.Platinum,
		&status,
		&ticket.PurchasedAt,
		&ticket.PaymentRef,
		&ticket.Amount,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ticket.Status = domain.TicketStatus(status)
	return ticket, nil
}
