package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/EiadSorour/Ticketr/internal/domain"
	"github.com/EiadSorour/Ticketr/pkg/telemetry"
)

// PostgresWaitingListRepository implements WaitingListRepository using
// PostgreSQL with pgxpool
type PostgresWaitingListRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresWaitingListRepository creates a new PostgresWaitingListRepository
func NewPostgresWaitingListRepository(pool *pgxpool.Pool) *PostgresWaitingListRepository {
	return &PostgresWaitingListRepository{pool: pool}
}

var _ WaitingListRepository = (*PostgresWaitingListRepository)(nil)

const entryColumns = `
	id, event_id, user_id, silver_qty, gold_qty, platinum_qty,
	status, offer_expires_at, arrival_seq, created_at, updated_at
`

// Create persists a new entry. ArrivalSeq comes back from the store's
// sequence so FIFO order never has ties, even within one clock tick.
// A unique index on active (event_id, user_id) pairs backs the
// one-entry-per-user rule; violations surface as ErrAlreadyInWaitingList.
func (r *PostgresWaitingListRepository) Create(ctx context.Context, entry *domain.WaitingEntry) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitinglist.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("entry_id", entry.ID),
		attribute.String("event_id", entry.EventID),
		attribute.String("user_id", entry.UserID),
	)

	query := `
		INSERT INTO waiting_list (
			id, event_id, user_id, silver_qty, gold_qty, platinum_qty,
			status, offer_expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10
		)
		RETURNING arrival_seq
	`

	err := r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.EventID,
		entry.UserID,
		entry.Requested.Silver,
		entry.Requested.Gold,
		entry.Requested.Platinum,
		entry.Status.String(),
		entry.OfferExpiresAt,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Scan(&entry.ArrivalSeq)

	if err != nil {
		if isUniqueViolation(err) {
			span.SetStatus(codes.Ok, "")
			return domain.ErrAlreadyInWaitingList
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create waiting-list entry: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves an entry by its ID
func (r *PostgresWaitingListRepository) GetByID(ctx context.Context, id string) (*domain.WaitingEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitinglist.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("entry_id", id))

	query := `SELECT ` + entryColumns + ` FROM waiting_list WHERE id = $1`

	entry, err := scanEntry(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "")
			return nil, domain.ErrEntryNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get waiting-list entry: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return entry, nil
}

// GetActiveByUserAndEvent returns the user's non-expired entry for an event
func (r *PostgresWaitingListRepository) GetActiveByUserAndEvent(ctx context.Context, eventID, userID string) (*domain.WaitingEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitinglist.get_active")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("user_id", userID),
	)

	query := `
		SELECT ` + entryColumns + `
		FROM waiting_list
		WHERE event_id = $1 AND user_id = $2 AND status <> 'expired'
		ORDER BY arrival_seq DESC
		LIMIT 1
	`

	entry, err := scanEntry(r.pool.QueryRow(ctx, query, eventID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "")
			return nil, domain.ErrEntryNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get active entry: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return entry, nil
}

// ListWaiting returns waiting entries for an event in arrival order
func (r *PostgresWaitingListRepository) ListWaiting(ctx context.Context, eventID string, limit int) ([]*domain.WaitingEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitinglist.list_waiting")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	query := `
		SELECT ` + entryColumns + `
		FROM waiting_list
		WHERE event_id = $1 AND status = 'waiting'
		ORDER BY arrival_seq ASC
		LIMIT $2
	`

	entries, err := r.queryEntries(ctx, query, eventID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return entries, nil
}

// ListExpiredOffers returns offered entries whose deadline has passed
func (r *PostgresWaitingListRepository) ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]*domain.WaitingEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitinglist.list_expired_offers")
	defer span.End()

	query := `
		SELECT ` + entryColumns + `
		FROM waiting_list
		WHERE status = 'offered' AND offer_expires_at <= $1
		ORDER BY offer_expires_at ASC
		LIMIT $2
	`

	entries, err := r.queryEntries(ctx, query, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return entries, nil
}

// ListLiveOffers returns offered entries whose deadline is in the future
func (r *PostgresWaitingListRepository) ListLiveOffers(ctx context.Context, now time.Time, limit int) ([]*domain.WaitingEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitinglist.list_live_offers")
	defer span.End()

	query := `
		SELECT ` + entryColumns + `
		FROM waiting_list
		WHERE status = 'offered' AND offer_expires_at > $1
		ORDER BY offer_expires_at ASC
		LIMIT $2
	`

	entries, err := r.queryEntries(ctx, query, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return entries, nil
}

// MarkOffered transitions waiting -> offered with a deadline
func (r *PostgresWaitingListRepository) MarkOffered(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitinglist.mark_offered")
	defer span.End()

	span.SetAttributes(attribute.String("entry_id", id))

	query := `
		UPDATE waiting_list
		SET status = 'offered', offer_expires_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'waiting'
	`

	ok, err := r.execTransition(ctx, query, id, expiresAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	span.SetStatus(codes.Ok, "")
	return ok, nil
}

// ExpireOffered transitions offered -> expired
func (r *PostgresWaitingListRepository) ExpireOffered(ctx context.Context, id string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitinglist.expire_offered")
	defer span.End()

	span.SetAttributes(attribute.String("entry_id", id))

	query := `
		UPDATE waiting_list
		SET status = 'expired', offer_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'offered'
	`

	ok, err := r.execTransition(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	span.SetStatus(codes.Ok, "")
	return ok, nil
}

// ExpireWaiting transitions waiting -> expired
func (r *PostgresWaitingListRepository) ExpireWaiting(ctx context.Context, id string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitinglist.expire_waiting")
	defer span.End()

	span.SetAttributes(attribute.String("entry_id", id))

	query := `
		UPDATE waiting_list
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'waiting'
	`

	ok, err := r.execTransition(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	span.SetStatus(codes.Ok, "")
	return ok, nil
}

// ExpireActiveForEvent expires every waiting and offered entry for an event
func (r *PostgresWaitingListRepository) ExpireActiveForEvent(ctx context.Context, eventID string) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitinglist.expire_active_for_event")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	query := `
		UPDATE waiting_list
		SET status = 'expired', offer_expires_at = NULL, updated_at = NOW()
		WHERE event_id = $1 AND status IN ('waiting', 'offered')
	`

	tag, err := r.pool.Exec(ctx, query, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to expire entries for event: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return tag.RowsAffected(), nil
}

// CountAhead returns how many active entries arrived before the given
// sequence number for an event
func (r *PostgresWaitingListRepository) CountAhead(ctx context.Context, eventID string, arrivalSeq int64) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitinglist.count_ahead")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	query := `
		SELECT COUNT(*)
		FROM waiting_list
		WHERE event_id = $1
		  AND status IN ('waiting', 'offered')
		  AND arrival_seq < $2
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query, eventID, arrivalSeq).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to count entries ahead: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return count, nil
}

// SumActiveOffers sums per-tier quantities held by live offers
func (r *PostgresWaitingListRepository) SumActiveOffers(ctx context.Context, eventID string, now time.Time) (domain.TierCounts, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitinglist.sum_active_offers")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	query := `
		SELECT
			COALESCE(SUM(silver_qty), 0),
			COALESCE(SUM(gold_qty), 0),
			COALESCE(SUM(platinum_qty), 0)
		FROM waiting_list
		WHERE event_id = $1
		  AND status = 'offered'
		  AND offer_expires_at > $2
	`

	var counts domain.TierCounts
	err := r.pool.QueryRow(ctx, query, eventID, now).Scan(
		&counts.Silver,
		&counts.Gold,
		&counts.Platinum,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.TierCounts{}, fmt.Errorf("failed to sum active offers: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return counts, nil
}

// HasActiveEntries reports whether any waiting or offered entries remain
func (r *PostgresWaitingListRepository) HasActiveEntries(ctx context.Context, eventID string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitinglist.has_active")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	query := `
		SELECT EXISTS (
			SELECT 1 FROM waiting_list
			WHERE event_id = $1 AND status IN ('waiting', 'offered')
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, eventID).Scan(&exists); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to check active entries: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return exists, nil
}

func (r *PostgresWaitingListRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*domain.WaitingEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query waiting-list entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.WaitingEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan waiting-list entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate waiting-list entries: %w", err)
	}
	return entries, nil
}

func (r *PostgresWaitingListRepository) execTransition(ctx context.Context, query string, args ...interface{}) (bool, error) {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to transition waiting-list entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanEntry(row pgx.Row) (*domain.WaitingEntry, error) {
	entry := &domain.WaitingEntry{}
	var status string
	err := row.Scan(
		&entry.ID,
		&entry.EventID,
		&entry.UserID,
		&entry.Requested.Silver,
		&entry.Requested.Gold,
		&entry.Requested.Platinum,
		&status,
		&entry.OfferExpiresAt,
		&entry.ArrivalSeq,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.Status = domain.EntryStatus(status)
	return entry, nil
}
