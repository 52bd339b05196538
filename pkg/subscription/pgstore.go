package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore persists subscription records in Postgres. The schema lives in
// migrations/; account_id is the primary key because each account has
// exactly one record.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const pgRecordColumns = `account_id, external_customer_ref, external_subscription_ref,
	tier, status, period_start, period_end, cancel_at_period_end,
	payment_failure_count, last_event_id, last_event_at, updated_at`

func (s *PgStore) Create(ctx context.Context, rec *Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (`+pgRecordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.AccountID, rec.ExternalCustomerRef, rec.ExternalSubscriptionRef,
		string(rec.Tier), string(rec.Status), rec.PeriodStart, rec.PeriodEnd,
		rec.CancelAtPeriodEnd, rec.PaymentFailureCount,
		nullIfEmpty(rec.LastEventID), nullIfZeroTime(rec.LastEventAt), rec.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 is unique_violation: the account already has a record.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrRecordExists
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, accountID uuid.UUID) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+pgRecordColumns+`
		FROM subscriptions
		WHERE account_id = $1`, accountID)
	return scanRecord(row)
}

func (s *PgStore) GetByCustomerRef(ctx context.Context, ref string) (*Record, error) {
	if ref == "" {
		return nil, ErrRecordNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+pgRecordColumns+`
		FROM subscriptions
		WHERE external_customer_ref = $1`, ref)
	return scanRecord(row)
}

func (s *PgStore) Save(ctx context.Context, rec *Record, expectedUpdatedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE subscriptions SET
			external_customer_ref = $2,
			external_subscription_ref = $3,
			tier = $4,
			status = $5,
			period_start = $6,
			period_end = $7,
			cancel_at_period_end = $8,
			payment_failure_count = $9,
			last_event_id = $10,
			last_event_at = $11,
			updated_at = $12
		WHERE account_id = $1 AND updated_at = $13`,
		rec.AccountID, rec.ExternalCustomerRef, rec.ExternalSubscriptionRef,
		string(rec.Tier), string(rec.Status), rec.PeriodStart, rec.PeriodEnd,
		rec.CancelAtPeriodEnd, rec.PaymentFailureCount,
		nullIfEmpty(rec.LastEventID), nullIfZeroTime(rec.LastEventAt), rec.UpdatedAt,
		expectedUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a lost CAS race from a missing record.
		if _, err := s.Get(ctx, rec.AccountID); errors.Is(err, ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return ErrPersistenceConflict
	}
	return nil
}

func (s *PgStore) Delete(ctx context.Context, accountID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM subscriptions WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec         Record
		tier        string
		status      string
		lastEventID *string
		lastEventAt *time.Time
	)
	err := row.Scan(
		&rec.AccountID, &rec.ExternalCustomerRef, &rec.ExternalSubscriptionRef,
		&tier, &status, &rec.PeriodStart, &rec.PeriodEnd, &rec.CancelAtPeriodEnd,
		&rec.PaymentFailureCount, &lastEventID, &lastEventAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	rec.Tier = Tier(tier)
	rec.Status = Status(status)
	if lastEventID != nil {
		rec.LastEventID = *lastEventID
	}
	if lastEventAt != nil {
		rec.LastEventAt = *lastEventAt
	}
	return &rec, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
