package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists subscription records, one per account. Save performs an
// optimistic compare-and-swap keyed on the record's prior UpdatedAt so that
// concurrent writers (a local command racing a webhook) can never silently
// overwrite each other; losers get ErrPersistenceConflict and retry.
type Store interface {
	// Create inserts a new record. Returns ErrRecordExists if the account
	// already has one.
	Create(ctx context.Context, rec *Record) error

	// Get retrieves the record for an account.
	// Returns ErrRecordNotFound if no record exists.
	Get(ctx context.Context, accountID uuid.UUID) (*Record, error)

	// GetByCustomerRef resolves a provider customer reference to a record.
	// Returns ErrRecordNotFound when the reference is unknown.
	GetByCustomerRef(ctx context.Context, ref string) (*Record, error)

	// Save writes rec if the stored record's UpdatedAt still equals
	// expectedUpdatedAt; otherwise returns ErrPersistenceConflict.
	Save(ctx context.Context, rec *Record, expectedUpdatedAt time.Time) error

	// Delete removes the record as part of full account deletion.
	Delete(ctx context.Context, accountID uuid.UUID) error
}
