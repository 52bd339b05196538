package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Record is the durable subscription state for one account. Exactly one
// record exists per account; tier changes mutate it in place. It is mutated
// only by the state machine, under the per-account writer lock.
type Record struct {
	AccountID               uuid.UUID // immutable owning identity
	ExternalCustomerRef     string    // provider's customer object ref
	ExternalSubscriptionRef string    // provider's subscription object ref (empty for trial)
	Tier                    Tier
	Status                  Status
	PeriodStart             time.Time
	PeriodEnd               *time.Time // nil only for lifetime
	CancelAtPeriodEnd       bool
	PaymentFailureCount     int
	LastEventID             string    // idempotency key of the last applied event
	LastEventAt             time.Time // occurred-at of the last applied event, for ordering
	UpdatedAt               time.Time
}

// NewTrialRecord creates the record every account starts with: a 30-day
// trial window beginning at creation time.
func NewTrialRecord(accountID uuid.UUID, catalog Catalog, now time.Time) *Record {
	plan, _ := catalog.ByTier(TierTrial)
	now = now.UTC()
	return &Record{
		AccountID:   accountID,
		Tier:        TierTrial,
		Status:      StatusActive,
		PeriodStart: now,
		PeriodEnd:   plan.PeriodEnd(now),
		UpdatedAt:   now,
	}
}

// HasPeriod reports whether the record carries bounded period instants.
func (r *Record) HasPeriod() bool {
	return r.PeriodEnd != nil
}

// PeriodElapsed reports whether the billing period has ended at now.
// Always false for lifetime.
func (r *Record) PeriodElapsed(now time.Time) bool {
	return r.PeriodEnd != nil && !now.Before(*r.PeriodEnd)
}

// GraceDeadline returns the instant at which a failed-payment record loses
// access: the period end plus the dunning window. Returns the zero time for
// lifetime, which has no period to lapse.
func (r *Record) GraceDeadline(grace time.Duration) time.Time {
	if r.PeriodEnd == nil {
		return time.Time{}
	}
	return r.PeriodEnd.Add(grace)
}

// Clone returns a copy of the record safe to mutate independently.
func (r *Record) Clone() *Record {
	cp := *r
	if r.PeriodEnd != nil {
		end := *r.PeriodEnd
		cp.PeriodEnd = &end
	}
	return &cp
}

// CheckInvariants validates the structural invariants of the record.
// Used by tests and by stores before persisting.
func (r *Record) CheckInvariants() error {
	if r.AccountID == uuid.Nil {
		return &InvalidTransitionError{Tier: r.Tier, Status: r.Status, Message: "record", Reason: "missing account ID"}
	}
	if !r.Tier.Valid() {
		return &InvalidTransitionError{Tier: r.Tier, Status: r.Status, Message: "record", Reason: "unknown tier"}
	}
	if r.Tier == TierLifetime {
		if r.Status != StatusActive || r.PeriodEnd != nil {
			return &InvalidTransitionError{Tier: r.Tier, Status: r.Status, Message: "record", Reason: "lifetime must be active with no period end"}
		}
		return nil
	}
	if r.PeriodEnd == nil {
		return &InvalidTransitionError{Tier: r.Tier, Status: r.Status, Message: "record", Reason: "bounded tier requires a period end"}
	}
	if !r.PeriodEnd.After(r.PeriodStart) {
		return &InvalidTransitionError{Tier: r.Tier, Status: r.Status, Message: "record", Reason: "period end must follow period start"}
	}
	if r.Status == StatusCanceling && !r.CancelAtPeriodEnd {
		return &InvalidTransitionError{Tier: r.Tier, Status: r.Status, Message: "record", Reason: "canceling requires cancel-at-period-end"}
	}
	return nil
}
