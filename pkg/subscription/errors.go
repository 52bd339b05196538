package subscription

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound = errors.New("subscription record not found")
	ErrRecordExists   = errors.New("subscription record already exists")

	// ErrUnknownAccount indicates a billing event referenced a customer with
	// no matching record. This is a data-integrity emergency, never silently
	// dropped.
	ErrUnknownAccount = errors.New("billing event references unknown account")

	// ErrUnauthenticated indicates webhook signature or origin verification
	// failed. The payload must not be processed.
	ErrUnauthenticated = errors.New("webhook authentication failed")

	// ErrDuplicateEvent and ErrOutOfOrder are benign: the event was already
	// applied or superseded. Callers treat them as no-op successes.
	ErrDuplicateEvent = errors.New("billing event already applied")
	ErrOutOfOrder     = errors.New("billing event superseded by a later event")

	// ErrPersistenceConflict is returned by stores when the optimistic
	// concurrency check fails; ErrBusy when the bounded retry budget is spent.
	ErrPersistenceConflict = errors.New("subscription record modified concurrently")
	ErrBusy                = errors.New("subscription busy, try again")

	ErrInvalidTransition = errors.New("invalid subscription transition")

	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")

	ErrMissingCustomerRef     = errors.New("subscription has no provider customer reference")
	ErrMissingSubscriptionRef = errors.New("subscription has no provider subscription reference")
	ErrNoCheckoutURL          = errors.New("no checkout URL returned from provider")
	ErrNoPortalURL            = errors.New("no portal URL returned from provider")
)

// InvalidTransitionError reports a message the state machine rejected for the
// record's current (tier, status) pair. It unwraps to ErrInvalidTransition so
// callers can match with errors.Is without inspecting the details.
type InvalidTransitionError struct {
	Tier    Tier
	Status  Status
	Message string // label of the rejected event or command
	Reason  string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid transition: %q not applicable to %s/%s subscription: %s",
			e.Message, e.Tier, e.Status, e.Reason)
	}
	return fmt.Sprintf("invalid transition: %q not applicable to %s/%s subscription",
		e.Message, e.Tier, e.Status)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// IsInvalidTransition reports whether err is a rejected state-machine message.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
