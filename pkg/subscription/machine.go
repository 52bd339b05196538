package subscription

import (
	"time"
)

// DefaultGracePeriod is the dunning window after a period lapses during
// which a payment-failed subscription keeps access while the provider
// retries the charge.
const DefaultGracePeriod = 14 * 24 * time.Hour

// Machine holds the pure decision logic of the subscription lifecycle.
// It performs no I/O: callers pass the current record, a message, and the
// current instant, and receive the next record plus side-effect intents.
type Machine struct {
	catalog Catalog
	grace   time.Duration
}

// NewMachine creates a Machine over the given catalog. A non-positive grace
// duration falls back to DefaultGracePeriod.
func NewMachine(catalog Catalog, grace time.Duration) Machine {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return Machine{catalog: catalog, grace: grace}
}

// GracePeriod returns the configured dunning window.
func (m Machine) GracePeriod() time.Duration { return m.grace }

// EffectiveStatus re-derives the status at now, applying the time-driven
// transitions lazily: the stored status may be stale because expiry is a
// declarative deadline, not a background timer.
func (m Machine) EffectiveStatus(r *Record, now time.Time) Status {
	if r.Tier == TierLifetime {
		return StatusActive
	}

	switch r.Status {
	case StatusExpired:
		return StatusExpired
	case StatusCanceling:
		if r.PeriodElapsed(now) {
			return StatusExpired
		}
		return StatusCanceling
	case StatusPaymentFailed:
		if !now.Before(r.GraceDeadline(m.grace)) {
			return StatusExpired
		}
		return StatusPaymentFailed
	case StatusActive:
		if !r.Tier.Renews() {
			// Trial never renews: access ends exactly at period end.
			if r.PeriodElapsed(now) {
				return StatusExpired
			}
			return StatusActive
		}
		// A renewing tier past its period without a renewal event is kept
		// in the grace window; the missing renewal either arrives late or
		// the provider reports a failure/cancellation.
		if !now.Before(r.GraceDeadline(m.grace)) {
			return StatusExpired
		}
		return StatusActive
	default:
		return StatusExpired
	}
}

// Transition applies a billing event or local command to the record and
// returns the next record plus zero or more side-effect intents. The input
// record is never mutated. Rejected messages return an error wrapping
// ErrInvalidTransition and leave the stored record untouched.
func (m Machine) Transition(r *Record, msg Message, now time.Time) (*Record, []Intent, error) {
	now = now.UTC()
	next := r.Clone()

	// Materialize any pending time-driven transition first so message
	// handling sees the true state (e.g. Reactivate after the period
	// elapsed must observe Expired, not Canceling).
	var intents []Intent
	if eff := m.EffectiveStatus(next, now); eff != next.Status {
		next.Status = eff
		if eff == StatusExpired {
			intents = append(intents, Intent{Kind: IntentNotifyExpired, At: now})
		}
	}

	switch msg := msg.(type) {
	case BillingEvent:
		return m.applyEvent(next, msg, now, intents)
	case Command:
		return m.applyCommand(next, msg, now, intents)
	default:
		return r, nil, &InvalidTransitionError{Tier: r.Tier, Status: r.Status,
			Message: msg.messageLabel(), Reason: "unknown message type"}
	}
}

func (m Machine) applyEvent(next *Record, ev BillingEvent, now time.Time, intents []Intent) (*Record, []Intent, error) {
	reject := func(reason string) (*Record, []Intent, error) {
		return nil, nil, &InvalidTransitionError{Tier: next.Tier, Status: next.Status,
			Message: string(ev.Kind), Reason: reason}
	}

	switch ev.Kind {
	case EventCheckoutCompleted:
		// A completed checkout always wins, including re-entry from
		// Expired and over a stale PaymentFailed for an earlier period.
		plan, ok := m.catalog.ByTier(ev.NewTier)
		if !ok || ev.NewTier == TierTrial {
			return reject("checkout requires a purchasable tier")
		}
		next.Tier = plan.Tier
		next.Status = StatusActive
		next.PeriodStart = now
		next.PeriodEnd = plan.PeriodEnd(now)
		next.CancelAtPeriodEnd = false
		next.PaymentFailureCount = 0
		if ev.CustomerRef != "" {
			next.ExternalCustomerRef = ev.CustomerRef
		}
		if ev.SubscriptionRef != "" {
			next.ExternalSubscriptionRef = ev.SubscriptionRef
		}
		if next.PeriodEnd != nil {
			intents = append(intents, Intent{Kind: IntentScheduleExpiryCheck, At: *next.PeriodEnd})
		}

	case EventRenewed:
		if !next.Tier.Renews() {
			return reject("tier does not renew")
		}
		if next.CancelAtPeriodEnd {
			return reject("renewal reported for a subscription scheduled to cancel")
		}
		if next.Status != StatusActive && next.Status != StatusPaymentFailed {
			return reject("renewal requires an active or payment-failed subscription")
		}
		plan, _ := m.catalog.ByTier(next.Tier)
		// The new period starts where the old one ended, keeping billing
		// anchored to the original cycle even when the event arrives late.
		next.PeriodStart = *next.PeriodEnd
		next.PeriodEnd = plan.PeriodEnd(next.PeriodStart)
		next.Status = StatusActive
		next.PaymentFailureCount = 0
		if next.PeriodEnd != nil {
			intents = append(intents, Intent{Kind: IntentScheduleExpiryCheck, At: *next.PeriodEnd})
		}

	case EventUpdated:
		plan, ok := m.catalog.ByTier(ev.NewTier)
		if !ok || ev.NewTier == TierTrial {
			return reject("update requires a purchasable tier")
		}
		if next.Status != StatusActive && next.Status != StatusCanceling {
			return reject("tier change requires an active or canceling subscription")
		}
		next.Tier = plan.Tier
		if plan.Tier == TierLifetime {
			next.PeriodEnd = nil
			next.Status = StatusActive
			next.CancelAtPeriodEnd = false
			next.PaymentFailureCount = 0
			break
		}
		// The upstream processor is the source of truth for proration, so
		// the current period boundaries are kept as-is.
		if next.CancelAtPeriodEnd {
			next.Status = StatusCanceling
		} else {
			next.Status = StatusActive
		}

	case EventPaymentFailed:
		if next.Tier == TierLifetime {
			return reject("lifetime has no renewal to fail")
		}
		if next.Status != StatusActive && next.Status != StatusPaymentFailed {
			return reject("payment failure requires an active subscription")
		}
		next.Status = StatusPaymentFailed
		next.PaymentFailureCount++
		intents = append(intents,
			Intent{Kind: IntentNotifyPaymentFailed, At: now},
			Intent{Kind: IntentScheduleExpiryCheck, At: next.GraceDeadline(m.grace)},
		)

	case EventCanceledUpstream:
		if next.Tier == TierLifetime {
			return reject("lifetime has no upstream subscription to cancel")
		}
		if next.Status == StatusExpired {
			// Already expired: replaying the upstream deletion is a no-op.
			next.UpdatedAt = now
			return next, intents, nil
		}
		// The provider deleted the subscription object, e.g. after the
		// retry budget ran out. Hard expiry, bypassing grace.
		next.Status = StatusExpired
		next.CancelAtPeriodEnd = true
		intents = append(intents, Intent{Kind: IntentNotifyExpired, At: now})

	default:
		return reject("unknown event kind")
	}

	next.UpdatedAt = now
	return next, intents, nil
}

func (m Machine) applyCommand(next *Record, cmd Command, now time.Time, intents []Intent) (*Record, []Intent, error) {
	reject := func(reason string) (*Record, []Intent, error) {
		return nil, nil, &InvalidTransitionError{Tier: next.Tier, Status: next.Status,
			Message: string(cmd.Kind), Reason: reason}
	}

	switch cmd.Kind {
	case CommandCancel:
		if next.Tier == TierLifetime {
			return reject("lifetime access cannot be canceled")
		}
		if !next.Tier.Renews() {
			return reject("trial has no renewal to cancel")
		}
		if next.Status == StatusCanceling {
			// Repeating the command is harmless.
			return next, intents, nil
		}
		if next.Status != StatusActive {
			return reject("cancel requires an active subscription")
		}
		next.CancelAtPeriodEnd = true
		next.Status = StatusCanceling
		next.UpdatedAt = now
		intents = append(intents,
			Intent{Kind: IntentScheduleExpiryCheck, At: *next.PeriodEnd},
			Intent{Kind: IntentMirrorCancel, At: now},
		)
		return next, intents, nil

	case CommandReactivate:
		if next.Status == StatusActive && !next.CancelAtPeriodEnd {
			// Nothing to undo.
			return next, intents, nil
		}
		if next.Status != StatusCanceling {
			if next.Status == StatusExpired {
				return reject("period already elapsed, a new checkout is required")
			}
			return reject("reactivate requires a canceling subscription")
		}
		next.CancelAtPeriodEnd = false
		next.Status = StatusActive
		next.UpdatedAt = now
		intents = append(intents, Intent{Kind: IntentMirrorReactivate, At: now})
		return next, intents, nil

	default:
		return reject("unknown command")
	}
}
