package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HandleWebhook ingests one raw webhook delivery from the payment provider:
// verify, normalize, then apply. Unverifiable payloads are rejected with
// ErrUnauthenticated and logged for audit; callers should return a generic
// failure upstream to avoid leaking verification details.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			s.log.ErrorContext(ctx, "rejected unauthenticated webhook", "error", err)
		}
		return err
	}
	if ev == nil {
		// Event type the engine does not track.
		return nil
	}
	return s.ProcessEvent(ctx, *ev)
}

// ProcessEvent applies a normalized billing event. It is idempotent-safe:
// redelivering the same event ID any number of times is a no-op success, and
// events superseded by a later-applied one are discarded silently. Unknown
// accounts are a data-integrity emergency and are never silently dropped.
func (s *Service) ProcessEvent(ctx context.Context, ev BillingEvent) error {
	if ev.EventID == "" {
		return fmt.Errorf("billing event without event ID")
	}

	if seen, err := s.dedupe.Seen(ctx, ev.EventID); err != nil {
		return fmt.Errorf("dedupe lookup for event %s: %w", ev.EventID, err)
	} else if seen {
		s.log.DebugContext(ctx, "skipping already applied billing event",
			"event_id", ev.EventID, "kind", ev.Kind)
		return nil
	}

	accountID, err := s.resolveAccount(ctx, ev)
	if err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			s.log.ErrorContext(ctx, "billing event for unknown account",
				"event_id", ev.EventID, "kind", ev.Kind, "customer_ref", ev.CustomerRef)
		}
		return err
	}

	rec, err := s.applyLocked(ctx, accountID, ev)
	switch {
	case errors.Is(err, ErrDuplicateEvent):
		s.log.DebugContext(ctx, "duplicate billing event", "event_id", ev.EventID, "account_id", accountID)
		return nil
	case errors.Is(err, ErrOutOfOrder):
		s.log.DebugContext(ctx, "discarding superseded billing event",
			"event_id", ev.EventID, "kind", ev.Kind, "account_id", accountID)
		return nil
	case err != nil:
		return err
	}

	if err := s.dedupe.Mark(ctx, ev.EventID); err != nil {
		// The record already carries the event ID, so redelivery is still
		// caught by the per-record check.
		s.log.WarnContext(ctx, "failed to mark billing event as applied",
			"event_id", ev.EventID, "error", err)
	}

	s.log.InfoContext(ctx, "applied billing event",
		"event_id", ev.EventID,
		"kind", ev.Kind,
		"account_id", accountID,
		"tier", rec.Tier,
		"status", rec.Status,
	)
	return nil
}

// resolveAccount maps an event to the owning account, preferring the
// account ID echoed through checkout custom data over the provider's
// customer reference.
func (s *Service) resolveAccount(ctx context.Context, ev BillingEvent) (uuid.UUID, error) {
	if ev.AccountID != uuid.Nil {
		if _, err := s.store.Get(ctx, ev.AccountID); err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return uuid.Nil, fmt.Errorf("event %s: %w", ev.EventID, ErrUnknownAccount)
			}
			return uuid.Nil, err
		}
		return ev.AccountID, nil
	}

	rec, err := s.store.GetByCustomerRef(ctx, ev.CustomerRef)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return uuid.Nil, fmt.Errorf("event %s: %w", ev.EventID, ErrUnknownAccount)
		}
		return uuid.Nil, err
	}
	return rec.AccountID, nil
}

// applyLocked runs one state-machine transition under the per-account
// writer lock, with an optimistic compare-and-swap write and bounded retry.
// No two transitions for the same account ever execute concurrently within
// this process; the CAS covers writers on other nodes.
func (s *Service) applyLocked(ctx context.Context, accountID uuid.UUID, msg Message) (*Record, error) {
	unlock := s.locks.Lock(accountID)
	defer unlock()

	for attempt := 0; attempt <= s.maxSaveRetries; attempt++ {
		rec, err := s.store.Get(ctx, accountID)
		if err != nil {
			return nil, err
		}

		ev, isEvent := msg.(BillingEvent)
		if isEvent {
			if err := checkEventOrder(rec, ev); err != nil {
				return nil, err
			}
			ev = reclassifyRenewal(rec, ev, s.machine, s.clock.Now())
			msg = ev
		}

		next, intents, err := s.machine.Transition(rec, msg, s.clock.Now())
		if err != nil {
			return nil, err
		}
		if isEvent {
			next.LastEventID = ev.EventID
			next.LastEventAt = ev.OccurredAt
		}

		if err := s.store.Save(ctx, next, rec.UpdatedAt); err != nil {
			if errors.Is(err, ErrPersistenceConflict) {
				continue
			}
			return nil, err
		}

		s.dispatchIntents(ctx, next, intents)
		return next, nil
	}

	return nil, ErrBusy
}

// checkEventOrder enforces per-account event ordering: an event whose
// occurred-at does not follow the last applied one has been superseded.
// A completed checkout is exempt because it always wins over stale events
// for an earlier period.
func checkEventOrder(rec *Record, ev BillingEvent) error {
	if rec.LastEventID == ev.EventID {
		return ErrDuplicateEvent
	}
	if ev.Kind == EventCheckoutCompleted {
		return nil
	}
	if !rec.LastEventAt.IsZero() && !ev.OccurredAt.After(rec.LastEventAt) {
		return ErrOutOfOrder
	}
	return nil
}

// reclassifyRenewal turns a completed-checkout event into a renewal when it
// reports another charge on the subscription the account already holds:
// providers emit the same transaction event for first purchase and for every
// recurring charge. The payment-recovered path (renewal while payment
// failed) flows through here as well.
func reclassifyRenewal(rec *Record, ev BillingEvent, m Machine, now time.Time) BillingEvent {
	if ev.Kind != EventCheckoutCompleted {
		return ev
	}
	if rec.ExternalSubscriptionRef == "" || ev.SubscriptionRef != rec.ExternalSubscriptionRef {
		return ev
	}
	if rec.Tier != ev.NewTier || !rec.Tier.Renews() || rec.CancelAtPeriodEnd {
		return ev
	}
	switch m.EffectiveStatus(rec, now) {
	case StatusActive, StatusPaymentFailed:
		ev.Kind = EventRenewed
	}
	return ev
}
