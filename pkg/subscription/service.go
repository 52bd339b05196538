package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lessonkit/lessonkit/pkg/clock"
)

// IntentHandler receives non-mirroring side-effect intents (expiry
// scheduling, user notifications) emitted by the state machine. The default
// handler only logs them; notification delivery lives outside this engine.
type IntentHandler func(ctx context.Context, rec *Record, intent Intent)

// Service is the application-facing surface of the subscription engine.
// All mutations for one account are serialized through a per-account writer
// lock and written with an optimistic compare-and-swap, so a local command
// and an upstream webhook can race safely.
type Service struct {
	store    Store
	provider BillingProvider
	catalog  Catalog
	machine  Machine
	clock    clock.Clock
	dedupe   DedupeIndex
	locks    *keyLock
	log      *slog.Logger

	maxSaveRetries int
	grace          time.Duration
	onIntent       IntentHandler
}

// CheckoutOptions carries the redirect targets for a hosted checkout.
type CheckoutOptions struct {
	Email      string
	SuccessURL string
	CancelURL  string
}

// NewService creates the subscription service. Panics if required
// dependencies are nil to fail fast during initialization.
func NewService(store Store, provider BillingProvider, catalog Catalog, opts ...Option) *Service {
	if store == nil {
		panic("subscription: Store is required")
	}
	if provider == nil {
		panic("subscription: BillingProvider is required")
	}

	s := &Service{
		store:          store,
		provider:       provider,
		catalog:        catalog,
		clock:          clock.System(),
		dedupe:         NewMemDedupeIndex(),
		locks:          newKeyLock(),
		log:            slog.Default(),
		maxSaveRetries: 3,
		grace:          DefaultGracePeriod,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.machine = NewMachine(catalog, s.grace)
	return s
}

// Machine exposes the pure decision logic, mainly for tests and for
// read-only consumers that already hold a record.
func (s *Service) Machine() Machine { return s.machine }

// CreateTrial creates the record every new account starts with: an active
// 30-day trial. Called once during account creation.
func (s *Service) CreateTrial(ctx context.Context, accountID uuid.UUID) (*Record, error) {
	rec := NewTrialRecord(accountID, s.catalog, s.clock.Now())
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "created trial subscription",
		"account_id", accountID, "period_end", rec.PeriodEnd)
	return rec, nil
}

// GetRecord returns the stored record for an account.
func (s *Service) GetRecord(ctx context.Context, accountID uuid.UUID) (*Record, error) {
	return s.store.Get(ctx, accountID)
}

// GetAccessDecision evaluates the capability flags for an account at the
// current instant. Called before every protected mutation and by the UI.
func (s *Service) GetAccessDecision(ctx context.Context, accountID uuid.UUID) (AccessDecision, error) {
	rec, err := s.store.Get(ctx, accountID)
	if err != nil {
		return AccessDecision{}, err
	}
	return s.machine.Evaluate(rec, s.clock.Now()), nil
}

// Cancel schedules the subscription to end at the current period boundary.
// The period itself is untouched: access continues until it lapses.
func (s *Service) Cancel(ctx context.Context, accountID uuid.UUID) (*Record, error) {
	return s.applyLocked(ctx, accountID, Command{Kind: CommandCancel})
}

// Reactivate withdraws a pending cancellation before the period ends.
// Once the period has elapsed this fails with ErrInvalidTransition and the
// user must go through checkout again.
func (s *Service) Reactivate(ctx context.Context, accountID uuid.UUID) (*Record, error) {
	return s.applyLocked(ctx, accountID, Command{Kind: CommandReactivate})
}

// RequestUpgrade opens a provider-hosted checkout session for the target
// tier. The actual tier change lands later via webhook.
func (s *Service) RequestUpgrade(ctx context.Context, accountID uuid.UUID, target Tier, opts CheckoutOptions) (*CheckoutLink, error) {
	plan, ok := s.catalog.ByTier(target)
	if !ok || target == TierTrial {
		return nil, ErrPlanNotFound
	}

	rec, err := s.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if rec.Tier == TierLifetime {
		return nil, &InvalidTransitionError{Tier: rec.Tier, Status: rec.Status,
			Message: "upgrade", Reason: "lifetime is already the highest tier"}
	}

	return s.provider.CreateCheckoutLink(ctx, CheckoutRequest{
		PriceRef:   plan.PriceRef,
		AccountID:  accountID.String(),
		Email:      opts.Email,
		SuccessURL: opts.SuccessURL,
		CancelURL:  opts.CancelURL,
	})
}

// RequestManagementLink returns a provider-hosted portal link where the
// user manages payment methods and plan changes.
func (s *Service) RequestManagementLink(ctx context.Context, accountID uuid.UUID) (*PortalLink, error) {
	rec, err := s.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if rec.ExternalCustomerRef == "" {
		return nil, ErrMissingCustomerRef
	}
	return s.provider.GetCustomerPortalLink(ctx, rec)
}

// DeleteAccountData removes the subscription record as part of full account
// deletion. Records are never deleted while the account exists.
func (s *Service) DeleteAccountData(ctx context.Context, accountID uuid.UUID) error {
	if err := s.store.Delete(ctx, accountID); err != nil && !errors.Is(err, ErrRecordNotFound) {
		return fmt.Errorf("delete subscription for account %s: %w", accountID, err)
	}
	return nil
}

// dispatchIntents performs the side effects a transition requested.
// Mirroring intents call the provider so upstream billing reflects local
// commands; everything else goes to the configured intent handler. Mirror
// failures are logged, not fatal: the webhook stream is authoritative and
// will reconcile state either way.
func (s *Service) dispatchIntents(ctx context.Context, rec *Record, intents []Intent) {
	for _, intent := range intents {
		switch intent.Kind {
		case IntentMirrorCancel:
			if rec.ExternalSubscriptionRef == "" {
				s.log.WarnContext(ctx, "cannot mirror cancel upstream without subscription ref",
					"account_id", rec.AccountID)
				continue
			}
			if err := s.provider.ScheduleCancel(ctx, rec.ExternalSubscriptionRef); err != nil {
				s.log.ErrorContext(ctx, "failed to mirror cancel upstream",
					"account_id", rec.AccountID, "error", err)
			}
		case IntentMirrorReactivate:
			if rec.ExternalSubscriptionRef == "" {
				s.log.WarnContext(ctx, "cannot mirror reactivate upstream without subscription ref",
					"account_id", rec.AccountID)
				continue
			}
			if err := s.provider.UndoScheduledCancel(ctx, rec.ExternalSubscriptionRef); err != nil {
				s.log.ErrorContext(ctx, "failed to mirror reactivate upstream",
					"account_id", rec.AccountID, "error", err)
			}
		default:
			if s.onIntent != nil {
				s.onIntent(ctx, rec, intent)
				continue
			}
			s.log.DebugContext(ctx, "subscription intent",
				"account_id", rec.AccountID, "kind", intent.Kind, "at", intent.At)
		}
	}
}
