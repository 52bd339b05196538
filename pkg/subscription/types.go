package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Tier represents the purchased plan category.
type Tier string

const (
	TierTrial    Tier = "trial"
	TierMonthly  Tier = "monthly"
	TierYearly   Tier = "yearly"
	TierLifetime Tier = "lifetime"
)

// Valid reports whether the tier is one of the known plan tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierTrial, TierMonthly, TierYearly, TierLifetime:
		return true
	}
	return false
}

// Renews reports whether the tier has a recurring billing period.
// Trial has a bounded period but never renews; lifetime has no period at all.
func (t Tier) Renews() bool {
	return t == TierMonthly || t == TierYearly
}

// Status represents the lifecycle state of the current billing period.
type Status string

const (
	StatusActive        Status = "active"
	StatusCanceling     Status = "canceling" // will not renew, current period still valid
	StatusPaymentFailed Status = "payment_failed"
	StatusExpired       Status = "expired"
)

// Label returns the user-facing name for the status.
func (s Status) Label() string {
	switch s {
	case StatusCanceling:
		return "ending"
	case StatusPaymentFailed:
		return "payment failed"
	default:
		return string(s)
	}
}

// EventKind is the normalized type of an upstream billing event.
type EventKind string

const (
	EventCheckoutCompleted EventKind = "checkout_completed"
	EventRenewed           EventKind = "subscription_renewed"
	EventUpdated           EventKind = "subscription_updated"
	EventPaymentFailed     EventKind = "payment_failed"
	EventCanceledUpstream  EventKind = "subscription_canceled_upstream"
)

// BillingEvent is an immutable fact reported by the payment provider.
// Events are identified by EventID for idempotent, at-least-once delivery.
type BillingEvent struct {
	EventID         string
	AccountID       uuid.UUID // zero when only the customer ref is known
	CustomerRef     string    // provider's customer object reference
	SubscriptionRef string    // provider's subscription object reference
	Kind            EventKind
	OccurredAt      time.Time
	NewTier         Tier // set for checkout_completed and subscription_updated
	FailureReason   string
	Raw             map[string]any
}

func (e BillingEvent) messageLabel() string { return string(e.Kind) }

// CommandKind identifies a locally-initiated subscription command.
type CommandKind string

const (
	CommandCancel     CommandKind = "cancel"
	CommandReactivate CommandKind = "reactivate"
)

// Command is a user-initiated action applied through the same state machine
// as billing events. Commands take effect immediately against the local
// record; the authoritative webhook can later supersede them.
type Command struct {
	Kind CommandKind
}

func (c Command) messageLabel() string { return string(c.Kind) }

// Message is either a BillingEvent or a Command fed to the state machine.
type Message interface {
	messageLabel() string
}

// IntentKind identifies a side effect the state machine requests but does
// not perform itself.
type IntentKind string

const (
	IntentScheduleExpiryCheck IntentKind = "schedule_expiry_check"
	IntentNotifyPaymentFailed IntentKind = "notify_payment_failed"
	IntentNotifyExpired       IntentKind = "notify_expired"
	IntentMirrorCancel        IntentKind = "mirror_cancel_upstream"
	IntentMirrorReactivate    IntentKind = "mirror_reactivate_upstream"
)

// Intent is a side-effect request emitted alongside a transition.
// At is set only for deadline-bearing intents such as expiry checks.
type Intent struct {
	Kind IntentKind
	At   time.Time
}

// AccessDecision is the derived set of capability flags controlling both
// server-side write permission and UI rendering. It is never persisted.
type AccessDecision struct {
	Allowed                bool   `json:"allowed"`
	ShowPricingTable       bool   `json:"show_pricing_table"`
	ShowLifetimeUpsell     bool   `json:"show_lifetime_upsell"`
	ShowManageSubscription bool   `json:"show_manage_subscription"`
	ShowInvoiceDownload    bool   `json:"show_invoice_download"`
	Tier                   Tier   `json:"tier"`
	Status                 Status `json:"status"` // effective status at evaluation time
	StatusLabel            string `json:"status_label"`
}

// Money represents a monetary amount in the smallest currency unit.
type Money struct {
	Amount   int64  // cents for USD
	Currency string // ISO 4217 code
}
