package subscription

import (
	"context"
	"time"
)

// BillingProvider abstracts the payment processor. The processor hosts
// checkout and the self-service portal; this engine only consumes its
// webhooks and requests links or mirrored changes.
//
// Implementations must verify webhook authenticity before returning an
// event: a payload that fails verification is ErrUnauthenticated, never a
// parsed event.
type BillingProvider interface {
	// CreateCheckoutLink creates a hosted checkout session for a plan.
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)

	// GetCustomerPortalLink returns a temporary link to the provider-hosted
	// portal where users manage payment methods and plan changes.
	GetCustomerPortalLink(ctx context.Context, rec *Record) (*PortalLink, error)

	// ParseWebhook verifies the payload signature and returns the
	// normalized billing event.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*BillingEvent, error)

	// ScheduleCancel mirrors a local cancel upstream: the provider stops
	// renewing at the end of the current period.
	ScheduleCancel(ctx context.Context, subscriptionRef string) error

	// UndoScheduledCancel mirrors a local reactivate upstream, removing a
	// pending cancellation before the period ends.
	UndoScheduledCancel(ctx context.Context, subscriptionRef string) error
}

// CheckoutRequest contains the data needed to open a checkout session.
type CheckoutRequest struct {
	PriceRef   string // provider's price identifier for the target tier
	AccountID  string // our account ID, echoed back in webhook custom data
	Email      string // optional billing email
	SuccessURL string
	CancelURL  string
}

// CheckoutLink is a hosted checkout session.
type CheckoutLink struct {
	URL       string
	SessionID string
	ExpiresAt time.Time
}

// PortalLink is a pre-authenticated customer portal session.
type PortalLink struct {
	URL       string
	CancelURL string // direct link to the cancel flow, when available
	ExpiresAt time.Time
}
