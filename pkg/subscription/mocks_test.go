package subscription_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/lessonkit/lessonkit/pkg/subscription"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateCheckoutLink(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutLink, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.CheckoutLink), args.Error(1)
}

func (m *mockProvider) GetCustomerPortalLink(ctx context.Context, rec *subscription.Record) (*subscription.PortalLink, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.PortalLink), args.Error(1)
}

func (m *mockProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*subscription.BillingEvent, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.BillingEvent), args.Error(1)
}

func (m *mockProvider) ScheduleCancel(ctx context.Context, subscriptionRef string) error {
	return m.Called(ctx, subscriptionRef).Error(0)
}

func (m *mockProvider) UndoScheduledCancel(ctx context.Context, subscriptionRef string) error {
	return m.Called(ctx, subscriptionRef).Error(0)
}

// noopProvider satisfies BillingProvider for tests that never reach it.
type noopProvider struct{}

func (noopProvider) CreateCheckoutLink(context.Context, subscription.CheckoutRequest) (*subscription.CheckoutLink, error) {
	return &subscription.CheckoutLink{URL: "https://checkout.example/session"}, nil
}

func (noopProvider) GetCustomerPortalLink(context.Context, *subscription.Record) (*subscription.PortalLink, error) {
	return &subscription.PortalLink{URL: "https://portal.example/session"}, nil
}

func (noopProvider) ParseWebhook(context.Context, []byte, string) (*subscription.BillingEvent, error) {
	return nil, nil
}

func (noopProvider) ScheduleCancel(context.Context, string) error { return nil }

func (noopProvider) UndoScheduledCancel(context.Context, string) error { return nil }

func testCatalog() subscription.Catalog {
	return subscription.MustCatalog(
		subscription.Plan{Tier: subscription.TierTrial, Name: "Trial"},
		subscription.Plan{Tier: subscription.TierMonthly, Name: "Monthly", PriceRef: "pri_monthly",
			Price: subscription.Money{Amount: 990, Currency: "USD"}},
		subscription.Plan{Tier: subscription.TierYearly, Name: "Yearly", PriceRef: "pri_yearly",
			Price: subscription.Money{Amount: 9900, Currency: "USD"}},
		subscription.Plan{Tier: subscription.TierLifetime, Name: "Lifetime", PriceRef: "pri_lifetime",
			Price: subscription.Money{Amount: 24900, Currency: "USD"}},
	)
}

var testEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
