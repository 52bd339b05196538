// Package subscription implements the subscription lifecycle and
// access-control engine: the component that decides which billing plan is
// active for an account, whether the period has lapsed, how payment
// failures are handled, and which product capabilities are unlocked as a
// result.
//
// # Architecture
//
// The engine is built around a pure state machine over (tier, status)
// pairs, driven by normalized billing events from the payment provider and
// by locally-initiated commands:
//
//   - Machine: pure transition logic; no I/O, time passed explicitly
//   - Record: the durable per-account subscription state
//   - Catalog: the static table of plan tiers and their properties
//   - Store: record persistence with optimistic compare-and-swap
//   - BillingProvider: checkout, portal, and webhook normalization
//   - Service: the application-facing surface, including the billing
//     event processor
//
// Time is always read through pkg/clock, so trial expiry, monthly
// rollover, and dunning windows are evaluated lazily on read and can be
// tested by advancing a mock clock instead of waiting real time.
//
// # Concurrency
//
// Accounts are processed fully in parallel, but all mutations for one
// account are serialized: a per-account writer lock guards transitions in
// this process, and every write is an optimistic compare-and-swap on the
// record's previous UpdatedAt so writers on other nodes cannot be lost.
// Webhook delivery is at-least-once; replaying an already applied event ID
// is always a no-op success.
//
// # Access control
//
// Evaluate derives an AccessDecision from a record: whether protected
// writes are allowed plus the UI capability flags (pricing table, lifetime
// upsell, manage-subscription, invoice download). Application handlers must
// consult it before every protected mutation; the UI is an untrusted
// client.
//
// # Quick start
//
//	catalog := subscription.MustCatalog(
//		subscription.Plan{Tier: subscription.TierTrial, Name: "Trial"},
//		subscription.Plan{Tier: subscription.TierMonthly, Name: "Monthly", PriceRef: "pri_monthly"},
//		subscription.Plan{Tier: subscription.TierYearly, Name: "Yearly", PriceRef: "pri_yearly"},
//		subscription.Plan{Tier: subscription.TierLifetime, Name: "Lifetime", PriceRef: "pri_lifetime"},
//	)
//
//	provider, _ := subscription.NewPaddleProvider(paddleCfg, catalog)
//	svc := subscription.NewService(subscription.NewPgStore(pool), provider, catalog)
//
//	decision, err := svc.GetAccessDecision(ctx, accountID)
//	if err != nil || !decision.Allowed {
//		// reject the protected mutation
//	}
package subscription
