package subscription_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonkit/lessonkit/pkg/subscription"
)

// flags is the policy-table row shape: allowed, pricing table, lifetime
// upsell, manage subscription, invoice download.
type flags [5]bool

func decisionFlags(d subscription.AccessDecision) flags {
	return flags{d.Allowed, d.ShowPricingTable, d.ShowLifetimeUpsell, d.ShowManageSubscription, d.ShowInvoiceDownload}
}

func TestPolicyTableCoversEveryReachablePair(t *testing.T) {
	t.Parallel()
	m := newMachine(t)

	paidRecord := func(tier subscription.Tier) *subscription.Record {
		rec, _, err := m.Transition(trialRecord(t), checkoutEvent("evt-1", tier), testEpoch)
		require.NoError(t, err)
		return rec
	}

	cases := []struct {
		name string
		rec  func() *subscription.Record
		at   time.Time
		want flags
	}{
		{
			name: "trial active",
			rec:  func() *subscription.Record { return trialRecord(t) },
			at:   testEpoch.AddDate(0, 0, 10),
			want: flags{true, true, false, false, false},
		},
		{
			name: "monthly active",
			rec:  func() *subscription.Record { return paidRecord(subscription.TierMonthly) },
			at:   testEpoch.AddDate(0, 0, 10),
			want: flags{true, false, true, true, false},
		},
		{
			name: "yearly active",
			rec:  func() *subscription.Record { return paidRecord(subscription.TierYearly) },
			at:   testEpoch.AddDate(0, 1, 0),
			want: flags{true, false, true, true, false},
		},
		{
			name: "monthly canceling",
			rec: func() *subscription.Record {
				rec, _, err := m.Transition(paidRecord(subscription.TierMonthly),
					subscription.Command{Kind: subscription.CommandCancel}, testEpoch.AddDate(0, 0, 5))
				require.NoError(t, err)
				return rec
			},
			at:   testEpoch.AddDate(0, 0, 20),
			want: flags{true, false, true, true, false},
		},
		{
			name: "yearly canceling",
			rec: func() *subscription.Record {
				rec, _, err := m.Transition(paidRecord(subscription.TierYearly),
					subscription.Command{Kind: subscription.CommandCancel}, testEpoch.AddDate(0, 1, 0))
				require.NoError(t, err)
				return rec
			},
			at:   testEpoch.AddDate(0, 2, 0),
			want: flags{true, false, true, true, false},
		},
		{
			name: "lifetime active",
			rec:  func() *subscription.Record { return paidRecord(subscription.TierLifetime) },
			at:   testEpoch.AddDate(20, 0, 0),
			want: flags{true, false, false, false, true},
		},
		{
			name: "payment failed within grace",
			rec: func() *subscription.Record {
				rec := paidRecord(subscription.TierMonthly)
				failed, _, err := m.Transition(rec, subscription.BillingEvent{
					EventID: "evt-2", Kind: subscription.EventPaymentFailed,
				}, rec.PeriodEnd.Add(time.Hour))
				require.NoError(t, err)
				return failed
			},
			at:   testEpoch.AddDate(0, 1, 2),
			want: flags{true, false, false, true, false},
		},
		{
			name: "trial expired",
			rec:  func() *subscription.Record { return trialRecord(t) },
			at:   testEpoch.AddDate(0, 0, 31),
			want: flags{false, true, false, false, false},
		},
		{
			name: "canceling past period end",
			rec: func() *subscription.Record {
				rec, _, err := m.Transition(paidRecord(subscription.TierMonthly),
					subscription.Command{Kind: subscription.CommandCancel}, testEpoch.AddDate(0, 0, 5))
				require.NoError(t, err)
				return rec
			},
			at:   testEpoch.AddDate(0, 2, 0),
			want: flags{false, true, false, false, false},
		},
		{
			name: "payment failed past grace",
			rec: func() *subscription.Record {
				rec := paidRecord(subscription.TierMonthly)
				failed, _, err := m.Transition(rec, subscription.BillingEvent{
					EventID: "evt-2", Kind: subscription.EventPaymentFailed,
				}, rec.PeriodEnd.Add(time.Hour))
				require.NoError(t, err)
				return failed
			},
			at:   testEpoch.AddDate(0, 3, 0),
			want: flags{false, true, false, false, false},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := m.Evaluate(tc.rec(), tc.at)
			assert.Equal(t, tc.want, decisionFlags(got))
		})
	}
}

// TestMonotonicGrace verifies there is no gap and no overlap between the
// grace window and expiry for a payment-failed record.
func TestMonotonicGrace(t *testing.T) {
	t.Parallel()
	m := newMachine(t)

	rec, _, err := m.Transition(trialRecord(t), checkoutEvent("evt-1", subscription.TierMonthly), testEpoch)
	require.NoError(t, err)
	failed, _, err := m.Transition(rec, subscription.BillingEvent{
		EventID: "evt-2", Kind: subscription.EventPaymentFailed,
	}, rec.PeriodEnd.Add(time.Hour))
	require.NoError(t, err)

	deadline := failed.GraceDeadline(m.GracePeriod())
	for _, offset := range []time.Duration{-14 * 24 * time.Hour, -time.Hour, -time.Second} {
		d := m.Evaluate(failed, deadline.Add(offset))
		assert.True(t, d.Allowed, "access must hold before the grace deadline (offset %s)", offset)
	}
	for _, offset := range []time.Duration{0, time.Second, time.Hour, 90 * 24 * time.Hour} {
		d := m.Evaluate(failed, deadline.Add(offset))
		assert.False(t, d.Allowed, "access must end at the grace deadline (offset %s)", offset)
		assert.Equal(t, subscription.StatusExpired, d.Status)
	}
}

// TestTrialExpiryScenario is the concrete case: a trial created at T0 is
// denied with the pricing table shown at T0+31d.
func TestTrialExpiryScenario(t *testing.T) {
	t.Parallel()
	m := newMachine(t)

	rec := trialRecord(t)
	d := m.Evaluate(rec, testEpoch.AddDate(0, 0, 31))

	assert.False(t, d.Allowed)
	assert.True(t, d.ShowPricingTable)
	assert.Equal(t, subscription.StatusExpired, d.Status)
}

func TestStatusLabelForCanceling(t *testing.T) {
	t.Parallel()
	m := newMachine(t)

	rec, _, err := m.Transition(trialRecord(t), checkoutEvent("evt-1", subscription.TierMonthly), testEpoch)
	require.NoError(t, err)
	canceled, _, err := m.Transition(rec, subscription.Command{Kind: subscription.CommandCancel}, testEpoch.AddDate(0, 0, 5))
	require.NoError(t, err)

	d := m.Evaluate(canceled, testEpoch.AddDate(0, 0, 20))
	assert.Equal(t, "ending", d.StatusLabel)
}
