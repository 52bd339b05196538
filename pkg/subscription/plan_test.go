package subscription_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonkit/lessonkit/pkg/subscription"
)

func TestPlanPeriodEnd(t *testing.T) {
	t.Parallel()

	trial, ok := testCatalog().ByTier(subscription.TierTrial)
	require.True(t, ok)
	end := trial.PeriodEnd(testEpoch)
	require.NotNil(t, end)
	assert.True(t, end.Equal(testEpoch.AddDate(0, 0, 30)))

	monthly, _ := testCatalog().ByTier(subscription.TierMonthly)
	end = monthly.PeriodEnd(testEpoch)
	require.NotNil(t, end)
	assert.True(t, end.Equal(testEpoch.AddDate(0, 1, 0)))

	yearly, _ := testCatalog().ByTier(subscription.TierYearly)
	end = yearly.PeriodEnd(testEpoch)
	require.NotNil(t, end)
	assert.True(t, end.Equal(testEpoch.AddDate(1, 0, 0)))

	lifetime, _ := testCatalog().ByTier(subscription.TierLifetime)
	assert.Nil(t, lifetime.PeriodEnd(testEpoch))
}

func TestCatalogByPriceRef(t *testing.T) {
	t.Parallel()

	c := testCatalog()
	plan, ok := c.ByPriceRef("pri_yearly")
	require.True(t, ok)
	assert.Equal(t, subscription.TierYearly, plan.Tier)

	_, ok = c.ByPriceRef("pri_unknown")
	assert.False(t, ok)
}

func TestNewCatalogValidation(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.NewCatalog()
		assert.ErrorIs(t, err, subscription.ErrInvalidPlanConfiguration)
	})

	t.Run("unknown tier", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.NewCatalog(subscription.Plan{Tier: subscription.Tier("gold"), PriceRef: "pri_g"})
		assert.ErrorIs(t, err, subscription.ErrInvalidPlanConfiguration)
	})

	t.Run("duplicate tier", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.NewCatalog(
			subscription.Plan{Tier: subscription.TierMonthly, PriceRef: "pri_a"},
			subscription.Plan{Tier: subscription.TierMonthly, PriceRef: "pri_b"},
		)
		assert.ErrorIs(t, err, subscription.ErrInvalidPlanConfiguration)
	})

	t.Run("paid tier without price ref", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.NewCatalog(subscription.Plan{Tier: subscription.TierMonthly})
		assert.ErrorIs(t, err, subscription.ErrInvalidPlanConfiguration)
	})

	t.Run("duplicate price ref", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.NewCatalog(
			subscription.Plan{Tier: subscription.TierMonthly, PriceRef: "pri_same"},
			subscription.Plan{Tier: subscription.TierYearly, PriceRef: "pri_same"},
		)
		assert.ErrorIs(t, err, subscription.ErrInvalidPlanConfiguration)
	})
}

func TestNewCatalogFromConfig(t *testing.T) {
	t.Parallel()

	c, err := subscription.NewCatalogFromConfig(subscription.CatalogConfig{
		MonthlyPriceRef:  "pri_m",
		YearlyPriceRef:   "pri_y",
		LifetimePriceRef: "pri_l",
	})
	require.NoError(t, err)

	for _, tier := range []subscription.Tier{
		subscription.TierTrial, subscription.TierMonthly,
		subscription.TierYearly, subscription.TierLifetime,
	} {
		_, ok := c.ByTier(tier)
		assert.True(t, ok, "catalog must carry tier %s", tier)
	}
}
