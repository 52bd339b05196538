package subscription

import (
	"errors"
	"fmt"
	"time"
)

// TrialPeriodDays is the bounded window granted to every new account.
const TrialPeriodDays = 30

// Plan describes one tier of the static plan catalog. PriceRef must match
// the payment provider's price ID so checkout sessions and webhook payloads
// map back to a tier without extra lookups.
type Plan struct {
	Tier     Tier
	Name     string
	PriceRef string // provider's price ID (empty for trial)
	Price    Money
}

// PeriodEnd computes the end of a billing period starting at start.
// Returns nil for lifetime, which has no period.
func (p Plan) PeriodEnd(start time.Time) *time.Time {
	var end time.Time
	switch p.Tier {
	case TierTrial:
		end = start.AddDate(0, 0, TrialPeriodDays)
	case TierMonthly:
		end = start.AddDate(0, 1, 0)
	case TierYearly:
		end = start.AddDate(1, 0, 0)
	case TierLifetime:
		return nil
	default:
		return nil
	}
	end = end.UTC()
	return &end
}

// Catalog is the immutable table of plan tiers. It is configuration, not
// state: built once at startup and shared by every component.
type Catalog struct {
	plans      map[Tier]Plan
	byPriceRef map[string]Tier
}

// NewCatalog builds a catalog from the given plans. Fails fast on
// inconsistent configuration so misconfiguration prevents startup.
func NewCatalog(plans ...Plan) (Catalog, error) {
	if len(plans) == 0 {
		return Catalog{}, errors.Join(ErrInvalidPlanConfiguration, errors.New("at least one plan is required"))
	}

	c := Catalog{
		plans:      make(map[Tier]Plan, len(plans)),
		byPriceRef: make(map[string]Tier, len(plans)),
	}
	for _, plan := range plans {
		if !plan.Tier.Valid() {
			return Catalog{}, errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("unknown tier %q", plan.Tier))
		}
		if _, exists := c.plans[plan.Tier]; exists {
			return Catalog{}, errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("duplicate plan for tier %q", plan.Tier))
		}
		if plan.Tier != TierTrial && plan.PriceRef == "" {
			return Catalog{}, errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %q requires a provider price ref", plan.Tier))
		}
		c.plans[plan.Tier] = plan
		if plan.PriceRef != "" {
			if _, exists := c.byPriceRef[plan.PriceRef]; exists {
				return Catalog{}, errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("duplicate price ref %q", plan.PriceRef))
			}
			c.byPriceRef[plan.PriceRef] = plan.Tier
		}
	}
	return c, nil
}

// MustCatalog is NewCatalog that panics on error, for static configuration.
func MustCatalog(plans ...Plan) Catalog {
	c, err := NewCatalog(plans...)
	if err != nil {
		panic(err)
	}
	return c
}

// ByTier returns the plan for a tier.
func (c Catalog) ByTier(t Tier) (Plan, bool) {
	p, ok := c.plans[t]
	return p, ok
}

// ByPriceRef resolves a provider price ID back to a tier.
func (c Catalog) ByPriceRef(ref string) (Plan, bool) {
	tier, ok := c.byPriceRef[ref]
	if !ok {
		return Plan{}, false
	}
	return c.plans[tier], true
}

// CatalogConfig carries the provider price IDs for the paid tiers.
type CatalogConfig struct {
	MonthlyPriceRef  string `env:"BILLING_MONTHLY_PRICE_REF,required"`
	YearlyPriceRef   string `env:"BILLING_YEARLY_PRICE_REF,required"`
	LifetimePriceRef string `env:"BILLING_LIFETIME_PRICE_REF,required"`
}

// NewCatalogFromConfig builds the standard four-tier catalog with price refs
// taken from configuration.
func NewCatalogFromConfig(cfg CatalogConfig) (Catalog, error) {
	return NewCatalog(
		Plan{Tier: TierTrial, Name: "Trial"},
		Plan{Tier: TierMonthly, Name: "Monthly", PriceRef: cfg.MonthlyPriceRef,
			Price: Money{Amount: 990, Currency: "USD"}},
		Plan{Tier: TierYearly, Name: "Yearly", PriceRef: cfg.YearlyPriceRef,
			Price: Money{Amount: 9900, Currency: "USD"}},
		Plan{Tier: TierLifetime, Name: "Lifetime", PriceRef: cfg.LifetimePriceRef,
			Price: Money{Amount: 24900, Currency: "USD"}},
	)
}
