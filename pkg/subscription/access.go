package subscription

import "time"

// Evaluate derives the access decision for a record at now. It is a pure
// read: the effective status is re-derived through the clock-passed instant,
// but nothing is persisted.
//
// The policy table, by effective status:
//
//	trial/active            -> allowed, pricing table
//	monthly|yearly active   -> allowed, lifetime upsell, manage subscription
//	monthly|yearly canceling-> allowed, lifetime upsell, manage subscription
//	lifetime active         -> allowed, invoice download
//	payment failed (grace)  -> allowed, manage subscription
//	expired                 -> denied, pricing table
func (m Machine) Evaluate(r *Record, now time.Time) AccessDecision {
	status := m.EffectiveStatus(r, now)

	d := AccessDecision{
		Tier:        r.Tier,
		Status:      status,
		StatusLabel: status.Label(),
	}

	switch status {
	case StatusExpired:
		d.ShowPricingTable = true
		return d
	case StatusPaymentFailed:
		d.Allowed = true
		d.ShowManageSubscription = true
		return d
	}

	// Active or Canceling from here on.
	d.Allowed = true
	switch r.Tier {
	case TierTrial:
		d.ShowPricingTable = true
	case TierMonthly, TierYearly:
		d.ShowLifetimeUpsell = true
		d.ShowManageSubscription = true
	case TierLifetime:
		d.ShowInvoiceDownload = true
	}
	return d
}
