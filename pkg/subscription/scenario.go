package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/lessonkit/lessonkit/pkg/clock"
)

// Scenario is a declarative event sequence used by the test harness to
// drive an account into a target state deterministically. Scenarios are
// written in YAML and replayed against a mock clock, never in production.
type Scenario struct {
	Name  string         `yaml:"name"`
	Steps []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one instruction: advance the clock, deliver an event,
// issue a command, or assert the resulting state.
type ScenarioStep struct {
	AdvanceDays int             `yaml:"advance_days,omitempty"`
	Advance     string          `yaml:"advance,omitempty"` // Go duration string
	Event       *ScenarioEvent  `yaml:"event,omitempty"`
	Command     string          `yaml:"command,omitempty"`
	Expect      *ScenarioExpect `yaml:"expect,omitempty"`
}

// ScenarioEvent describes a billing event to deliver. OccurredAt defaults
// to the simulated clock's current instant.
type ScenarioEvent struct {
	ID              string `yaml:"id"`
	Kind            string `yaml:"kind"`
	Tier            string `yaml:"tier,omitempty"`
	CustomerRef     string `yaml:"customer_ref,omitempty"`
	SubscriptionRef string `yaml:"subscription_ref,omitempty"`
}

// ScenarioExpect asserts on the record and the access decision. Only set
// fields are checked.
type ScenarioExpect struct {
	Status              string `yaml:"status,omitempty"`
	Tier                string `yaml:"tier,omitempty"`
	Allowed             *bool  `yaml:"allowed,omitempty"`
	ShowPricingTable    *bool  `yaml:"show_pricing_table,omitempty"`
	ShowLifetimeUpsell  *bool  `yaml:"show_lifetime_upsell,omitempty"`
	ShowManage          *bool  `yaml:"show_manage_subscription,omitempty"`
	ShowInvoiceDownload *bool  `yaml:"show_invoice_download,omitempty"`
	PaymentFailureCount *int   `yaml:"payment_failure_count,omitempty"`
}

// ParseScenario decodes a YAML scenario description.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario requires a name")
	}
	return &sc, nil
}

// ScenarioRunner replays scenarios for one account against a service wired
// with a mock clock.
type ScenarioRunner struct {
	svc       *Service
	clk       *clock.Mock
	accountID uuid.UUID
	eventSeq  int
}

func NewScenarioRunner(svc *Service, clk *clock.Mock, accountID uuid.UUID) *ScenarioRunner {
	return &ScenarioRunner{svc: svc, clk: clk, accountID: accountID}
}

// Run executes every step in order. The account's trial record is created
// first if it does not exist yet.
func (r *ScenarioRunner) Run(ctx context.Context, sc *Scenario) error {
	if _, err := r.svc.GetRecord(ctx, r.accountID); err != nil {
		if _, err := r.svc.CreateTrial(ctx, r.accountID); err != nil {
			return fmt.Errorf("scenario %s: create trial: %w", sc.Name, err)
		}
	}

	for i, step := range sc.Steps {
		if err := r.runStep(ctx, step); err != nil {
			return fmt.Errorf("scenario %s, step %d: %w", sc.Name, i+1, err)
		}
	}
	return nil
}

func (r *ScenarioRunner) runStep(ctx context.Context, step ScenarioStep) error {
	if step.AdvanceDays > 0 {
		r.clk.AdvanceDays(step.AdvanceDays)
	}
	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("invalid advance duration %q: %w", step.Advance, err)
		}
		r.clk.Advance(d)
	}

	if step.Event != nil {
		if err := r.deliverEvent(ctx, *step.Event); err != nil {
			return err
		}
	}

	switch step.Command {
	case "":
	case "cancel":
		if _, err := r.svc.Cancel(ctx, r.accountID); err != nil {
			return fmt.Errorf("cancel: %w", err)
		}
	case "reactivate":
		if _, err := r.svc.Reactivate(ctx, r.accountID); err != nil {
			return fmt.Errorf("reactivate: %w", err)
		}
	default:
		return fmt.Errorf("unknown command %q", step.Command)
	}

	if step.Expect != nil {
		return r.check(ctx, *step.Expect)
	}
	return nil
}

func (r *ScenarioRunner) deliverEvent(ctx context.Context, sev ScenarioEvent) error {
	r.eventSeq++
	ev := BillingEvent{
		EventID:         sev.ID,
		AccountID:       r.accountID,
		Kind:            EventKind(sev.Kind),
		OccurredAt:      r.clk.Now(),
		NewTier:         Tier(sev.Tier),
		CustomerRef:     sev.CustomerRef,
		SubscriptionRef: sev.SubscriptionRef,
	}
	if ev.EventID == "" {
		ev.EventID = fmt.Sprintf("evt-%s-%04d", r.accountID, r.eventSeq)
	}
	if err := r.svc.ProcessEvent(ctx, ev); err != nil {
		return fmt.Errorf("event %s (%s): %w", ev.EventID, ev.Kind, err)
	}
	return nil
}

func (r *ScenarioRunner) check(ctx context.Context, want ScenarioExpect) error {
	rec, err := r.svc.GetRecord(ctx, r.accountID)
	if err != nil {
		return err
	}
	decision := r.svc.Machine().Evaluate(rec, r.clk.Now())

	if want.Status != "" && decision.Status != Status(want.Status) {
		return fmt.Errorf("expected status %q, got %q", want.Status, decision.Status)
	}
	if want.Tier != "" && rec.Tier != Tier(want.Tier) {
		return fmt.Errorf("expected tier %q, got %q", want.Tier, rec.Tier)
	}
	if want.Allowed != nil && decision.Allowed != *want.Allowed {
		return fmt.Errorf("expected allowed=%v, got %v", *want.Allowed, decision.Allowed)
	}
	if want.ShowPricingTable != nil && decision.ShowPricingTable != *want.ShowPricingTable {
		return fmt.Errorf("expected show_pricing_table=%v, got %v", *want.ShowPricingTable, decision.ShowPricingTable)
	}
	if want.ShowLifetimeUpsell != nil && decision.ShowLifetimeUpsell != *want.ShowLifetimeUpsell {
		return fmt.Errorf("expected show_lifetime_upsell=%v, got %v", *want.ShowLifetimeUpsell, decision.ShowLifetimeUpsell)
	}
	if want.ShowManage != nil && decision.ShowManageSubscription != *want.ShowManage {
		return fmt.Errorf("expected show_manage_subscription=%v, got %v", *want.ShowManage, decision.ShowManageSubscription)
	}
	if want.ShowInvoiceDownload != nil && decision.ShowInvoiceDownload != *want.ShowInvoiceDownload {
		return fmt.Errorf("expected show_invoice_download=%v, got %v", *want.ShowInvoiceDownload, decision.ShowInvoiceDownload)
	}
	if want.PaymentFailureCount != nil && rec.PaymentFailureCount != *want.PaymentFailureCount {
		return fmt.Errorf("expected payment_failure_count=%d, got %d", *want.PaymentFailureCount, rec.PaymentFailureCount)
	}
	return nil
}
