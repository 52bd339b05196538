package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements BillingProvider for Paddle.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	catalog  Catalog
}

// NewPaddleProvider creates a Paddle billing provider. The catalog is used
// to resolve Paddle price IDs back to plan tiers while normalizing webhooks.
func NewPaddleProvider(cfg PaddleConfig, catalog Catalog) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("paddle API key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("paddle webhook secret is required")
	}

	var client *paddle.SDK
	var err error
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
		catalog:  catalog,
	}, nil
}

// CreateCheckoutLink creates a hosted checkout transaction in Paddle.
// The account ID travels in custom data so the webhook can be mapped back
// without relying on Paddle's customer object.
func (p *PaddleProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if req.PriceRef == "" {
		return nil, errors.New("price ref is required")
	}
	if req.AccountID == "" {
		return nil, errors.New("account ID is required")
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceRef,
		Quantity: 1,
	})

	txReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"account_id": req.AccountID,
		},
	}
	if req.Email != "" {
		txReq.CustomData["email"] = req.Email
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle transaction: %w", err)
	}

	if tx.Checkout == nil || tx.Checkout.URL == nil || *tx.Checkout.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutLink{
		URL:       *tx.Checkout.URL,
		SessionID: tx.ID,
		// Paddle checkout links typically expire in 24 hours.
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// GetCustomerPortalLink returns a link to Paddle's customer portal.
func (p *PaddleProvider) GetCustomerPortalLink(ctx context.Context, rec *Record) (*PortalLink, error) {
	if rec == nil || rec.ExternalCustomerRef == "" {
		return nil, ErrMissingCustomerRef
	}

	req := &paddle.CreateCustomerPortalSessionRequest{
		CustomerID: rec.ExternalCustomerRef,
	}
	if rec.ExternalSubscriptionRef != "" {
		req.SubscriptionIDs = []string{rec.ExternalSubscriptionRef}
	}

	session, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle portal session: %w", err)
	}

	link := &PortalLink{
		// Portal links typically expire in 24 hours.
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if session.URLs.General.Overview != "" {
		link.URL = session.URLs.General.Overview
	}
	for _, subURL := range session.URLs.Subscriptions {
		if subURL.ID == rec.ExternalSubscriptionRef && subURL.CancelSubscription != "" {
			link.CancelURL = subURL.CancelSubscription
			break
		}
	}
	if link.URL == "" {
		return nil, ErrNoPortalURL
	}
	return link, nil
}

// ScheduleCancel asks Paddle to stop renewing at the end of the current
// billing period.
func (p *PaddleProvider) ScheduleCancel(ctx context.Context, subscriptionRef string) error {
	if subscriptionRef == "" {
		return ErrMissingSubscriptionRef
	}
	if _, err := p.client.SubscriptionsClient.CancelSubscription(ctx, &paddle.CancelSubscriptionRequest{
		SubscriptionID: subscriptionRef,
	}); err != nil {
		return fmt.Errorf("failed to schedule paddle cancellation: %w", err)
	}
	return nil
}

// UndoScheduledCancel removes a pending cancellation before it takes effect.
func (p *PaddleProvider) UndoScheduledCancel(ctx context.Context, subscriptionRef string) error {
	if subscriptionRef == "" {
		return ErrMissingSubscriptionRef
	}
	if _, err := p.client.SubscriptionsClient.ResumeSubscription(ctx, &paddle.ResumeSubscriptionRequest{
		SubscriptionID: subscriptionRef,
	}); err != nil {
		return fmt.Errorf("failed to remove paddle scheduled cancellation: %w", err)
	}
	return nil
}

// ParseWebhook verifies the Paddle signature and normalizes the payload
// into a BillingEvent. Returns (nil, nil) for event types the engine does
// not track. Returns ErrUnauthenticated when verification fails.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*BillingEvent, error) {
	// The Paddle verifier operates on an http.Request, so wrap the raw
	// payload and signature header back into one.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrUnauthenticated, err)
	}
	if !valid {
		return nil, ErrUnauthenticated
	}

	var raw struct {
		EventID    string         `json:"event_id"`
		EventType  string         `json:"event_type"`
		OccurredAt string         `json:"occurred_at"`
		Data       map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	occurredAt, err := time.Parse(time.RFC3339, raw.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("invalid occurred_at in webhook: %w", err)
	}

	ev := &BillingEvent{
		EventID:    raw.EventID,
		OccurredAt: occurredAt.UTC(),
		Raw:        raw.Data,
	}
	p.extractRefs(ev, raw.EventType, raw.Data)

	status, _ := raw.Data["status"].(string)

	switch {
	case raw.EventType == "transaction.completed":
		ev.Kind = EventCheckoutCompleted
	case raw.EventType == "transaction.payment_failed":
		ev.Kind = EventPaymentFailed
		if reason, ok := raw.Data["failure_reason"].(string); ok {
			ev.FailureReason = reason
		}
	case raw.EventType == "subscription.canceled":
		ev.Kind = EventCanceledUpstream
	case raw.EventType == "subscription.updated" && strings.EqualFold(status, "past_due"):
		ev.Kind = EventPaymentFailed
	case raw.EventType == "subscription.updated" && strings.EqualFold(status, "canceled"):
		ev.Kind = EventCanceledUpstream
	case raw.EventType == "subscription.updated":
		ev.Kind = EventUpdated
	default:
		// Not a lifecycle event the engine tracks.
		return nil, nil
	}

	if ev.Kind == EventCheckoutCompleted || ev.Kind == EventUpdated {
		if ev.NewTier == "" {
			return nil, fmt.Errorf("webhook %s carries no known price ref", raw.EventType)
		}
	}

	return ev, nil
}

// extractRefs pulls the customer, subscription, account, and price
// references out of the payload. Transaction and subscription payloads
// nest the price differently, so both shapes are probed.
func (p *PaddleProvider) extractRefs(ev *BillingEvent, eventType string, data map[string]any) {
	if id, ok := data["customer_id"].(string); ok {
		ev.CustomerRef = id
	}
	if strings.HasPrefix(eventType, "subscription.") {
		if id, ok := data["id"].(string); ok {
			ev.SubscriptionRef = id
		}
	} else if id, ok := data["subscription_id"].(string); ok {
		ev.SubscriptionRef = id
	}

	if customData, ok := data["custom_data"].(map[string]any); ok {
		if accountID, ok := customData["account_id"].(string); ok {
			if parsed, err := uuid.Parse(accountID); err == nil {
				ev.AccountID = parsed
			}
		}
	}

	if items, ok := data["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			var priceRef string
			if price, ok := item["price"].(map[string]any); ok {
				priceRef, _ = price["id"].(string)
			}
			if priceRef == "" {
				priceRef, _ = item["price_id"].(string)
			}
			if plan, ok := p.catalog.ByPriceRef(priceRef); ok {
				ev.NewTier = plan.Tier
			}
		}
	}
}
