// Package billing exposes the subscription engine over HTTP: the provider
// webhook callback and the self-service subscription endpoints.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lessonkit/lessonkit/pkg/subscription"
)

// maxWebhookBody bounds webhook payload reads; provider events are small.
const maxWebhookBody = 1 << 20

// Service is the slice of the subscription engine this module consumes.
type Service interface {
	GetAccessDecision(ctx context.Context, accountID uuid.UUID) (subscription.AccessDecision, error)
	Cancel(ctx context.Context, accountID uuid.UUID) (*subscription.Record, error)
	Reactivate(ctx context.Context, accountID uuid.UUID) (*subscription.Record, error)
	RequestUpgrade(ctx context.Context, accountID uuid.UUID, target subscription.Tier, opts subscription.CheckoutOptions) (*subscription.CheckoutLink, error)
	RequestManagementLink(ctx context.Context, accountID uuid.UUID) (*subscription.PortalLink, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// SignatureHeader is the provider's webhook signature header.
const SignatureHeader = "Paddle-Signature"

type handlers struct {
	svc Service
	log *slog.Logger
}

// Router mounts the billing endpoints. The webhook callback is
// unauthenticated at the HTTP layer (the payload signature is the
// authentication); everything else expects the identity middleware to have
// placed the account ID in the request context.
func Router(svc Service, log *slog.Logger) chi.Router {
	h := &handlers{svc: svc, log: log}

	r := chi.NewRouter()
	r.Post("/webhooks/billing", h.webhook)
	r.Get("/billing/access", h.access)
	r.Post("/billing/cancel", h.cancel)
	r.Post("/billing/reactivate", h.reactivate)
	r.Post("/billing/checkout", h.checkout)
	r.Get("/billing/portal", h.portal)
	return r
}

func (h *handlers) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	err = h.svc.HandleWebhook(r.Context(), payload, r.Header.Get(SignatureHeader))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, subscription.ErrUnauthenticated):
		// Generic response; verification details stay in the audit log.
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, subscription.ErrUnknownAccount):
		writeError(w, http.StatusBadRequest, "unprocessable event")
	default:
		h.log.ErrorContext(r.Context(), "webhook processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "processing failed")
	}
}

func (h *handlers) access(w http.ResponseWriter, r *http.Request) {
	accountID, ok := subscription.GetAccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	decision, err := h.svc.GetAccessDecision(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	accountID, ok := subscription.GetAccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rec, err := h.svc.Cancel(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse(rec))
}

func (h *handlers) reactivate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := subscription.GetAccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rec, err := h.svc.Reactivate(r.Context(), accountID)
	if err != nil {
		if subscription.IsInvalidTransition(err) {
			// The period already elapsed: direct the user to re-purchase
			// instead of retrying.
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":  "subscription_expired",
				"detail": "the billing period has ended; start a new checkout to resubscribe",
			})
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse(rec))
}

func (h *handlers) checkout(w http.ResponseWriter, r *http.Request) {
	accountID, ok := subscription.GetAccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Tier       string `json:"tier"`
		Email      string `json:"email"`
		SuccessURL string `json:"success_url"`
		CancelURL  string `json:"cancel_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	link, err := h.svc.RequestUpgrade(r.Context(), accountID, subscription.Tier(req.Tier), subscription.CheckoutOptions{
		Email:      req.Email,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		if errors.Is(err, subscription.ErrPlanNotFound) {
			writeError(w, http.StatusBadRequest, "unknown tier")
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (h *handlers) portal(w http.ResponseWriter, r *http.Request) {
	accountID, ok := subscription.GetAccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	link, err := h.svc.RequestManagementLink(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, subscription.ErrMissingCustomerRef) {
			writeError(w, http.StatusConflict, "no billing profile yet")
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, subscription.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "no subscription record")
	case errors.Is(err, subscription.ErrBusy):
		writeError(w, http.StatusServiceUnavailable, "subscription busy, try again")
	case subscription.IsInvalidTransition(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.ErrorContext(r.Context(), "billing request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func recordResponse(rec *subscription.Record) map[string]any {
	return map[string]any{
		"tier":                 rec.Tier,
		"status":               rec.Status,
		"status_label":         rec.Status.Label(),
		"period_start":         rec.PeriodStart,
		"period_end":           rec.PeriodEnd,
		"cancel_at_period_end": rec.CancelAtPeriodEnd,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
