package practice

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/lessonkit/lessonkit/pkg/subscription"
)

// AccessDecider is the single engine call the guard depends on.
type AccessDecider interface {
	GetAccessDecision(ctx context.Context, accountID uuid.UUID) (subscription.AccessDecision, error)
}

// RequireActiveSubscription blocks protected mutations for accounts whose
// subscription no longer allows writes. This guard is the server-side
// enforcement point; the UI hiding a button is not a security boundary.
// Denials present a distinct "subscription inactive" state so clients can
// route the user to the pricing table instead of showing a generic error.
func RequireActiveSubscription(decider AccessDecider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, ok := subscription.GetAccountIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			decision, err := decider.GetAccessDecision(r.Context(), accountID)
			if err != nil {
				// Fail closed: no decision means no write.
				writeError(w, http.StatusForbidden, "subscription state unavailable")
				return
			}
			if !decision.Allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusPaymentRequired)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":              "subscription_inactive",
					"status":             decision.Status,
					"show_pricing_table": decision.ShowPricingTable,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
