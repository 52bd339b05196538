// Package practice exposes the teaching-content endpoints: lessons, notes,
// repertoire items, and todos. Creation is a protected mutation gated on
// the subscription engine's access decision.
package practice

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lessonkit/lessonkit/pkg/subscription"
)

// Item is a generic teaching-content entry. The engine does not care about
// the content shape beyond ownership, so one type covers all four kinds.
type Item struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ContentStore persists teaching content. Storage technology is the
// application's concern; the engine only needs the creation hook to guard.
type ContentStore interface {
	CreateItem(ctx context.Context, item Item) (Item, error)
}

type handlers struct {
	store ContentStore
}

// Router mounts the content-creation endpoints behind the subscription
// guard. Reads are intentionally unguarded: an expired account keeps
// access to existing data, it just cannot create more.
func Router(store ContentStore, decider AccessDecider) chi.Router {
	h := &handlers{store: store}

	r := chi.NewRouter()
	r.Group(func(protected chi.Router) {
		protected.Use(RequireActiveSubscription(decider))
		protected.Post("/lessons", h.create("lesson"))
		protected.Post("/notes", h.create("note"))
		protected.Post("/repertoire", h.create("repertoire"))
		protected.Post("/todos", h.create("todo"))
	})
	return r
}

func (h *handlers) create(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := subscription.GetAccountIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Title == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}

		item, err := h.store.CreateItem(r.Context(), Item{
			ID:        uuid.New(),
			AccountID: accountID,
			Kind:      kind,
			Title:     req.Title,
			Body:      req.Body,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create "+kind)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(item)
	}
}
