package subscription

import (
	"context"

	"github.com/google/uuid"
)

type accountIDCtxKey struct{}

// SetAccountIDToContext stores the authenticated account ID for downstream
// guards and handlers. The identity layer is responsible for calling this.
func SetAccountIDToContext(ctx context.Context, accountID uuid.UUID) context.Context {
	return context.WithValue(ctx, accountIDCtxKey{}, accountID)
}

// GetAccountIDFromContext retrieves the account ID set by the identity layer.
func GetAccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	accountID, ok := ctx.Value(accountIDCtxKey{}).(uuid.UUID)
	return accountID, ok
}
