package httpx

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	// UserIDHeader carries the caller's account id. It is set by the gateway
	// in front of the service after authentication.
	UserIDHeader = "X-User-ID"
)

const (
	userIDContextKey   contextKey = "user_id"
	userSlotContextKey contextKey = "user_slot"
)

// UserID is a middleware that reads the caller's account id from the
// X-User-ID header into the request context. Requests without the header
// pass through anonymously; a malformed id is rejected with 401.
func UserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid user id", nil)
			return
		}

		if slot, ok := r.Context().Value(userSlotContextKey).(*string); ok {
			*slot = id.String()
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}

// GetUserID extracts the caller's account id from context.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDContextKey).(uuid.UUID)
	return id, ok
}

// WithUserID adds an account id to the context.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDContextKey, id)
}

// withUserSlot lets an outer middleware learn the caller resolved further in.
func withUserSlot(ctx context.Context, slot *string) context.Context {
	return context.WithValue(ctx, userSlotContextKey, slot)
}
