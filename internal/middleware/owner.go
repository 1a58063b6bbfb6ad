package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// OwnerHeader carries the authenticated user id. It is set by the auth
// gateway in front of this service; credentials are never seen here.
const OwnerHeader = "X-User-ID"

type (
	ownerKey       struct{}
	ownerHolderKey struct{}
)

// ownerHolder lets the request logger, which wraps RequireOwner, see the
// owner once it has been parsed.
type ownerHolder struct {
	id  uuid.UUID
	set bool
}

func withOwnerHolder(ctx context.Context, h *ownerHolder) context.Context {
	return context.WithValue(ctx, ownerHolderKey{}, h)
}

// WithOwner returns a copy of ctx carrying ownerID.
func WithOwner(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFrom returns the owner id stored by RequireOwner.
func OwnerFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ownerKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// RequireOwner rejects requests without a valid OwnerHeader with 401 and
// stores the parsed id in the request context otherwise.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(OwnerHeader))
		if err != nil || id == uuid.Nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{
					"code":    "unauthorized",
					"message": OwnerHeader + " header must be a user UUID",
				},
			})
			return
		}
		if h, ok := r.Context().Value(ownerHolderKey{}).(*ownerHolder); ok {
			h.id, h.set = id, true
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), id)))
	})
}
