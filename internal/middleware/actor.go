package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Kwabena/Talaria/pkg/constants"
	"github.com/Kwabena/Talaria/pkg/types"
)

const ActorKey = "actor"

// Actor extracts the authenticated caller forwarded by the API gateway in
// X-Actor-ID and X-Actor-Role headers. Requests without a valid actor are
// rejected before they reach any handler.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := r.Header.Get("X-Actor-ID")
		actorRole := r.Header.Get("X-Actor-Role")

		if _, err := uuid.Parse(actorID); err != nil {
			http.Error(w, "Missing or invalid X-Actor-ID header", http.StatusUnauthorized)
			return
		}
		switch actorRole {
		case constants.RoleSystem, constants.RoleAdmin, constants.RoleClient, constants.RoleFreelancer:
		default:
			http.Error(w, "Missing or invalid X-Actor-Role header", http.StatusUnauthorized)
			return
		}

		actor := types.Actor{ID: actorID, Role: actorRole}
		ctx := context.WithValue(r.Context(), ActorKey, actor)
		ctx = context.WithValue(ctx, UserIDKey, actorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetActor retrieves the caller from the context. Routes behind the Actor
// middleware always have one; the zero value elsewhere fails every
// authorization check.
func GetActor(ctx context.Context) types.Actor {
	if actor, ok := ctx.Value(ActorKey).(types.Actor); ok {
		return actor
	}
	return types.Actor{}
}
