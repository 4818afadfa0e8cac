package token

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tutorhub/tutorhub/internal/platform/httpx"
	"github.com/tutorhub/tutorhub/internal/shared"
)

// ActorSource loads the actor snapshot for an authenticated account ID.
type ActorSource interface {
	ActorByID(ctx context.Context, id int64) (*shared.Actor, error)
}

// Authenticator turns a bearer access token into a context actor.
type Authenticator struct {
	Issuer *Issuer
	Actors ActorSource
	Logger *slog.Logger
}

// Middleware rejects requests without a valid access token and stores the
// resolved actor in the request context.
func (a Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		claims, err := a.Issuer.ParseAccess(raw)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
			return
		}
		id, err := claims.AccountID()
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
			return
		}
		actor, err := a.Actors.ActorByID(r.Context(), id)
		if err != nil {
			if a.Logger != nil {
				a.Logger.Warn("resolve actor", slog.Int64("account_id", id), slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
			return
		}
		actor.ImpersonatedBy = claims.ImpersonatedBy
		ctx := shared.ContextWithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
