package rbac

import (
	"net/http"
	"strings"

	"github.com/tutorhub/tutorhub/internal/platform/httpx"
	"github.com/tutorhub/tutorhub/internal/shared"
)

// DenialCounter receives one call per denied request, labelled with the
// effective role that was refused.
type DenialCounter interface {
	CountDenied(role string)
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Enforcer *Enforcer
	// ExcludedPrefixes are API paths served without a matrix check, such
	// as the account endpoints every authenticated user may reach.
	ExcludedPrefixes []string
	// Denials is optional.
	Denials DenialCounter
}

func (m Middleware) countDenied(role string) {
	if m.Denials != nil {
		m.Denials.CountDenied(role)
	}
}

// RequireAdmin allows only actors whose stored base role is ADMIN. The
// preview header deliberately plays no part here: previewing a lesser role
// must not lock an admin out of admin-only surfaces, and a forged header
// must not let anyone in.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := shared.ActorFromContext(r.Context())
		if actor == nil || RoleCode(actor.BaseRole) != RoleAdmin {
			role := ""
			if actor != nil {
				role = actor.BaseRole
			}
			m.countDenied(role)
			httpx.Forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Guard enforces the permission matrix on API routes. Denials are a
// uniform 403 regardless of which rule was missing.
func (m Middleware) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		actor := shared.ActorFromContext(r.Context())
		if actor == nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		preview := r.Header.Get(HeaderTempRole)
		if !m.Enforcer.Allow(r.Context(), actor, preview, KindAPI, r.URL.Path, r.Method) {
			m.countDenied(string(ResolveEffectiveRole(actor, preview)))
			httpx.Forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) excluded(path string) bool {
	for _, prefix := range m.ExcludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
