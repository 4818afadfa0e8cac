package rbac

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tutorhub/tutorhub/internal/shared"
)

// PermissionStore is the read side the enforcer consults.
type PermissionStore interface {
	GetRoleByCode(ctx context.Context, code RoleCode) (Role, error)
	HasPermission(ctx context.Context, roleID int64, kind Kind, resourcePath, method string) (bool, error)
}

// Enforcer decides allow/deny for a single request. Every ambiguity
// resolves to deny: unknown role code, inactive role, store error.
type Enforcer struct {
	store  PermissionStore
	logger *slog.Logger
}

// NewEnforcer constructs an Enforcer.
func NewEnforcer(store PermissionStore, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{store: store, logger: logger}
}

// Allow reports whether the actor may touch the resource. previewHeader is
// the raw X-Temp-Role value; resolution happens here so callers cannot
// bypass the admin-only rule. method is ignored for PAGE checks.
func (e *Enforcer) Allow(ctx context.Context, actor *shared.Actor, previewHeader string, kind Kind, resourcePath, method string) bool {
	if actor == nil {
		return false
	}
	role := ResolveEffectiveRole(actor, previewHeader)
	if role == RoleAdmin {
		return true
	}
	dynamic, err := e.store.GetRoleByCode(ctx, role)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			e.logger.Error("rbac role lookup", slog.String("role", string(role)), slog.Any("error", err))
		}
		return false
	}
	if !dynamic.IsActive {
		return false
	}
	allowed, err := e.store.HasPermission(ctx, dynamic.ID, kind, resourcePath, method)
	if err != nil {
		e.logger.Error("rbac permission lookup", slog.String("role", string(role)), slog.String("path", resourcePath), slog.Any("error", err))
		return false
	}
	return allowed
}
