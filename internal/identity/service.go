// Package identity implements role preview switching and admin
// impersonation on top of the dynamic role system.
package identity

import (
	"context"
	"fmt"

	"github.com/tutorhub/tutorhub/internal/accounts"
	"github.com/tutorhub/tutorhub/internal/platform/httpx"
	"github.com/tutorhub/tutorhub/internal/rbac"
	"github.com/tutorhub/tutorhub/internal/shared"
	"github.com/tutorhub/tutorhub/internal/token"
)

// AccountSource resolves accounts for impersonation targets.
type AccountSource interface {
	GetByID(ctx context.Context, id int64) (*accounts.Account, error)
}

// TokenIssuer mints token pairs on behalf of an impersonated account.
type TokenIssuer interface {
	IssueImpersonatedPair(targetID int64, username string, adminID int64) (token.Pair, error)
}

// Service implements role switching and impersonation. Previews are
// stateless: switching only validates and echoes the role, the client
// carries it on subsequent requests via the preview header.
type Service struct {
	accounts AccountSource
	tokens   TokenIssuer
}

func NewService(accounts AccountSource, tokens TokenIssuer) *Service {
	return &Service{accounts: accounts, tokens: tokens}
}

// RoleView describes the caller's role standpoint for one request.
type RoleView struct {
	OriginalRole  rbac.RoleCode
	TempRole      rbac.RoleCode
	EffectiveRole rbac.RoleCode
}

// SwitchRole validates a preview target for an admin. Non-admins are
// denied regardless of the requested role.
func (s *Service) SwitchRole(actor *shared.Actor, role string) (RoleView, error) {
	if actor == nil || rbac.RoleCode(actor.BaseRole) != rbac.RoleAdmin {
		return RoleView{}, httpx.ErrForbidden
	}
	code := rbac.RoleCode(role)
	if !rbac.KnownRoleCode(code) {
		return RoleView{}, fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, role)
	}
	return RoleView{
		OriginalRole:  rbac.RoleCode(actor.BaseRole),
		TempRole:      code,
		EffectiveRole: code,
	}, nil
}

// ResetRole returns the caller to their stored role.
func (s *Service) ResetRole(actor *shared.Actor) (RoleView, error) {
	if actor == nil || rbac.RoleCode(actor.BaseRole) != rbac.RoleAdmin {
		return RoleView{}, httpx.ErrForbidden
	}
	base := rbac.RoleCode(actor.BaseRole)
	return RoleView{OriginalRole: base, EffectiveRole: base}, nil
}

// CurrentRole reports the role standpoint for the request, including
// any active preview.
func (s *Service) CurrentRole(actor *shared.Actor, previewHeader string) RoleView {
	base := rbac.RoleCode(actor.BaseRole)
	effective := rbac.ResolveEffectiveRole(actor, previewHeader)
	view := RoleView{OriginalRole: base, EffectiveRole: effective}
	if preview := rbac.PreviewRole(actor, previewHeader); preview != "" {
		view.TempRole = preview
	}
	return view
}

// Impersonate issues a token pair that authenticates as the target
// account while recording the admin as the acting party.
func (s *Service) Impersonate(ctx context.Context, actor *shared.Actor, targetID int64) (*accounts.Account, token.Pair, error) {
	if actor == nil || rbac.RoleCode(actor.BaseRole) != rbac.RoleAdmin {
		return nil, token.Pair{}, httpx.ErrForbidden
	}
	if targetID == actor.ID {
		return nil, token.Pair{}, fmt.Errorf("%w: cannot impersonate yourself", httpx.ErrValidation)
	}
	target, err := s.accounts.GetByID(ctx, targetID)
	if err != nil {
		return nil, token.Pair{}, err
	}
	if !target.IsActive {
		return nil, token.Pair{}, fmt.Errorf("%w: account is disabled", httpx.ErrValidation)
	}
	pair, err := s.tokens.IssueImpersonatedPair(target.ID, target.Username, actor.ID)
	if err != nil {
		return nil, token.Pair{}, fmt.Errorf("issue impersonated tokens: %w", err)
	}
	return target, pair, nil
}
