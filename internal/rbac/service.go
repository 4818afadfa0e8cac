package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/tutorhub/tutorhub/internal/platform/httpx"
	"github.com/tutorhub/tutorhub/internal/shared"
)

// RoleStore is the persistence contract for role administration.
type RoleStore interface {
	GetRole(ctx context.Context, id int64) (Role, error)
	ListRoles(ctx context.Context, page, pageSize int) ([]Role, int, error)
	CreateRole(ctx context.Context, name, description, code string, active bool) (Role, error)
	UpdateRole(ctx context.Context, id int64, name, description, code string, active bool) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	ListPermissions(ctx context.Context, roleID int64) ([]PermissionEntry, error)
	ReplacePermissions(ctx context.Context, roleID int64, entries []PermissionEntry) error
}

// Service orchestrates role and permission administration.
type Service struct {
	store RoleStore
}

// NewService constructs a Service.
func NewService(store RoleStore) *Service {
	return &Service{store: store}
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.store.GetRole(ctx, id)
}

// ListRoles returns a page of roles plus pagination metadata.
func (s *Service) ListRoles(ctx context.Context, page, pageSize int) ([]Role, shared.Pagination, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	if page <= 0 {
		page = 1
	}
	roles, total, err := s.store.ListRoles(ctx, page, pageSize)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return roles, shared.NewPagination(page, pageSize, total), nil
}

// CreateRole validates and inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description, code string, active bool) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", httpx.ErrValidation)
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code != "" && !KnownRoleCode(RoleCode(code)) {
		return Role{}, fmt.Errorf("%w: unknown role code %q", httpx.ErrValidation, code)
	}
	return s.store.CreateRole(ctx, name, strings.TrimSpace(description), code, active)
}

// UpdateRole validates and updates an existing role.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description, code string, active bool) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", httpx.ErrValidation)
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code != "" && !KnownRoleCode(RoleCode(code)) {
		return Role{}, fmt.Errorf("%w: unknown role code %q", httpx.ErrValidation, code)
	}
	return s.store.UpdateRole(ctx, id, name, strings.TrimSpace(description), code, active)
}

// DeleteRole removes a role by ID.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.store.DeleteRole(ctx, id)
}

// ListPermissions returns all entries for a role.
func (s *Service) ListPermissions(ctx context.Context, roleID int64) ([]PermissionEntry, error) {
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.store.ListPermissions(ctx, roleID)
}

// ReplacePermissions validates the new entry set and swaps it in. The
// end state is exactly the given entries; anything the role held before
// is gone.
func (s *Service) ReplacePermissions(ctx context.Context, roleID int64, entries []PermissionEntry) error {
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(entries))
	normalized := make([]PermissionEntry, 0, len(entries))
	for i, e := range entries {
		e.Kind = Kind(strings.ToUpper(string(e.Kind)))
		e.ResourcePath = strings.TrimSpace(e.ResourcePath)
		e.Method = strings.ToUpper(strings.TrimSpace(e.Method))
		if !ValidKind(e.Kind) {
			return fmt.Errorf("%w: entry %d: invalid kind %q", httpx.ErrValidation, i, e.Kind)
		}
		if e.ResourcePath == "" {
			return fmt.Errorf("%w: entry %d: resource_path required", httpx.ErrValidation, i)
		}
		switch e.Kind {
		case KindAPI:
			if e.Method == "" {
				return fmt.Errorf("%w: entry %d: method required for API entries", httpx.ErrValidation, i)
			}
		case KindPage:
			if e.Method != "" {
				return fmt.Errorf("%w: entry %d: method must be empty for PAGE entries", httpx.ErrValidation, i)
			}
		}
		key := string(e.Kind) + "|" + e.ResourcePath + "|" + e.Method
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: entry %d repeats (%s, %s, %s)", httpx.ErrDuplicate, i, e.Kind, e.ResourcePath, e.Method)
		}
		seen[key] = struct{}{}
		e.RoleID = roleID
		normalized = append(normalized, e)
	}
	return s.store.ReplacePermissions(ctx, roleID, normalized)
}
