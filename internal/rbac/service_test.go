package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/tutorhub/tutorhub/internal/platform/httpx"
	"github.com/tutorhub/tutorhub/internal/shared"
)

type stubRoleStore struct {
	roles    map[int64]Role
	created  []Role
	replaced []PermissionEntry
	listPage int
	listSize int
}

func (s *stubRoleStore) GetRole(_ context.Context, id int64) (Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (s *stubRoleStore) ListRoles(_ context.Context, page, pageSize int) ([]Role, int, error) {
	s.listPage, s.listSize = page, pageSize
	return nil, 0, nil
}

func (s *stubRoleStore) CreateRole(_ context.Context, name, description, code string, active bool) (Role, error) {
	role := Role{ID: int64(len(s.created) + 1), Name: name, Description: description, Code: code, IsActive: active}
	s.created = append(s.created, role)
	return role, nil
}

func (s *stubRoleStore) UpdateRole(_ context.Context, id int64, name, description, code string, active bool) (Role, error) {
	if _, ok := s.roles[id]; !ok {
		return Role{}, shared.ErrNotFound
	}
	return Role{ID: id, Name: name, Description: description, Code: code, IsActive: active}, nil
}

func (s *stubRoleStore) DeleteRole(_ context.Context, id int64) error {
	if _, ok := s.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.roles, id)
	return nil
}

func (s *stubRoleStore) ListPermissions(_ context.Context, roleID int64) ([]PermissionEntry, error) {
	return s.replaced, nil
}

func (s *stubRoleStore) ReplacePermissions(_ context.Context, roleID int64, entries []PermissionEntry) error {
	s.replaced = entries
	return nil
}

func TestCreateRoleValidation(t *testing.T) {
	svc := NewService(&stubRoleStore{})

	if _, err := svc.CreateRole(context.Background(), "  ", "", "", true); !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("empty name: expected validation error, got %v", err)
	}
	if _, err := svc.CreateRole(context.Background(), "custom", "", "SUPERUSER", true); !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("unknown code: expected validation error, got %v", err)
	}

	role, err := svc.CreateRole(context.Background(), " 老師 ", "teaching", " teacher ", true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if role.Code != "TEACHER" {
		t.Fatalf("code should be normalised to upper case, got %q", role.Code)
	}
	if role.Name != "老師" {
		t.Fatalf("name should be trimmed, got %q", role.Name)
	}
}

func TestListRolesClampsPaging(t *testing.T) {
	store := &stubRoleStore{}
	svc := NewService(store)

	if _, _, err := svc.ListRoles(context.Background(), -3, 500); err != nil {
		t.Fatalf("list: %v", err)
	}
	if store.listPage != 1 {
		t.Fatalf("expected page clamped to 1, got %d", store.listPage)
	}
	if store.listSize != 50 {
		t.Fatalf("expected page size clamped to 50, got %d", store.listSize)
	}
}

func TestReplacePermissionsValidation(t *testing.T) {
	store := &stubRoleStore{roles: map[int64]Role{10: {ID: 10, Name: "老師"}}}
	svc := NewService(store)
	ctx := context.Background()

	cases := []struct {
		name    string
		entries []PermissionEntry
		want    error
	}{
		{"invalid kind", []PermissionEntry{{Kind: "WIDGET", ResourcePath: "/x"}}, httpx.ErrValidation},
		{"missing path", []PermissionEntry{{Kind: KindAPI, Method: "GET"}}, httpx.ErrValidation},
		{"api missing method", []PermissionEntry{{Kind: KindAPI, ResourcePath: "/x"}}, httpx.ErrValidation},
		{"page with method", []PermissionEntry{{Kind: KindPage, ResourcePath: "/x", Method: "GET"}}, httpx.ErrValidation},
		{"duplicate tuple", []PermissionEntry{
			{Kind: KindAPI, ResourcePath: "/x", Method: "GET"},
			{Kind: KindAPI, ResourcePath: "/x", Method: "get"},
		}, httpx.ErrDuplicate},
	}
	for _, tc := range cases {
		if err := svc.ReplacePermissions(ctx, 10, tc.entries); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if err := svc.ReplacePermissions(ctx, 99, nil); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("unknown role: expected not found, got %v", err)
	}
}

func TestReplacePermissionsEndState(t *testing.T) {
	store := &stubRoleStore{
		roles: map[int64]Role{10: {ID: 10, Name: "老師"}},
		replaced: []PermissionEntry{
			{RoleID: 10, Kind: KindAPI, ResourcePath: "/old", Method: "GET"},
		},
	}
	svc := NewService(store)

	entries := []PermissionEntry{
		{Kind: Kind("api"), ResourcePath: " /api/center/courses ", Method: "get"},
		{Kind: KindPage, ResourcePath: "/courses"},
	}
	if err := svc.ReplacePermissions(context.Background(), 10, entries); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if len(store.replaced) != 2 {
		t.Fatalf("expected exactly the new entries, got %d", len(store.replaced))
	}
	first := store.replaced[0]
	if first.RoleID != 10 || first.Kind != KindAPI || first.ResourcePath != "/api/center/courses" || first.Method != "GET" {
		t.Fatalf("entry not normalised: %+v", first)
	}
}
