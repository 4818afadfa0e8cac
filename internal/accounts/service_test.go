package accounts

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/tutorhub/tutorhub/internal/platform/httpx"
	"github.com/tutorhub/tutorhub/internal/shared"
)

type stubAccountRepo struct {
	byIdentifier map[string]*Account
	byID         map[int64]*Account
	updatedHash  string
}

func (s *stubAccountRepo) FindByIdentifier(_ context.Context, identifier string) (*Account, error) {
	acc, ok := s.byIdentifier[identifier]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *acc
	return &copied, nil
}

func (s *stubAccountRepo) GetByID(_ context.Context, id int64) (*Account, error) {
	acc, ok := s.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *acc
	return &copied, nil
}

func (s *stubAccountRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	s.updatedHash = hash
	return nil
}

func (s *stubAccountRepo) AssignDynamicRole(_ context.Context, id int64, roleID *int64) error {
	acc, ok := s.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	acc.DynamicRoleID = roleID
	return nil
}

func (s *stubAccountRepo) List(_ context.Context, page, pageSize int) ([]Account, int, error) {
	return nil, 0, nil
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(hash)
}

func TestAuthenticate(t *testing.T) {
	active := &Account{ID: 1, Username: "teacher1", PasswordHash: hashOf(t, "secret"), IsActive: true}
	disabled := &Account{ID: 2, Username: "gone", PasswordHash: hashOf(t, "secret"), IsActive: false}
	repo := &stubAccountRepo{byIdentifier: map[string]*Account{
		"teacher1": active,
		"gone":     disabled,
	}}
	svc := NewService(repo)
	ctx := context.Background()

	if acc, err := svc.Authenticate(ctx, "teacher1", "secret"); err != nil || acc.ID != 1 {
		t.Fatalf("valid login failed: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "teacher1", "wrong"); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "secret"); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("unknown identifier: expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "gone", "secret"); !errors.Is(err, shared.ErrAccountDisabled) {
		t.Fatalf("disabled account: expected disabled error, got %v", err)
	}
	// Wrong password on a disabled account must not reveal the
	// disabled state.
	if _, err := svc.Authenticate(ctx, "gone", "wrong"); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("disabled + wrong password: expected invalid credentials, got %v", err)
	}
}

func TestActorByID(t *testing.T) {
	roleID := int64(5)
	repo := &stubAccountRepo{byID: map[int64]*Account{
		1: {ID: 1, Username: "teacher1", BaseRole: "TEACHER", DynamicRoleID: &roleID, IsActive: true},
		2: {ID: 2, Username: "gone", BaseRole: "STUDENT", IsActive: false},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	actor, err := svc.ActorByID(ctx, 1)
	if err != nil {
		t.Fatalf("actor: %v", err)
	}
	if actor.BaseRole != "TEACHER" || actor.DynamicRoleID == nil || *actor.DynamicRoleID != 5 {
		t.Fatalf("actor snapshot wrong: %+v", actor)
	}

	if _, err := svc.ActorByID(ctx, 2); !errors.Is(err, shared.ErrAccountDisabled) {
		t.Fatalf("disabled account: expected disabled error, got %v", err)
	}
	if _, err := svc.ActorByID(ctx, 99); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("unknown id: expected not found, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	repo := &stubAccountRepo{byID: map[int64]*Account{
		1: {ID: 1, Username: "teacher1", PasswordHash: hashOf(t, "old-pass"), IsActive: true},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.ChangePassword(ctx, 1, "wrong", "new-pass"); !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("wrong old password: expected validation error, got %v", err)
	}
	if err := svc.ChangePassword(ctx, 1, "old-pass", "new-pass"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if repo.updatedHash == "" {
		t.Fatal("new hash not stored")
	}
	if bcrypt.CompareHashAndPassword([]byte(repo.updatedHash), []byte("new-pass")) != nil {
		t.Fatal("stored hash does not match the new password")
	}
}

func TestAssignRole(t *testing.T) {
	repo := &stubAccountRepo{byID: map[int64]*Account{
		1: {ID: 1, Username: "teacher1", BaseRole: "TEACHER", IsActive: true},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	roleID := int64(7)
	acc, err := svc.AssignRole(ctx, 1, &roleID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if acc.DynamicRoleID == nil || *acc.DynamicRoleID != 7 {
		t.Fatalf("role not assigned: %+v", acc)
	}

	acc, err = svc.AssignRole(ctx, 1, nil)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if acc.DynamicRoleID != nil {
		t.Fatalf("role not cleared: %+v", acc)
	}

	bad := int64(0)
	if _, err := svc.AssignRole(ctx, 1, &bad); !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("zero role id: expected validation error, got %v", err)
	}
	if _, err := svc.AssignRole(ctx, 99, &roleID); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("unknown account: expected not found, got %v", err)
	}
}
