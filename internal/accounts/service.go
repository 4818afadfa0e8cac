package accounts

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/tutorhub/tutorhub/internal/platform/httpx"
	"github.com/tutorhub/tutorhub/internal/shared"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)
	GetByID(ctx context.Context, id int64) (*Account, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	AssignDynamicRole(ctx context.Context, id int64, roleID *int64) error
	List(ctx context.Context, page, pageSize int) ([]Account, int, error)
}

// Service wraps account business rules.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Authenticate validates identifier/password credentials. A wrong
// identifier and a wrong password produce the same error; a disabled
// account is reported distinctly so the handler can answer 403.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*Account, error) {
	acc, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !acc.IsActive {
		return nil, shared.ErrAccountDisabled
	}
	return acc, nil
}

// GetByID fetches an account.
func (s *Service) GetByID(ctx context.Context, id int64) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// ActorByID loads the request-scoped actor snapshot for an account ID.
// Used by the bearer-token middleware on every authenticated request.
func (s *Service) ActorByID(ctx context.Context, id int64) (*shared.Actor, error) {
	acc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !acc.IsActive {
		return nil, shared.ErrAccountDisabled
	}
	return acc.Actor(), nil
}

// ChangePassword verifies the old password and stores a bcrypt hash of
// the new one, clearing must_change_password.
func (s *Service) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	acc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(oldPassword)); err != nil {
		return fmt.Errorf("%w: old password is incorrect", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("accounts: hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, id, string(hash))
}

// AssignRole links an account to a dynamic role, or clears the link when
// roleID is nil. Audit attribution picks the new role up on the target's
// next request.
func (s *Service) AssignRole(ctx context.Context, id int64, roleID *int64) (*Account, error) {
	if roleID != nil && *roleID <= 0 {
		return nil, fmt.Errorf("%w: role_id must be positive", httpx.ErrValidation)
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.AssignDynamicRole(ctx, id, roleID); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// List returns a page of accounts plus pagination metadata.
func (s *Service) List(ctx context.Context, page, pageSize int) ([]Account, shared.Pagination, error) {
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if page <= 0 {
		page = 1
	}
	accs, total, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return accs, shared.NewPagination(page, pageSize, total), nil
}
