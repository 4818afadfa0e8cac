package accounts

import (
	"time"

	"github.com/tutorhub/tutorhub/internal/rbac"
	"github.com/tutorhub/tutorhub/internal/shared"
)

// Account is a registered user of the tutoring center. BaseRole is the
// fixed built-in role; DynamicRoleID optionally links the account to an
// admin-configured Role row. Accounts are never hard-deleted here; they
// are deactivated instead.
type Account struct {
	ID                 int64
	Username           string
	Email              string
	FirstName          string
	LastName           string
	PasswordHash       string
	BaseRole           rbac.RoleCode
	DynamicRoleID      *int64
	DynamicRoleName    string
	MustChangePassword bool
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Actor converts the account into the request-scoped snapshot consumed by
// authorization and audit code.
func (a *Account) Actor() *shared.Actor {
	if a == nil {
		return nil
	}
	return &shared.Actor{
		ID:                 a.ID,
		Username:           a.Username,
		Email:              a.Email,
		BaseRole:           string(a.BaseRole),
		DynamicRoleID:      a.DynamicRoleID,
		MustChangePassword: a.MustChangePassword,
		IsActive:           a.IsActive,
	}
}
