package rbac

import "time"

// RoleCode identifies one of the built-in account roles.
type RoleCode string

// Built-in role codes. ADMIN bypasses the permission matrix entirely.
const (
	RoleAdmin      RoleCode = "ADMIN"
	RoleTeacher    RoleCode = "TEACHER"
	RoleStudent    RoleCode = "STUDENT"
	RoleAccountant RoleCode = "ACCOUNTANT"
)

var roleLabels = map[RoleCode]string{
	RoleAdmin:      "系統管理員",
	RoleTeacher:    "老師",
	RoleStudent:    "學生",
	RoleAccountant: "會計",
}

// KnownRoleCode reports whether code is one of the enumerated roles.
func KnownRoleCode(code RoleCode) bool {
	_, ok := roleLabels[code]
	return ok
}

// Label returns the display name for the role code, or the code itself
// when unknown.
func (c RoleCode) Label() string {
	if label, ok := roleLabels[c]; ok {
		return label
	}
	return string(c)
}

// RoleCodes lists the enumerated role codes.
func RoleCodes() []RoleCode {
	return []RoleCode{RoleAdmin, RoleTeacher, RoleStudent, RoleAccountant}
}

// Kind distinguishes page permissions from API permissions.
type Kind string

const (
	KindPage Kind = "PAGE"
	KindAPI  Kind = "API"
)

// ValidKind reports whether k is a recognised permission kind.
func ValidKind(k Kind) bool {
	return k == KindPage || k == KindAPI
}

// Role is an admin-configurable permission grouping. Code binds it to a
// base role for permission lookup; only rows with a matching code are
// consulted by the enforcer.
type Role struct {
	ID          int64
	Name        string
	Description string
	Code        string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PermissionEntry is one allow-rule. Method is set for API entries and
// empty for PAGE entries. The (role, kind, path, method) tuple is unique.
type PermissionEntry struct {
	ID           int64
	RoleID       int64
	Kind         Kind
	ResourcePath string
	Method       string
	CreatedAt    time.Time
}
