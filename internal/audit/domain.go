package audit

import "time"

// ActionKind categorises what a request did.
type ActionKind string

const (
	ActionCreate ActionKind = "create"
	ActionUpdate ActionKind = "update"
	ActionDelete ActionKind = "delete"
	ActionView   ActionKind = "view"
	ActionLogin  ActionKind = "login"
	ActionLogout ActionKind = "logout"
	ActionOther  ActionKind = "other"
)

// ActionKindForMethod maps an HTTP method onto an action kind.
func ActionKindForMethod(method string) ActionKind {
	switch method {
	case "POST":
		return ActionCreate
	case "PUT", "PATCH":
		return ActionUpdate
	case "DELETE":
		return ActionDelete
	case "GET":
		return ActionView
	default:
		return ActionOther
	}
}

// Record is one immutable audit trail row. Never mutated or deleted by
// normal operation; only the retention job prunes old rows.
type Record struct {
	ID             int64
	ActorID        *int64
	ActorName      string
	RoleID         *int64
	RoleName       string
	ImpersonatedBy *int64
	ActionKind     ActionKind
	ResourceType   string
	ResourceID     string
	ResourceName   string
	Description    string
	ClientIP       string
	UserAgent      string
	Payload        map[string]any
	ResponseStatus *int
	CreatedAt      time.Time
}

// ListFilters narrow the audit listing. Zero values mean "no filter".
type ListFilters struct {
	ActorID      int64
	RoleID       int64
	ActionKind   ActionKind
	ResourceType string
	Page         int
	PageSize     int
}

// Result wraps a listing page with paging information.
type Result struct {
	Records  []Record
	Page     int
	PageSize int
	HasNext  bool
}
