package audit

import (
	"context"
	"log/slog"

	"github.com/tutorhub/tutorhub/internal/shared"
)

// DefaultDeniedFields are always scrubbed from captured payloads.
var DefaultDeniedFields = []string{"password", "token", "secret"}

// RecordStore persists audit records.
type RecordStore interface {
	Insert(ctx context.Context, rec Record) error
}

// Entry is the input to one recording attempt.
type Entry struct {
	Actor          *shared.Actor
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
}

// Recorder writes audit records, best-effort. Recording failures are
// logged and swallowed: audit is diagnostic, not authoritative, and must
// never change the outcome of the request that triggered it.
type Recorder struct {
	store  RecordStore
	logger *slog.Logger
	denied []string
}

// NewRecorder constructs a Recorder. extraDenied extends the built-in
// scrub list.
func NewRecorder(store RecordStore, logger *slog.Logger, extraDenied ...string) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	denied := make([]string, 0, len(DefaultDeniedFields)+len(extraDenied))
	denied = append(denied, DefaultDeniedFields...)
	denied = append(denied, extraDenied...)
	return &Recorder{store: store, logger: logger, denied: denied}
}

// Record persists one entry. The stored role is the actor's currently
// linked dynamic role, never an effective/previewed one, so the trail
// reflects who the account really is.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("audit record panic", slog.Any("panic", rec))
		}
	}()

	record := Record{
		ImpersonatedBy: entry.ImpersonatedBy,
		ActionKind:     entry.ActionKind,
		ResourceType:   entry.ResourceType,
		ResourceID:     entry.ResourceID,
		ResourceName:   entry.ResourceName,
		Description:    entry.Description,
		ClientIP:       entry.ClientIP,
		UserAgent:      entry.UserAgent,
		Payload:        Scrub(entry.Payload, r.denied),
		ResponseStatus: entry.ResponseStatus,
	}
	if entry.Actor != nil {
		id := entry.Actor.ID
		record.ActorID = &id
		record.ActorName = entry.Actor.Username
		record.RoleID = entry.Actor.DynamicRoleID
	}
	if record.ActionKind == "" {
		record.ActionKind = ActionOther
	}
	if err := r.store.Insert(ctx, record); err != nil {
		r.logger.Error("audit record", slog.String("resource", record.ResourceType), slog.Any("error", err))
	}
}
