package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tutorhub/tutorhub/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditPrune deletes audit records past the retention window.
	TaskAuditPrune = "audit:prune"
)

// AuditPrunePayload carries the retention window for a prune run.
type AuditPrunePayload struct {
	Retention time.Duration `json:"retention"`
}

// AuditPruneStore deletes audit records older than a cutoff.
type AuditPruneStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewAuditPruneTask constructs an Asynq task for audit retention pruning.
func NewAuditPruneTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(AuditPrunePayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, body, asynq.Queue(QueueDefault)), nil
}

// NewAuditPruneHandler returns the handler for TaskAuditPrune. A nil
// metrics value disables instrumentation.
func NewAuditPruneHandler(store AuditPruneStore, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditPrunePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.Retention <= 0 {
			return asynq.SkipRetry
		}
		tracker := metrics.Track(TaskAuditPrune)
		cutoff := time.Now().Add(-payload.Retention)
		deleted, err := store.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return tracker.End(err)
		}
		logger.Info("audit prune",
			slog.Time("cutoff", cutoff),
			slog.Int64("deleted", deleted))
		return tracker.End(nil)
	}
}
