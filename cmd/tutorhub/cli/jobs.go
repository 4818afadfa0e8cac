// Package cli holds manual management helpers invoked through the main
// binary's subcommands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tutorhub/tutorhub/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redisAddr})
	return &JobsCLI{client: client, inspector: inspector}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name with the given retention.
func (c *JobsCLI) Trigger(ctx context.Context, name string, retention time.Duration) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskAuditPrune:
		task, err = jobs.NewAuditPruneTask(retention)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = int(info.Pending)
		stats.Active = int(info.Active)
		stats.Scheduled = int(info.Scheduled)
		stats.Retry = int(info.Retry)
	}
	return stats, nil
}

// RunJobs dispatches the `jobs` subcommand.
func RunJobs(args []string) {
	fs := flag.NewFlagSet("jobs", flag.ExitOnError)
	redisAddr := fs.String("redis", "127.0.0.1:6379", "redis address")
	trigger := fs.String("trigger", "", "job type to enqueue (audit:prune)")
	retention := fs.Duration("retention", 90*24*time.Hour, "retention window for audit:prune")
	inspect := fs.Bool("inspect", false, "print default queue stats")
	_ = fs.Parse(args)

	cli, err := NewJobsCLI(*redisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "jobs cli:", err)
		os.Exit(1)
	}
	defer func() { _ = cli.Close() }()

	ctx := context.Background()
	if *trigger != "" {
		info, err := cli.Trigger(ctx, *trigger, *retention)
		if err != nil {
			fmt.Fprintln(os.Stderr, "trigger:", err)
			os.Exit(1)
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", *trigger, info.ID, info.Queue)
		return
	}
	if *inspect {
		stats, err := cli.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "inspect:", err)
			os.Exit(1)
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return
	}
	fs.Usage()
}
