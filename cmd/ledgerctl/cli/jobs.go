package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/tallyerp/bookkeeping/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers against the queue's Redis.
func NewJobsCLI(opts asynq.RedisClientOpt) (*JobsCLI, error) {
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &JobsCLI{client: client, inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// BuildTask prepares a supported job by name. A nil company targets every company.
func BuildTask(name string, companyID *uuid.UUID) (*asynq.Task, error) {
	switch name {
	case jobs.TaskLedgerIntegrity, "integrity":
		return jobs.NewLedgerIntegrityTask(companyID)
	case jobs.TaskReportWarmup, "warmup":
		return jobs.NewReportWarmupTask(companyID)
	case jobs.TaskIdempotencyCleanup, "cleanup":
		return jobs.NewIdempotencyCleanupTask(jobs.DefaultIdempotencyRetention)
	}
	return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, companyID *uuid.UUID) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	if name == "integrity" || name == jobs.TaskLedgerIntegrity {
		return c.client.EnqueueLedgerIntegrity(ctx, companyID)
	}
	task, err := BuildTask(name, companyID)
	if err != nil {
		return nil, err
	}
	return c.client.Enqueue(ctx, task, asynq.MaxRetry(3))
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
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

func jobsCmd(rt func() *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}

	var company string
	trigger := &cobra.Command{
		Use:   "trigger <integrity|warmup|cleanup>",
		Short: "Enqueue a job now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := rt()
			if r == nil || r.Jobs == nil {
				return errNotConfigured
			}
			var companyID *uuid.UUID
			if company != "" {
				id, err := parseCompany(company)
				if err != nil {
					return err
				}
				companyID = &id
			}
			info, err := r.Jobs.Trigger(cmd.Context(), args[0], companyID)
			if err != nil {
				return err
			}
			cmd.Printf("enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	companyFlag(trigger, &company)

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show the default queue state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := rt()
			if r == nil || r.Jobs == nil {
				return errNotConfigured
			}
			s, err := r.Jobs.InspectQueue()
			if err != nil {
				return err
			}
			cmd.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry)
			return nil
		},
	}

	cmd.AddCommand(trigger, stats)
	return cmd
}
