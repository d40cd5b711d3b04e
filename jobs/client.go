package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Client enqueues book jobs onto the default queue.
type Client struct {
	client *asynq.Client
}

// NewClient connects a job client to the queue's Redis.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	if redisOpts.Addr == "" {
		return nil, errors.New("jobs: redis address required")
	}
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// Enqueue submits task to the default queue.
func (c *Client) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	opts = append([]asynq.Option{asynq.Queue(QueueDefault)}, opts...)
	return c.client.EnqueueContext(ctx, task, opts...)
}

// EnqueueLedgerIntegrity schedules an integrity scan. A nil company scans all of them.
func (c *Client) EnqueueLedgerIntegrity(ctx context.Context, companyID *uuid.UUID) (*asynq.TaskInfo, error) {
	task, err := NewLedgerIntegrityTask(companyID)
	if err != nil {
		return nil, err
	}
	return c.Enqueue(ctx, task, asynq.MaxRetry(3))
}

// EnqueueReportWarmup schedules a report warmup, deduplicated per company for a minute.
func (c *Client) EnqueueReportWarmup(ctx context.Context, companyID uuid.UUID) (*asynq.TaskInfo, error) {
	task, err := NewReportWarmupTask(&companyID)
	if err != nil {
		return nil, err
	}
	return c.Enqueue(ctx, task, asynq.Unique(time.Minute))
}

// ScheduleWarmup queues a warmup for companyID. A warmup already waiting counts as scheduled.
func (c *Client) ScheduleWarmup(ctx context.Context, companyID uuid.UUID) error {
	_, err := c.EnqueueReportWarmup(ctx, companyID)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
