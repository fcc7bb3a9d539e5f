package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// Inspector is the subset of asynq.Inspector the CLI reads from.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    jobs.Enqueuer
	inspector Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	if redisAddr == "" {
		return nil, errors.New("jobs cli: redis address required")
	}
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}, nil
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

// TriggerIntegrity enqueues a GL integrity check. An empty period checks the current month.
func (c *JobsCLI) TriggerIntegrity(ctx context.Context, period string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	task, err := jobs.NewGLIntegrityTask(period)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// BatchItem is one line of a batch posting file.
type BatchItem struct {
	Key     string                  `json:"key"`
	Request journals.PostingRequest `json:"request"`
}

// EnqueueBatch reads newline-delimited BatchItem records from r, validates each
// one and enqueues it for posting. Nothing is enqueued when any record is invalid.
func (c *JobsCLI) EnqueueBatch(ctx context.Context, r io.Reader) (int, error) {
	if c == nil || c.client == nil {
		return 0, errors.New("jobs cli: client not configured")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var tasks []*asynq.Task
	for n := 1; ; n++ {
		var item BatchItem
		if err := dec.Decode(&item); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, fmt.Errorf("jobs cli: record %d: %w", n, err)
		}
		if _, err := item.Request.ToEntry(); err != nil {
			return 0, fmt.Errorf("jobs cli: record %d: %w", n, err)
		}
		task, err := jobs.NewJournalPostTask(jobs.JournalPostPayload{IdempotencyKey: item.Key, Request: item.Request})
		if err != nil {
			return 0, err
		}
		tasks = append(tasks, task)
	}
	for i, task := range tasks {
		if _, err := c.client.EnqueueContext(ctx, task); err != nil {
			return i, fmt.Errorf("jobs cli: enqueue record %d: %w", i+1, err)
		}
	}
	return len(tasks), nil
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueue reports the queue metrics for queue.
func (c *JobsCLI) InspectQueue(ctx context.Context, queue string) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	if queue == "" {
		queue = jobs.QueuePostings
	}
	info, err := c.inspector.GetQueueInfo(queue)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: queue}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, queue string, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	if queue == "" {
		queue = jobs.QueueDefault
	}
	return c.inspector.ListScheduledTasks(queue, asynq.PageSize(size), asynq.Page(1))
}
