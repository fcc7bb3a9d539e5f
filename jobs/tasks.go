package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueuePostings carries batch journal postings.
	QueuePostings = "postings"
	// TaskJournalPost posts one journal entry.
	TaskJournalPost = "journal:post"
)

// JournalPostPayload describes one entry submitted for batch posting.
// When IdempotencyKey is empty the asynq task id is used instead.
type JournalPostPayload struct {
	IdempotencyKey string                  `json:"idempotency_key,omitempty"`
	Request        journals.PostingRequest `json:"request"`
}

// NewJournalPostTask constructs an Asynq task.
func NewJournalPostTask(payload JournalPostPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskJournalPost, data, asynq.Queue(QueuePostings), asynq.MaxRetry(5)), nil
}

// JournalPoster is the posting entry point used by the batch job.
type JournalPoster interface {
	PostJournalOnce(ctx context.Context, key string, entry journals.JournalEntry) (journals.JournalEntry, error)
}

// JournalPostJob processes TaskJournalPost tasks.
type JournalPostJob struct {
	poster  JournalPoster
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewJournalPostJob constructs the job handler.
func NewJournalPostJob(poster JournalPoster, logger *slog.Logger, metrics *jobmetrics.Metrics) *JournalPostJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &JournalPostJob{poster: poster, logger: logger, metrics: metrics}
}

// Handle posts the entry. Only contention failures are handed back to asynq for retry.
func (j *JournalPostJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("journal_post")
	var payload JournalPostPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry))
	}
	entry, err := payload.Request.ToEntry()
	if err != nil {
		j.logger.Warn("journal task rejected", slog.Any("error", err))
		return tracker.End(fmt.Errorf("%w: %w", err, asynq.SkipRetry))
	}
	key := payload.IdempotencyKey
	if key == "" {
		if id, ok := asynq.GetTaskID(ctx); ok {
			key = "task:" + id
		}
	}

	posted, err := j.poster.PostJournalOnce(ctx, key, entry)
	switch {
	case err == nil:
		j.logger.Info("journal task posted",
			slog.String("correlative", posted.Correlative),
			slog.String("entry_id", posted.ID.String()))
		return tracker.End(nil)
	case errors.Is(err, shared.ErrDuplicateSubmission):
		j.logger.Info("journal task already posted", slog.String("entry_id", posted.ID.String()))
		return tracker.End(nil)
	case shared.IsRetryable(err):
		return tracker.End(err)
	default:
		j.logger.Error("journal task failed",
			slog.String("kind", shared.KindOf(err).String()),
			slog.Any("error", err))
		return tracker.End(fmt.Errorf("%w: %w", err, asynq.SkipRetry))
	}
}
