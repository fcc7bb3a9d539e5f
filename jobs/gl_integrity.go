package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// TaskGLIntegrity checks the double-entry law of one tax period.
const TaskGLIntegrity = "gl:integrity"

// GLIntegrityPayload selects the period to check. Empty means the current month.
type GLIntegrityPayload struct {
	Period string `json:"period,omitempty"`
}

// NewGLIntegrityTask constructs an Asynq task.
func NewGLIntegrityTask(period string) (*asynq.Task, error) {
	data, err := json.Marshal(GLIntegrityPayload{Period: period})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, data, asynq.Queue(QueueDefault)), nil
}

// UnbalancedLister reports posted entries whose columns do not balance.
type UnbalancedLister interface {
	ListUnbalanced(ctx context.Context, period string) ([]journals.UnbalancedEntry, error)
}

// GLIntegrityJob scans a period for entries violating double entry.
type GLIntegrityJob struct {
	repo    UnbalancedLister
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	now     func() time.Time
}

// NewGLIntegrityJob constructs the job.
func NewGLIntegrityJob(repo UnbalancedLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &GLIntegrityJob{repo: repo, logger: logger, metrics: metrics, now: time.Now}
}

// Handle processes TaskGLIntegrity tasks.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload GLIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
		}
	}
	_, err := j.Run(ctx, payload.Period)
	return err
}

// Run checks period and returns the offending entries.
func (j *GLIntegrityJob) Run(ctx context.Context, period string) ([]journals.UnbalancedEntry, error) {
	tracker := j.metrics.Track("gl_integrity")
	if period == "" {
		period = periods.CodeFor(j.now())
	}
	if _, _, err := periods.ParseCode(period); err != nil {
		return nil, tracker.End(fmt.Errorf("%w: %w", err, asynq.SkipRetry))
	}
	unbalanced, err := j.repo.ListUnbalanced(ctx, period)
	if err != nil {
		return nil, tracker.End(err)
	}
	j.metrics.SetUnbalanced(period, len(unbalanced))
	for _, u := range unbalanced {
		j.logger.Warn("unbalanced journal entry",
			slog.String("period", period),
			slog.String("entry_id", u.ID.String()),
			slog.String("correlative", u.Correlative),
			slog.String("debit_fc", u.Totals.DebitFC.String()),
			slog.String("credit_fc", u.Totals.CreditFC.String()),
			slog.String("debit_sc", u.Totals.DebitSC.String()),
			slog.String("credit_sc", u.Totals.CreditSC.String()))
	}
	j.logger.Info("GL integrity check executed",
		slog.String("job", "gl_integrity"),
		slog.String("period", period),
		slog.Int("unbalanced", len(unbalanced)))
	return unbalanced, tracker.End(nil)
}
