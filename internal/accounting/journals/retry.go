package journals

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// RetryPolicy bounds PostJournalWithRetry.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// PostJournalWithRetry re-runs PostJournal from scratch while it fails with a
// contention error. Any other failure is returned after the first attempt.
func (s *Service) PostJournalWithRetry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	policy := s.retry.normalized()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.BaseDelay
	b.MaxInterval = policy.MaxDelay

	attempt := 0
	posted, err := backoff.Retry(ctx, func() (JournalEntry, error) {
		attempt++
		posted, err := s.PostJournal(ctx, entry)
		if err != nil && !shared.IsRetryable(err) {
			return JournalEntry{}, backoff.Permanent(err)
		}
		return posted, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(policy.MaxAttempts)))
	if err != nil {
		if attempt > 1 {
			s.logger.Warn("journal posting gave up after retries",
				slog.Int("attempts", attempt),
				slog.Any("error", err))
		}
		return JournalEntry{}, shared.Contention("post journal with retry", err)
	}
	return posted, nil
}
