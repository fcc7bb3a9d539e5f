package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/correlatives"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// TxRepository is the storage protocol a posting runs against. Every method
// executes inside the transaction opened by RepositoryPort.WithTx; the *ForUpdate
// methods hold their row lock until that transaction ends.
type TxRepository interface {
	correlatives.Store
	accounts.Store
	GetPeriod(ctx context.Context, code string) (periods.TaxPeriod, error)
	InsertJournal(ctx context.Context, entry JournalEntry) error
}

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetJournal(ctx context.Context, id uuid.UUID) (JournalEntry, error)
}

// MetricsPort records posting outcomes.
type MetricsPort interface {
	ObservePosting(outcome string, elapsed time.Duration)
}

// IdempotencyPort remembers submission keys across retries of the same request.
type IdempotencyPort interface {
	Reserve(ctx context.Context, key string) (string, error)
	Complete(ctx context.Context, key, value string) error
	Release(ctx context.Context, key string) error
}

// Service is the posting orchestrator: it allocates the correlative, adjusts
// account balances and stores the entry as one atomic unit.
type Service struct {
	repo      RepositoryPort
	allocator *correlatives.Allocator
	adjuster  *accounts.Adjuster
	logger    *slog.Logger
	metrics   MetricsPort
	idem      IdempotencyPort
	retry     RetryPolicy
	now       func() time.Time
}

// NewService constructs the posting service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		allocator: correlatives.NewAllocator(),
		adjuster:  accounts.NewAdjuster(),
		logger:    logger,
		retry:     DefaultRetryPolicy(),
		now:       time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics installs a metrics sink.
func (s *Service) WithMetrics(m MetricsPort) {
	s.metrics = m
}

// WithIdempotency installs the submission key store used by PostJournalOnce.
func (s *Service) WithIdempotency(store IdempotencyPort) {
	s.idem = store
}

// WithRetryPolicy overrides the policy used by PostJournalWithRetry.
func (s *Service) WithRetryPolicy(p RetryPolicy) {
	s.retry = p.normalized()
}

// GetJournal returns a posted entry with its lines.
func (s *Service) GetJournal(ctx context.Context, id uuid.UUID) (JournalEntry, error) {
	return s.repo.GetJournal(ctx, id)
}

// PostJournal assigns the next correlative to entry, applies every line to its
// account balance and stores the entry. Either all of it commits or nothing does.
func (s *Service) PostJournal(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	start := s.now()
	posted, err := s.post(ctx, entry)
	elapsed := s.now().Sub(start)
	if err != nil {
		kind := shared.KindOf(err)
		if s.metrics != nil {
			s.metrics.ObservePosting(kind.String(), elapsed)
		}
		s.logger.Warn("journal posting failed",
			slog.String("book", entry.Book),
			slog.String("period", entry.Period),
			slog.String("role", string(entry.Role)),
			slog.String("kind", kind.String()),
			slog.Any("error", err))
		return JournalEntry{}, err
	}
	if s.metrics != nil {
		s.metrics.ObservePosting("posted", elapsed)
	}
	s.logger.Info("journal posted",
		slog.String("entry_id", posted.ID.String()),
		slog.String("correlative", posted.Correlative),
		slog.String("book", posted.Book),
		slog.String("period", posted.Period),
		slog.Int("lines", len(posted.Lines)))
	return posted, nil
}

func (s *Service) post(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	if err := entry.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var posted JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		op := fmt.Sprintf("post journal %s/%s", entry.Book, entry.Period)
		period, err := tx.GetPeriod(ctx, entry.Period)
		if err != nil {
			return err
		}
		if period.IsClosed() {
			return shared.Validation(op, shared.ErrPeriodClosed)
		}
		if !period.Contains(entry.Date) {
			return shared.Validation(op, shared.ErrDateOutOfRange)
		}

		c, err := s.allocator.FindOrCreate(ctx, tx, entry.Book, entry.Period)
		if err != nil {
			return err
		}
		_, number, err := s.allocator.Step(ctx, tx, c, entry.Role)
		if err != nil {
			return err
		}

		// Account locks follow the correlative lock, in ascending id order.
		for _, id := range entry.AccountIDs() {
			if _, err := tx.GetAccountForUpdate(ctx, id); err != nil {
				return err
			}
		}

		draft := entry
		draft.Lines = slices.Clone(entry.Lines)
		for i := range draft.Lines {
			account, err := s.adjuster.Adjust(ctx, tx, draft.Lines[i].Movement(), draft.Currency, draft.XRate)
			if err != nil {
				return err
			}
			draft.Lines[i].AccountName = account.Name
			// Line numbers follow slice order.
			draft.Lines[i].LineNo = i + 1
		}

		draft.ID = uuid.New()
		draft.Correlative = correlatives.Format(entry.Role, number)
		draft.PostedAt = s.now().UTC()
		draft.RevertedBy = nil
		if err := tx.InsertJournal(ctx, draft); err != nil {
			return err
		}
		posted = draft
		return nil
	})
	if err != nil {
		return JournalEntry{}, shared.Persistence("post journal", err)
	}
	return posted, nil
}

// PostJournalOnce posts entry at most once per idempotency key. A replay of a
// completed key returns shared.ErrDuplicateSubmission together with an entry
// carrying only the original ID.
func (s *Service) PostJournalOnce(ctx context.Context, key string, entry JournalEntry) (JournalEntry, error) {
	if key == "" || s.idem == nil {
		return s.PostJournalWithRetry(ctx, entry)
	}
	const op = "post journal once"
	existing, err := s.idem.Reserve(ctx, key)
	switch {
	case errors.Is(err, internalShared.ErrIdempotencyConflict):
		id, parseErr := uuid.Parse(existing)
		if parseErr != nil {
			return JournalEntry{}, shared.Persistence(op, parseErr)
		}
		return JournalEntry{ID: id}, shared.Validation(op, shared.ErrDuplicateSubmission)
	case errors.Is(err, internalShared.ErrIdempotencyPending):
		return JournalEntry{}, shared.Contention(op, shared.ErrSubmissionInFlight)
	case err != nil:
		return JournalEntry{}, shared.Persistence(op, err)
	}

	posted, err := s.PostJournalWithRetry(ctx, entry)
	if err != nil {
		if relErr := s.idem.Release(ctx, key); relErr != nil {
			s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", relErr))
		}
		return JournalEntry{}, err
	}
	if err := s.idem.Complete(ctx, key, posted.ID.String()); err != nil {
		s.logger.Warn("complete idempotency key", slog.String("key", key), slog.Any("error", err))
	}
	return posted, nil
}
