package shared

import (
	"errors"
	"fmt"
)

// Kind classifies a posting failure so callers can decide whether to retry.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindContention
	KindPersistence
	KindReferential
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindContention:
		return "contention"
	case KindPersistence:
		return "persistence"
	case KindReferential:
		return "referential"
	default:
		return "unknown"
	}
}

var (
	// ErrAmbiguousNature indicates a line with both or neither FC amount set.
	ErrAmbiguousNature = errors.New("accounting: ambiguous line nature")
	// ErrUnsupportedCurrencyPair indicates an account/entry currency combination without a conversion rule.
	ErrUnsupportedCurrencyPair = errors.New("accounting: unsupported currency pairing")
	// ErrUnsupportedCurrency indicates a well-formed ISO code the ledger does not carry.
	ErrUnsupportedCurrency = errors.New("accounting: unsupported currency")
	// ErrInvalidRole indicates a subdiary role outside A, M, C.
	ErrInvalidRole = errors.New("accounting: invalid subdiary role")
	// ErrInvalidXRate indicates a non-positive exchange rate.
	ErrInvalidXRate = errors.New("accounting: exchange rate must be positive")
	// ErrTooFewLines indicates an entry without lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least one line")
	// ErrNegativeAmount indicates a negative line amount.
	ErrNegativeAmount = errors.New("accounting: line amounts must not be negative")
	// ErrInvalidPeriod indicates a malformed YYYYMM code.
	ErrInvalidPeriod = errors.New("accounting: invalid tax period")
	// ErrPeriodClosed indicates the tax period no longer accepts postings.
	ErrPeriodClosed = errors.New("accounting: tax period closed")
	// ErrCorrelativeClosed indicates the book numbering for the period is closed.
	ErrCorrelativeClosed = errors.New("accounting: correlative closed")
	// ErrCorrelativeExhausted indicates the counter no longer fits the document code.
	ErrCorrelativeExhausted = errors.New("accounting: correlative exhausted")
	// ErrDateOutOfRange indicates journal date outside the tax period.
	ErrDateOutOfRange = errors.New("accounting: date outside period")
	// ErrPeriodNotFound indicates a missing tax period.
	ErrPeriodNotFound = errors.New("accounting: tax period not found")
	// ErrCorrelativeNotFound indicates a missing correlative row.
	ErrCorrelativeNotFound = errors.New("accounting: correlative not found")
	// ErrAccountNotFound indicates a missing tax account.
	ErrAccountNotFound = errors.New("accounting: tax account not found")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrLockTimeout indicates a row lock could not be acquired in time.
	ErrLockTimeout = errors.New("accounting: lock not acquired")
	// ErrDuplicateSubmission indicates the idempotency key was already posted.
	ErrDuplicateSubmission = errors.New("accounting: submission already posted")
	// ErrSubmissionInFlight indicates the idempotency key is held by another attempt.
	ErrSubmissionInFlight = errors.New("accounting: submission in flight")
)

// Error tags an underlying failure with its Kind and the operation that raised it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with kind. An already tagged error keeps its original kind.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op string, err error) error  { return E(KindValidation, op, err) }
func Contention(op string, err error) error  { return E(KindContention, op, err) }
func Persistence(op string, err error) error { return E(KindPersistence, op, err) }
func Referential(op string, err error) error { return E(KindReferential, op, err) }

// KindOf reports the kind of the first tagged error in the chain.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether re-running the posting from scratch may succeed.
func IsRetryable(err error) bool {
	return KindOf(err) == KindContention
}
