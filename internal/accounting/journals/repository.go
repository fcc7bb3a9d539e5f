package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/correlatives"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// PostgreSQL error codes that mean "try again".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
	pgForeignKeyViolation  = "23503"
)

// Repository persists journals on PostgreSQL.
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRepository constructs Repository. lockTimeout bounds every row lock wait.
func NewRepository(pool *pgxpool.Pool, lockTimeout time.Duration) *Repository {
	return &Repository{pool: pool, lockTimeout: lockTimeout}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("journals repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, db.TxConfig{LockTimeout: r.lockTimeout}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	return classify("journal transaction", err, nil)
}

func (r *txRepository) GetPeriod(ctx context.Context, code string) (periods.TaxPeriod, error) {
	var p periods.TaxPeriod
	// FOR SHARE keeps the period from being closed while the posting runs.
	err := r.tx.QueryRow(ctx, `SELECT code, date_from, date_until, closed FROM tax_periods WHERE code=$1 FOR SHARE`, code).
		Scan(&p.Code, &p.DateFrom, &p.DateUntil, &p.Closed)
	if err != nil {
		return periods.TaxPeriod{}, classify("get period "+code, err, shared.ErrPeriodNotFound)
	}
	return p, nil
}

func (r *txRepository) FindCorrelativeForUpdate(ctx context.Context, book, period string) (correlatives.Correlative, error) {
	var c correlatives.Correlative
	err := r.tx.QueryRow(ctx, `SELECT id, book, period, last_a, last_m, last_c, closed
FROM correlatives WHERE book=$1 AND period=$2 FOR UPDATE`, book, period).
		Scan(&c.ID, &c.Book, &c.Period, &c.LastA, &c.LastM, &c.LastC, &c.Closed)
	if err != nil {
		return correlatives.Correlative{}, classify(fmt.Sprintf("lock correlative %s/%s", book, period), err, shared.ErrCorrelativeNotFound)
	}
	return c, nil
}

func (r *txRepository) InsertCorrelative(ctx context.Context, book, period string) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO correlatives (book, period) VALUES ($1,$2)
ON CONFLICT ON CONSTRAINT uq_correlatives_book_period DO NOTHING`, book, period)
	return classify(fmt.Sprintf("insert correlative %s/%s", book, period), err, nil)
}

func (r *txRepository) UpdateCorrelativeCounters(ctx context.Context, c correlatives.Correlative) error {
	op := fmt.Sprintf("update correlative %s/%s", c.Book, c.Period)
	cmd, err := r.tx.Exec(ctx, `UPDATE correlatives SET last_a=$2, last_m=$3, last_c=$4, updated_at=NOW() WHERE id=$1`,
		c.ID, c.LastA, c.LastM, c.LastC)
	if err != nil {
		return classify(op, err, nil)
	}
	if cmd.RowsAffected() == 0 {
		return shared.Referential(op, shared.ErrCorrelativeNotFound)
	}
	return nil
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, id int64) (accounts.TaxAccount, error) {
	var a accounts.TaxAccount
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, nature, currency, balance FROM tax_accounts WHERE id=$1 FOR UPDATE`, id).
		Scan(&a.ID, &a.Code, &a.Name, &a.Nature, &a.Currency, &a.Balance)
	if err != nil {
		return accounts.TaxAccount{}, classify(fmt.Sprintf("lock account %d", id), err, shared.ErrAccountNotFound)
	}
	return a, nil
}

func (r *txRepository) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	op := fmt.Sprintf("update account %d", id)
	cmd, err := r.tx.Exec(ctx, `UPDATE tax_accounts SET balance=$2 WHERE id=$1`, id, balance.String())
	if err != nil {
		return classify(op, err, nil)
	}
	if cmd.RowsAffected() == 0 {
		return shared.Referential(op, shared.ErrAccountNotFound)
	}
	return nil
}

func (r *txRepository) InsertJournal(ctx context.Context, e JournalEntry) error {
	op := "insert journal " + e.Correlative
	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO journal_entries (id, correlative, book, period, role, currency, xrate, date, document_date, memo, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.ID, e.Correlative, e.Book, e.Period, string(e.Role), string(e.Currency), e.XRate.String(), e.Date, e.DocumentDate, e.Memo, e.PostedAt)
	for _, l := range e.Lines {
		batch.Queue(`INSERT INTO journal_lines (entry_id, line_no, account_id, account_name, debit_fc, credit_fc, debit_sc, credit_sc)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			e.ID, l.LineNo, l.AccountID, l.AccountName, l.DebitFC.String(), l.CreditFC.String(), l.DebitSC.String(), l.CreditSC.String())
	}
	results := r.tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return classify(op, err, nil)
		}
	}
	return classify(op, results.Close(), nil)
}

// GetJournal loads a posted entry with its lines.
func (r *Repository) GetJournal(ctx context.Context, id uuid.UUID) (JournalEntry, error) {
	op := "get journal " + id.String()
	var e JournalEntry
	var role, cur string
	err := r.pool.QueryRow(ctx, `SELECT id, correlative, book, period, role, currency, xrate, date, document_date, memo, posted_at, reverted_by
FROM journal_entries WHERE id=$1`, id).
		Scan(&e.ID, &e.Correlative, &e.Book, &e.Period, &role, &cur, &e.XRate, &e.Date, &e.DocumentDate, &e.Memo, &e.PostedAt, &e.RevertedBy)
	if err != nil {
		return JournalEntry{}, classify(op, err, shared.ErrJournalNotFound)
	}
	e.Role = correlatives.Role(role)
	e.Currency = accounts.Currency(cur)
	rows, err := r.pool.Query(ctx, `SELECT line_no, account_id, account_name, debit_fc, credit_fc, debit_sc, credit_sc
FROM journal_lines WHERE entry_id=$1 ORDER BY line_no ASC`, id)
	if err != nil {
		return JournalEntry{}, classify(op, err, nil)
	}
	defer rows.Close()
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.LineNo, &l.AccountID, &l.AccountName, &l.DebitFC, &l.CreditFC, &l.DebitSC, &l.CreditSC); err != nil {
			return JournalEntry{}, classify(op, err, nil)
		}
		e.Lines = append(e.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return JournalEntry{}, classify(op, err, nil)
	}
	return e, nil
}

// UnbalancedEntry identifies a posted entry whose columns break double entry.
type UnbalancedEntry struct {
	ID          uuid.UUID
	Correlative string
	Totals      Totals
}

// ListUnbalanced returns the entries of period whose FC or SC columns do not balance.
func (r *Repository) ListUnbalanced(ctx context.Context, period string) ([]UnbalancedEntry, error) {
	op := "list unbalanced " + period
	rows, err := r.pool.Query(ctx, `SELECT e.id, e.correlative, SUM(l.debit_fc), SUM(l.credit_fc), SUM(l.debit_sc), SUM(l.credit_sc)
FROM journal_entries e JOIN journal_lines l ON l.entry_id = e.id
WHERE e.period=$1
GROUP BY e.id, e.correlative
HAVING SUM(l.debit_fc) <> SUM(l.credit_fc) OR SUM(l.debit_sc) <> SUM(l.credit_sc)
ORDER BY e.correlative`, period)
	if err != nil {
		return nil, classify(op, err, nil)
	}
	defer rows.Close()
	var out []UnbalancedEntry
	for rows.Next() {
		var u UnbalancedEntry
		if err := rows.Scan(&u.ID, &u.Correlative, &u.Totals.DebitFC, &u.Totals.CreditFC, &u.Totals.DebitSC, &u.Totals.CreditSC); err != nil {
			return nil, classify(op, err, nil)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err, nil)
	}
	return out, nil
}

// classify tags a storage error with its kind. notFound, when set, is the
// sentinel reported for pgx.ErrNoRows.
func classify(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	var tagged *shared.Error
	if errors.As(err, &tagged) {
		return err
	}
	if notFound != nil && errors.Is(err, pgx.ErrNoRows) {
		return shared.Referential(op, notFound)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return shared.Contention(op, errors.Join(shared.ErrLockTimeout, err))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgQueryCanceled:
			return shared.Contention(op, errors.Join(shared.ErrLockTimeout, err))
		case pgForeignKeyViolation:
			return shared.Referential(op, err)
		}
	}
	return shared.Persistence(op, err)
}
