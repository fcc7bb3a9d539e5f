package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Repository reads tax accounts outside of any posting transaction.
type Repository interface {
	List(ctx context.Context, limit, offset int) ([]TaxAccount, int, error)
	Get(ctx context.Context, id int64) (TaxAccount, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]TaxAccount, int, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name, nature, currency, balance, COUNT(*) OVER()
FROM tax_accounts ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, shared.Persistence("list accounts", err)
	}
	defer rows.Close()
	var (
		accounts []TaxAccount
		total    int
	)
	for rows.Next() {
		var a TaxAccount
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Nature, &a.Currency, &a.Balance, &total); err != nil {
			return nil, 0, shared.Persistence("list accounts", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.Persistence("list accounts", err)
	}
	return accounts, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (TaxAccount, error) {
	op := fmt.Sprintf("get account %d", id)
	var a TaxAccount
	err := r.db.QueryRow(ctx, `SELECT id, code, name, nature, currency, balance FROM tax_accounts WHERE id=$1`, id).
		Scan(&a.ID, &a.Code, &a.Name, &a.Nature, &a.Currency, &a.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TaxAccount{}, shared.Referential(op, shared.ErrAccountNotFound)
		}
		return TaxAccount{}, shared.Persistence(op, err)
	}
	return a, nil
}
