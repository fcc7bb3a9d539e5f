package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Store is the slice of the transactional repository the adjuster needs.
type Store interface {
	GetAccountForUpdate(ctx context.Context, id int64) (TaxAccount, error)
	UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error
}

// Movement carries the four amount fields of one journal line.
type Movement struct {
	AccountID int64
	DebitFC   decimal.Decimal
	CreditFC  decimal.Decimal
	DebitSC   decimal.Decimal
	CreditSC  decimal.Decimal
}

// Nature derives the movement side from the FC pair.
func (m Movement) Nature() (Nature, error) {
	debit, credit := !m.DebitFC.IsZero(), !m.CreditFC.IsZero()
	switch {
	case debit && !credit:
		return NatureDebit, nil
	case credit && !debit:
		return NatureCredit, nil
	default:
		return "", shared.ErrAmbiguousNature
	}
}

// Amount expresses the movement in the account currency.
func (m Movement) Amount(account Currency, entry Currency, xrate decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case account == CurrencyPEN && entry == CurrencyPEN:
		return m.DebitSC.Add(m.CreditSC), nil
	case account == CurrencyUSD && entry == CurrencyUSD:
		return m.DebitFC.Add(m.CreditFC), nil
	case account == CurrencyUSD && entry == CurrencyPEN:
		if !xrate.IsPositive() {
			return decimal.Zero, shared.ErrInvalidXRate
		}
		// DivRound rounds half away from zero, which is half-up for non-negative amounts.
		return m.DebitSC.Add(m.CreditSC).DivRound(xrate, 2), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %s account, %s entry", shared.ErrUnsupportedCurrencyPair, account, entry)
	}
}

// Apply returns the balance after the movement, growing it when natures match.
func Apply(account TaxAccount, nature Nature, amount decimal.Decimal) decimal.Decimal {
	if nature == account.Nature {
		return account.Balance.Add(amount)
	}
	return account.Balance.Sub(amount)
}

// Adjuster mutates tax account balances one journal line at a time.
type Adjuster struct{}

// NewAdjuster constructs an Adjuster.
func NewAdjuster() *Adjuster {
	return &Adjuster{}
}

// Adjust applies movement to its account and persists the new balance.
// The returned account carries the updated balance.
func (a *Adjuster) Adjust(ctx context.Context, store Store, m Movement, entryCurrency Currency, xrate decimal.Decimal) (TaxAccount, error) {
	nature, err := m.Nature()
	if err != nil {
		return TaxAccount{}, shared.Validation(fmt.Sprintf("adjust account %d", m.AccountID), err)
	}
	account, err := store.GetAccountForUpdate(ctx, m.AccountID)
	if err != nil {
		return TaxAccount{}, err
	}
	amount, err := m.Amount(account.Currency, entryCurrency, xrate)
	if err != nil {
		op := fmt.Sprintf("adjust account %d", account.ID)
		if errors.Is(err, shared.ErrInvalidXRate) {
			return TaxAccount{}, shared.Validation(op, err)
		}
		return TaxAccount{}, shared.Referential(op, err)
	}
	account.Balance = Apply(account, nature, amount)
	if err := store.UpdateAccountBalance(ctx, account.ID, account.Balance); err != nil {
		return TaxAccount{}, err
	}
	return account, nil
}
