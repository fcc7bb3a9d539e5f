package accounts

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Nature tells on which side of a movement an account balance grows.
type Nature string

const (
	NatureDebit  Nature = "DEBIT"
	NatureCredit Nature = "CREDIT"
)

// Valid reports whether n is a known nature.
func (n Nature) Valid() bool {
	return n == NatureDebit || n == NatureCredit
}

// Currency enumerates the currencies an account or entry can be kept in.
type Currency string

const (
	CurrencyPEN Currency = "PEN"
	CurrencyUSD Currency = "USD"
)

// ParseCurrency normalises an ISO 4217 code into a supported Currency.
func ParseCurrency(code string) (Currency, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return "", fmt.Errorf("%w: %q", shared.ErrUnsupportedCurrency, code)
	}
	switch c := Currency(unit.String()); c {
	case CurrencyPEN, CurrencyUSD:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %s", shared.ErrUnsupportedCurrency, c)
	}
}

// TaxAccount is a ledger account whose running balance the posting engine maintains.
// Balance is always expressed in Currency.
type TaxAccount struct {
	ID       int64
	Code     string
	Name     string
	Nature   Nature
	Currency Currency
	Balance  decimal.Decimal
}
