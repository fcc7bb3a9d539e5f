package journals

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/correlatives"
)

// JournalEntry captures posting metadata. ID and Correlative are assigned on post.
type JournalEntry struct {
	ID           uuid.UUID
	Correlative  string
	Book         string
	Period       string
	Role         correlatives.Role
	Currency     accounts.Currency
	XRate        decimal.Decimal
	Date         time.Time
	DocumentDate *time.Time
	Memo         string
	PostedAt     time.Time
	RevertedBy   *uuid.UUID
	Lines        []JournalLine
}

// JournalLine stores the debit or credit amounts of one account movement,
// in entry currency (FC) and system currency (SC).
type JournalLine struct {
	LineNo      int
	AccountID   int64
	AccountName string
	DebitFC     decimal.Decimal
	CreditFC    decimal.Decimal
	DebitSC     decimal.Decimal
	CreditSC    decimal.Decimal
}

// Movement projects the line onto the balance adjuster input.
func (l JournalLine) Movement() accounts.Movement {
	return accounts.Movement{
		AccountID: l.AccountID,
		DebitFC:   l.DebitFC,
		CreditFC:  l.CreditFC,
		DebitSC:   l.DebitSC,
		CreditSC:  l.CreditSC,
	}
}

// Totals sums the four amount columns across lines.
type Totals struct {
	DebitFC  decimal.Decimal
	CreditFC decimal.Decimal
	DebitSC  decimal.Decimal
	CreditSC decimal.Decimal
}

// Balanced reports whether both currency columns satisfy double entry.
func (t Totals) Balanced() bool {
	return t.DebitFC.Equal(t.CreditFC) && t.DebitSC.Equal(t.CreditSC)
}

// Totals computes the column sums of the entry.
func (e JournalEntry) Totals() Totals {
	var t Totals
	for _, l := range e.Lines {
		t.DebitFC = t.DebitFC.Add(l.DebitFC)
		t.CreditFC = t.CreditFC.Add(l.CreditFC)
		t.DebitSC = t.DebitSC.Add(l.DebitSC)
		t.CreditSC = t.CreditSC.Add(l.CreditSC)
	}
	return t
}

// AccountIDs returns the distinct accounts referenced by the entry in ascending
// order, the canonical lock order shared by every posting.
func (e JournalEntry) AccountIDs() []int64 {
	seen := make(map[int64]struct{}, len(e.Lines))
	ids := make([]int64, 0, len(e.Lines))
	for _, l := range e.Lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		ids = append(ids, l.AccountID)
	}
	slices.Sort(ids)
	return ids
}
