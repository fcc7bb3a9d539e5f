package journals

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/correlatives"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

const dateLayout = "2006-01-02"

var validate = validator.New(validator.WithRequiredStructEnabled())

// PostingLineRequest is the wire form of a journal line.
type PostingLineRequest struct {
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
	DebitFC   string `json:"debit_fc" validate:"omitempty,numeric"`
	CreditFC  string `json:"credit_fc" validate:"omitempty,numeric"`
	DebitSC   string `json:"debit_sc" validate:"omitempty,numeric"`
	CreditSC  string `json:"credit_sc" validate:"omitempty,numeric"`
}

// PostingRequest is the wire form of a journal entry submitted for posting.
// It is shared by the HTTP API and the batch posting task.
type PostingRequest struct {
	Book         string               `json:"book" validate:"required,max=10,alphanum"`
	Period       string               `json:"period" validate:"required,len=6,numeric"`
	Role         string               `json:"role" validate:"required,oneof=A M C"`
	Currency     string               `json:"currency" validate:"required,len=3"`
	XRate        string               `json:"xrate" validate:"required,numeric"`
	Date         string               `json:"date" validate:"required,datetime=2006-01-02"`
	DocumentDate string               `json:"document_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Memo         string               `json:"memo" validate:"max=500"`
	Lines        []PostingLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ToEntry validates the request and converts it into a JournalEntry ready to post.
func (req PostingRequest) ToEntry() (JournalEntry, error) {
	const op = "decode posting"
	if err := validate.Struct(req); err != nil {
		return JournalEntry{}, shared.Validation(op, err)
	}
	role, err := correlatives.ParseRole(req.Role)
	if err != nil {
		return JournalEntry{}, shared.Validation(op, err)
	}
	cur, err := accounts.ParseCurrency(req.Currency)
	if err != nil {
		return JournalEntry{}, shared.Validation(op, err)
	}
	xrate, err := decimal.NewFromString(req.XRate)
	if err != nil {
		return JournalEntry{}, shared.Validation(op, fmt.Errorf("xrate: %w", err))
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return JournalEntry{}, shared.Validation(op, fmt.Errorf("date: %w", err))
	}
	entry := JournalEntry{
		Book:     req.Book,
		Period:   req.Period,
		Role:     role,
		Currency: cur,
		XRate:    xrate,
		Date:     date,
		Memo:     req.Memo,
		Lines:    make([]JournalLine, 0, len(req.Lines)),
	}
	if req.DocumentDate != "" {
		doc, err := time.Parse(dateLayout, req.DocumentDate)
		if err != nil {
			return JournalEntry{}, shared.Validation(op, fmt.Errorf("document_date: %w", err))
		}
		entry.DocumentDate = &doc
	}
	for idx, l := range req.Lines {
		line := JournalLine{LineNo: idx + 1, AccountID: l.AccountID}
		fields := []struct {
			raw string
			dst *decimal.Decimal
		}{
			{l.DebitFC, &line.DebitFC},
			{l.CreditFC, &line.CreditFC},
			{l.DebitSC, &line.DebitSC},
			{l.CreditSC, &line.CreditSC},
		}
		for _, f := range fields {
			if f.raw == "" {
				continue
			}
			v, err := decimal.NewFromString(f.raw)
			if err != nil {
				return JournalEntry{}, shared.Validation(op, fmt.Errorf("line %d: %w", idx+1, err))
			}
			*f.dst = v
		}
		entry.Lines = append(entry.Lines, line)
	}
	if err := entry.Validate(); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// Validate checks the entry shape before any transaction starts. Double entry
// balance is the caller's precondition and is not checked here.
func (e JournalEntry) Validate() error {
	const op = "validate entry"
	if e.Book == "" {
		return shared.Validation(op, errors.New("accounting: book required"))
	}
	if _, _, err := periods.ParseCode(e.Period); err != nil {
		return shared.Validation(op, err)
	}
	if _, err := correlatives.ParseRole(string(e.Role)); err != nil {
		return shared.Validation(op, err)
	}
	if e.Currency != accounts.CurrencyPEN && e.Currency != accounts.CurrencyUSD {
		return shared.Validation(op, fmt.Errorf("%w: %q", shared.ErrUnsupportedCurrency, e.Currency))
	}
	if !e.XRate.IsPositive() {
		return shared.Validation(op, shared.ErrInvalidXRate)
	}
	if len(e.Lines) == 0 {
		return shared.Validation(op, shared.ErrTooFewLines)
	}
	for idx, l := range e.Lines {
		if l.AccountID <= 0 {
			return shared.Validation(op, fmt.Errorf("accounting: line %d missing account", idx+1))
		}
		if l.DebitFC.IsNegative() || l.CreditFC.IsNegative() || l.DebitSC.IsNegative() || l.CreditSC.IsNegative() {
			return shared.Validation(op, fmt.Errorf("line %d: %w", idx+1, shared.ErrNegativeAmount))
		}
		if _, err := l.Movement().Nature(); err != nil {
			return shared.Validation(op, fmt.Errorf("line %d: %w", idx+1, err))
		}
	}
	return nil
}

// PostedLineResponse is the wire form of a posted line.
type PostedLineResponse struct {
	LineNo      int    `json:"line_no"`
	AccountID   int64  `json:"account_id"`
	AccountName string `json:"account_name"`
	DebitFC     string `json:"debit_fc"`
	CreditFC    string `json:"credit_fc"`
	DebitSC     string `json:"debit_sc"`
	CreditSC    string `json:"credit_sc"`
}

// PostedEntryResponse is the wire form of a posted entry.
type PostedEntryResponse struct {
	ID           uuid.UUID            `json:"id"`
	Correlative  string               `json:"correlative"`
	Book         string               `json:"book"`
	Period       string               `json:"period"`
	Role         string               `json:"role"`
	Currency     string               `json:"currency"`
	XRate        string               `json:"xrate"`
	Date         string               `json:"date"`
	DocumentDate string               `json:"document_date,omitempty"`
	Memo         string               `json:"memo,omitempty"`
	PostedAt     time.Time            `json:"posted_at"`
	RevertedBy   *uuid.UUID           `json:"reverted_by,omitempty"`
	Lines        []PostedLineResponse `json:"lines"`
}

// NewPostedEntryResponse converts a posted entry into its wire form.
func NewPostedEntryResponse(e JournalEntry) PostedEntryResponse {
	resp := PostedEntryResponse{
		ID:          e.ID,
		Correlative: e.Correlative,
		Book:        e.Book,
		Period:      e.Period,
		Role:        string(e.Role),
		Currency:    string(e.Currency),
		XRate:       e.XRate.String(),
		Date:        e.Date.Format(dateLayout),
		Memo:        e.Memo,
		PostedAt:    e.PostedAt,
		RevertedBy:  e.RevertedBy,
		Lines:       make([]PostedLineResponse, 0, len(e.Lines)),
	}
	if e.DocumentDate != nil {
		resp.DocumentDate = e.DocumentDate.Format(dateLayout)
	}
	for _, l := range e.Lines {
		resp.Lines = append(resp.Lines, PostedLineResponse{
			LineNo:      l.LineNo,
			AccountID:   l.AccountID,
			AccountName: l.AccountName,
			DebitFC:     l.DebitFC.StringFixed(2),
			CreditFC:    l.CreditFC.StringFixed(2),
			DebitSC:     l.DebitSC.StringFixed(2),
			CreditSC:    l.CreditSC.StringFixed(2),
		})
	}
	return resp
}
