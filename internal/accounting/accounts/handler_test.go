package accounts

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type stubRepo struct {
	accounts      []TaxAccount
	limit, offset int
}

func (s *stubRepo) List(_ context.Context, limit, offset int) ([]TaxAccount, int, error) {
	s.limit, s.offset = limit, offset
	end := min(offset+limit, len(s.accounts))
	if offset >= len(s.accounts) {
		return nil, len(s.accounts), nil
	}
	return s.accounts[offset:end], len(s.accounts), nil
}

func (s *stubRepo) Get(_ context.Context, id int64) (TaxAccount, error) {
	for _, a := range s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return TaxAccount{}, shared.Referential("get account", shared.ErrAccountNotFound)
}

func newTestRouter(repo Repository) http.Handler {
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo)).MountRoutes(r)
	return r
}

func TestHandlerListPaginates(t *testing.T) {
	repo := &stubRepo{accounts: []TaxAccount{
		{ID: 1, Code: "1011", Name: "Caja", Nature: NatureDebit, Currency: CurrencyPEN, Balance: dec("150")},
		{ID: 2, Code: "1041", Name: "Banco USD", Nature: NatureDebit, Currency: CurrencyUSD, Balance: dec("-100")},
		{ID: 3, Code: "4011", Name: "IGV", Nature: NatureCredit, Currency: CurrencyPEN, Balance: dec("0")},
	}}
	rec := httptest.NewRecorder()
	newTestRouter(repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?page=2&per_page=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, repo.limit)
	require.Equal(t, 2, repo.offset)

	var body struct {
		Items []struct {
			Code    string `json:"code"`
			Balance string `json:"balance"`
		} `json:"items"`
		Pagination struct {
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, "4011", body.Items[0].Code)
	require.Equal(t, "0.00", body.Items[0].Balance)
	require.Equal(t, 3, body.Pagination.Total)
	require.Equal(t, 2, body.Pagination.TotalPages)
}

func TestHandlerGet(t *testing.T) {
	repo := &stubRepo{accounts: []TaxAccount{{ID: 7, Code: "1041", Currency: CurrencyUSD, Balance: dec("-100")}}}
	router := newTestRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"balance":"-100.00"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/8", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
