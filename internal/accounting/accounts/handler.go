package accounts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

type accountResponse struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Nature   Nature `json:"nature"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

type listResponse struct {
	Items      []accountResponse         `json:"items"`
	Pagination internalShared.Pagination `json:"pagination"`
}

func toResponse(a TaxAccount) accountResponse {
	return accountResponse{
		ID:       a.ID,
		Code:     a.Code,
		Name:     a.Name,
		Nature:   a.Nature,
		Currency: string(a.Currency),
		Balance:  a.Balance.StringFixed(2),
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	accounts, page, err := h.service.List(r.Context(), internalShared.PaginationFromQuery(r.URL.Query()))
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toResponse(a))
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: out, Pagination: page})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, shared.ErrAccountNotFound) {
			h.logger.Error("get account", slog.Any("error", err), slog.Int64("account_id", id))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(account))
}
