package journals

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// IdempotencyHeader carries the client submission key.
const IdempotencyHeader = "Idempotency-Key"

// Poster is the part of Service the HTTP handler drives.
type Poster interface {
	PostJournalOnce(ctx context.Context, key string, entry JournalEntry) (JournalEntry, error)
	GetJournal(ctx context.Context, id uuid.UUID) (JournalEntry, error)
}

// Handler serves the journal posting API.
type Handler struct {
	service Poster
	logger  *slog.Logger
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service Poster) *Handler {
	return &Handler{logger: logger, service: service}
}

// Create posts the entry in the request body, at most once per Idempotency-Key.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req PostingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	entry, err := req.ToEntry()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	posted, err := h.service.PostJournalOnce(r.Context(), r.Header.Get(IdempotencyHeader), entry)
	if err != nil {
		if errors.Is(err, shared.ErrDuplicateSubmission) {
			w.Header().Set("Location", "/api/journals/"+posted.ID.String())
			httpx.Problem(w, http.StatusConflict, "Duplicate Submission", posted.ID.String())
			return
		}
		if shared.KindOf(err) == shared.KindPersistence {
			h.logger.Error("post journal", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Location", "/api/journals/"+posted.ID.String())
	httpx.JSON(w, http.StatusCreated, NewPostedEntryResponse(posted))
}

// Get returns a posted entry by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid journal id")
		return
	}
	entry, err := h.service.GetJournal(r.Context(), id)
	if err != nil {
		if shared.KindOf(err) != shared.KindReferential {
			h.logger.Error("get journal", slog.Any("error", err), slog.String("id", id.String()))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewPostedEntryResponse(entry))
}
