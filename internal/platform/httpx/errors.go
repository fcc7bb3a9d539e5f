// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// RespondError maps tagged domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch shared.KindOf(err) {
	case shared.KindValidation:
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case shared.KindReferential:
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case shared.KindContention:
		w.Header().Set("Retry-After", "1")
		Problem(w, http.StatusConflict, "Contention", err.Error())
	default:
		switch {
		case errors.Is(err, shared.ErrAccountNotFound), errors.Is(err, shared.ErrJournalNotFound):
			Problem(w, http.StatusNotFound, "Not Found", err.Error())
		default:
			Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
	}
}
