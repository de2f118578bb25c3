package httpx

import (
	"errors"
	"net/http"

	"github.com/descanso-app/descanso/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Stale-state conflicts get a dedicated title so clients can distinguish a
// lost optimistic race (refresh and retry) from a generic failure.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusForbidden, "Forbidden", "access denied")
	case errors.Is(err, shared.ErrStaleState):
		Problem(w, http.StatusConflict, "Stale State", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
