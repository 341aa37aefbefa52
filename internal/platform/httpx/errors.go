package httpx

import (
	"errors"
	"net/http"

	"github.com/esakrissa/modern-isoner/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrPermissionDenied):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// RespondConcealed maps errors for row-scoped resources. A caller who fails
// the ownership predicate receives the same 404 as for a missing row, so
// existence of forbidden rows is never revealed.
func RespondConcealed(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrPermissionDenied) || errors.Is(err, shared.ErrNotFound) {
		Problem(w, http.StatusNotFound, "Not Found", "")
		return
	}
	RespondError(w, err)
}
