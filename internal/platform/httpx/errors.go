// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/tallyerp/bookkeeping/internal/shared"
)

// RespondError maps the shared error taxonomy to RFC7807 responses.
func RespondError(w http.ResponseWriter, err error) {
	var (
		validation *shared.ValidationError
		notFound   *shared.NotFoundError
		conflict   *shared.ConflictError
		malformed  *shared.MalformedError
	)
	switch {
	case errors.As(err, &malformed):
		ProblemWithReasons(w, http.StatusBadRequest, "Bad Request", malformed.Error(), []string{malformed.Reason})
	case errors.Is(err, shared.ErrMalformed):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.As(err, &validation):
		ProblemWithReasons(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error(), validation.Reasons)
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.As(err, &notFound):
		Problem(w, http.StatusNotFound, "Not Found", notFound.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &conflict):
		ProblemWithReasons(w, http.StatusConflict, "Conflict", conflict.Error(), []string{conflict.Reason})
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrNoSession):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// StatusOf returns the status RespondError would write for err.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, shared.ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrNoSession):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
