package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by handlers.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadGateway   = errors.New("upstream service unavailable")
)

// StatusError lets upstream failures carry their own HTTP status through to
// the response.
type StatusError interface {
	error
	HTTPStatus() int
}

// RespondError maps domain errors to envelope responses.
func RespondError(w http.ResponseWriter, err error) {
	var statusErr StatusError
	switch {
	case errors.Is(err, ErrNotFound):
		Fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		Fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		Fail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrUnauthorized):
		Fail(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, ErrBadGateway):
		Fail(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &statusErr):
		Fail(w, statusErr.HTTPStatus(), statusErr.Error())
	default:
		Fail(w, http.StatusInternalServerError, "Internal Error")
	}
}
