// Package apierror translates domain error kinds into HTTP responses.
package apierror

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careorbit/clinic/internal/domain"
)

// From maps err onto an *echo.HTTPError. Validation and field errors keep
// their message; store and unknown failures get a fixed message so driver
// detail never reaches the client. The original error is kept as Internal
// for the request logger.
func From(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	code, msg := http.StatusInternalServerError, "internal error"
	var fe *domain.FieldError
	switch {
	case errors.As(err, &fe):
		code, msg = http.StatusBadRequest, fe.Error()
	case errors.Is(err, domain.ErrValidation):
		code, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		code, msg = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, domain.ErrForbidden):
		code, msg = http.StatusForbidden, "not permitted for this role"
	case errors.Is(err, domain.ErrNotFound):
		code, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrDuplicate):
		code, msg = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrConflict):
		code, msg = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrStore):
		code, msg = http.StatusServiceUnavailable, "store temporarily unavailable, retry later"
	}
	return echo.NewHTTPError(code, msg).SetInternal(err)
}

// BadRequest is shorthand for malformed request input caught in a handler.
func BadRequest(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
