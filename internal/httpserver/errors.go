package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/transport"
)

const (
	CodeValidation        = "validation"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeInvalidTransition = "invalid_transition"
	CodeEmptyCart         = "empty_cart"
	CodeInsufficientStock = "insufficient_stock"
	CodeUnavailable       = "unavailable"
	CodeInternal          = "internal"
)

// mapError turns a service error into an HTTP error carrying an
// ErrorResponse body and logs it under event.
func mapError(l *slog.Logger, event string, err error) error {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		l.Error(event, "status", status, "reason", body.Code, "error", err)
	} else {
		l.Warn(event, "status", status, "reason", body.Code, "error", err)
	}
	return echo.NewHTTPError(status, body).SetInternal(err)
}

func classify(err error) (int, transport.ErrorResponse) {
	var ise *apperr.InsufficientStockError
	switch {
	case errors.As(err, &ise):
		available := ise.Available
		return http.StatusUnprocessableEntity, transport.ErrorResponse{
			Code:      CodeInsufficientStock,
			Message:   ise.Error(),
			ProductID: ise.ProductID,
			Requested: ise.Requested,
			Available: &available,
		}
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, transport.ErrorResponse{Code: CodeValidation, Message: err.Error()}
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, transport.ErrorResponse{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusConflict, transport.ErrorResponse{Code: CodeInvalidTransition, Message: err.Error()}
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, transport.ErrorResponse{Code: CodeConflict, Message: err.Error()}
	case errors.Is(err, apperr.ErrEmptyCart):
		return http.StatusUnprocessableEntity, transport.ErrorResponse{Code: CodeEmptyCart, Message: err.Error()}
	case errors.Is(err, apperr.ErrUnavailable):
		return http.StatusServiceUnavailable, transport.ErrorResponse{Code: CodeUnavailable, Message: "temporarily unavailable, retry later"}
	default:
		return http.StatusInternalServerError, transport.ErrorResponse{Code: CodeInternal, Message: "internal error"}
	}
}

func badRequest(l *slog.Logger, event, reason string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, transport.ErrorResponse{Code: CodeValidation, Message: reason})
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	}
	if status >= http.StatusInternalServerError {
		return CodeInternal
	}
	return http.StatusText(status)
}

// ErrorHandler renders every error as an ErrorResponse, including the plain
// string errors raised by echo and the auth middleware.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	body := transport.ErrorResponse{Code: CodeInternal, Message: "internal error"}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch msg := he.Message.(type) {
		case transport.ErrorResponse:
			body = msg
		case string:
			body = transport.ErrorResponse{Code: codeForStatus(status), Message: msg}
		default:
			body = transport.ErrorResponse{Code: codeForStatus(status), Message: fmt.Sprint(msg)}
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, body)
}
