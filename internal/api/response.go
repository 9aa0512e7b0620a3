package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"SeasonalDesk/internal/asset"
	"SeasonalDesk/internal/workbook"
)

// Envelope is the uniform response body of every JSON endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// statusError attaches an HTTP status to an error.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func withStatus(status int, err error) error {
	return &statusError{status: status, err: err}
}

func badRequest(format string, args ...any) error {
	return withStatus(http.StatusBadRequest, fmt.Errorf(format, args...))
}

func statusFor(err error) int {
	var se *statusError
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &se):
		return se.status
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, asset.ErrAssetRequired), errors.Is(err, workbook.ErrNoSheets):
		return http.StatusBadRequest
	case errors.Is(err, asset.ErrRowNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondData(w http.ResponseWriter, r *http.Request, data any) {
	render.JSON(w, r, Envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, r *http.Request, msg string) {
	render.JSON(w, r, Envelope{Success: true, Message: msg})
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")

	render.Status(r, status)
	render.JSON(w, r, Envelope{Success: false, Error: errorMessage(err)})
}

// errorMessage flattens validation errors into one readable line.
func errorMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, len(ve))
	for i, fe := range ve {
		parts[i] = fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
	}
	return "invalid request: " + strings.Join(parts, "; ")
}
