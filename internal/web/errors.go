package web

// errors.go provides unified error response handling for the API.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as operator-facing messages with action suggestions
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. The status is derived from the error's sentinel
//  4. Error is mapped via core.MapError to get the message and code
//  5. Technical error + context is logged with request ID for correlation

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/crmimport/internal/core"
	"github.com/JonMunkholm/crmimport/internal/ledger"
	"github.com/JonMunkholm/crmimport/internal/logging"
)

// ErrLedgerDisabled is returned by run endpoints when no database is configured.
var ErrLedgerDisabled = errors.New("run ledger is not configured")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// badRequest marks a client input problem.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrLedgerDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the technical error server-side and writes a JSON
// error body.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	var br *badRequest
	if errors.As(err, &br) {
		msg = core.UserMessage{Message: br.msg, Code: "HTTP400"}
	}

	logger := logging.FromContext(r.Context())
	logArgs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", logArgs...)
	} else {
		logger.Warn("request error", logArgs...)
	}

	writeJSONStatus(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
