package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/sheetcast/internal/logging"
)

var (
	errTemplateNotFound = errors.New("template not found")
	errMissingFile      = errors.New("multipart field \"file\" is required")
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeTemplateNotFound   = "template_not_found"
	CodeMissingFile        = "missing_file"
	CodeInvalidRequest     = "invalid_request"
	CodeFileTooLarge       = "file_too_large"
	CodeTooManyValidations = "too_many_validations"
	CodeValidationTimeout  = "validation_timeout"
	CodeInternal           = "internal_error"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps err to a status and a code. Unknown errors are internal.
func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, errTemplateNotFound):
		return http.StatusNotFound, CodeTemplateNotFound
	case errors.Is(err, errMissingFile):
		return http.StatusBadRequest, CodeMissingFile
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, CodeFileTooLarge
	case errors.Is(err, ErrTooManyValidations):
		return http.StatusServiceUnavailable, CodeTooManyValidations
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeValidationTimeout
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// respondError logs err with the request id and writes an ErrorResponse.
// Internal errors are not echoed to the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{"path", r.URL.Path, "status", status, "code", code, "error", err}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	msg := err.Error()
	if code == CodeInternal {
		msg = "internal server error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
