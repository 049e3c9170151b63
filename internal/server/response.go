package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	pdfcompose "github.com/alnah/go-pdfcompose"
)

// Error codes returned in the JSON body.
const (
	codeBadRequest       = "bad_request"
	codeValidation       = "validation_failed"
	codeTooLarge         = "payload_too_large"
	codeTimeout          = "timeout"
	codeUnavailable      = "unavailable"
	codeRenderFailed     = "render_failed"
	codeInternal         = "internal_error"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
)

type errorBody struct {
	Error     errorDetail `json:"error"`
	RequestID string      `json:"requestId,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorBody{
		Error:     errorDetail{Code: code, Message: message},
		RequestID: RequestID(r.Context()),
	})
}

func tooLargeMessage(limit int64) string {
	return fmt.Sprintf("request body exceeds %d bytes", limit)
}

// classify maps a compose error to an HTTP status and error code.
func classify(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, codeTooLarge
	case pdfcompose.IsValidationError(err):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeTimeout
	case errors.Is(err, pdfcompose.ErrComposerClosed), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, codeUnavailable
	default:
		return http.StatusInternalServerError, codeRenderFailed
	}
}
