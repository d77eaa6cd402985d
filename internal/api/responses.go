package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/snarg/audioscribe/internal/failure"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteErrorDetail writes a JSON error response with details.
func WriteErrorDetail(w http.ResponseWriter, status int, msg, details string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// Generic client-facing messages per failure kind. The cause goes in details.
const (
	msgInvalidUpload    = "please send a valid audio file"
	msgUploadTooLarge   = "audio file too large"
	msgDecodeFailed     = "failed to convert audio"
	msgFormatValidation = "converted audio failed format validation"
	msgInferenceFailed  = "transcription failed"
	msgInternal         = "internal server error"
	msgCanceled         = "request canceled"
)

// statusClientClosedRequest is the de-facto status for a client that went away.
const statusClientClosedRequest = 499

// FailureStatus maps a pipeline error to an HTTP status and generic message.
func FailureStatus(err error) (int, string) {
	if errors.Is(err, context.Canceled) {
		return statusClientClosedRequest, msgCanceled
	}
	switch failure.KindOf(err) {
	case failure.Upload:
		return http.StatusBadRequest, msgInvalidUpload
	case failure.Decode:
		return http.StatusInternalServerError, msgDecodeFailed
	case failure.FormatValidation:
		return http.StatusUnprocessableEntity, msgFormatValidation
	case failure.Inference:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, msgInferenceFailed
		}
		return http.StatusInternalServerError, msgInferenceFailed
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// WriteFailure writes {"error", "details"} for a pipeline error.
func WriteFailure(w http.ResponseWriter, err error) {
	status, msg := FailureStatus(err)
	WriteErrorDetail(w, status, msg, failure.Cause(err))
}

// QueryString extracts a non-empty string query parameter.
func QueryString(r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", false
	}
	return v, true
}
