package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/snarg/audioscribe/internal/failure"
)

func TestFailureStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"upload", failure.Errorf(failure.Upload, "read upload", "no data"), http.StatusBadRequest, msgInvalidUpload},
		{"decode", failure.Errorf(failure.Decode, "transcode", "ffmpeg exited 1"), http.StatusInternalServerError, msgDecodeFailed},
		{"format", failure.Errorf(failure.FormatValidation, "check", "channels = 2"), http.StatusUnprocessableEntity, msgFormatValidation},
		{"inference", failure.Errorf(failure.Inference, "unit 1", "boom"), http.StatusInternalServerError, msgInferenceFailed},
		{"inference_timeout", failure.New(failure.Inference, "unit 0", context.DeadlineExceeded), http.StatusGatewayTimeout, msgInferenceFailed},
		{"untagged", errors.New("surprise"), http.StatusInternalServerError, msgInternal},
		{"canceled", fmt.Errorf("decode: %w", context.Canceled), statusClientClosedRequest, msgCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := FailureStatus(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestWriteFailure_DetailsCarryCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteFailure(rec, failure.Errorf(failure.Decode, "transcode", "unsupported codec"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error != msgDecodeFailed {
		t.Errorf("error = %q", body.Error)
	}
	if body.Details != "unsupported codec" {
		t.Errorf("details = %q, want the bare cause", body.Details)
	}
}

func TestWriteError_OmitsEmptyDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "not found")

	var raw map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["details"]; ok {
		t.Error("details should be omitted when empty")
	}
	if raw["error"] != "not found" {
		t.Errorf("error = %v", raw["error"])
	}
}

func TestQueryString(t *testing.T) {
	r := httptest.NewRequest("GET", "/?language=en&empty=", nil)
	if v, ok := QueryString(r, "language"); !ok || v != "en" {
		t.Errorf("QueryString(language) = %q, %v", v, ok)
	}
	if _, ok := QueryString(r, "empty"); ok {
		t.Error("empty value should report false")
	}
	if _, ok := QueryString(r, "missing"); ok {
		t.Error("missing value should report false")
	}
}
