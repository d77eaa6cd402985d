package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/audioscribe/internal/pipeline"
	"github.com/snarg/audioscribe/internal/transcribe"
)

// Transcriber runs the pipeline for one upload.
type Transcriber interface {
	Transcribe(ctx context.Context, up pipeline.Upload) (*pipeline.Result, error)
}

// TranscribeResponse is the success body. Text is the only field the legacy
// clients read.
type TranscribeResponse struct {
	Text             string            `json:"text"`
	Units            int               `json:"units"`
	Strategy         string            `json:"strategy"`
	Engine           string            `json:"engine"`
	Language         string            `json:"language"`
	DetectedLanguage string            `json:"detected_language,omitempty"`
	DurationMs       int64             `json:"duration_ms"`
	AudioSeconds     float64           `json:"audio_seconds"`
	Words            []transcribe.Word `json:"words,omitempty"`
}

// TranscribeHandler accepts multipart audio uploads.
type TranscribeHandler struct {
	tr        Transcriber
	maxMemory int64
	log       zerolog.Logger
}

// NewTranscribeHandler creates the upload handler. Parts larger than
// maxMemory are spooled to disk by the multipart reader.
func NewTranscribeHandler(tr Transcriber, maxMemory int64, log zerolog.Logger) *TranscribeHandler {
	if maxMemory <= 0 {
		maxMemory = 32 << 20
	}
	return &TranscribeHandler{
		tr:        tr,
		maxMemory: maxMemory,
		log:       log.With().Str("handler", "transcribe").Logger(),
	}
}

// Routes registers the upload endpoint.
func (h *TranscribeHandler) Routes(r chi.Router) {
	r.Post("/transcribe", h.Transcribe)
}

// Transcribe handles POST /transcribe and POST /api/v1/transcribe.
// Form fields: file (required), language (optional, also ?language=).
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorDetail(w, http.StatusRequestEntityTooLarge, msgUploadTooLarge, err.Error())
			return
		}
		WriteErrorDetail(w, http.StatusBadRequest, msgInvalidUpload, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, msgInvalidUpload, "missing form field \"file\"")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		WriteErrorDetail(w, http.StatusBadRequest, msgInvalidUpload, "empty file name")
		return
	}

	lang := r.FormValue("language")
	if lang == "" {
		lang, _ = QueryString(r, "language")
	}

	res, err := h.tr.Transcribe(r.Context(), pipeline.Upload{
		Data:        file,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Language:    lang,
		RequestID:   RequestIDFrom(r.Context()),
	})
	if err != nil {
		WriteFailure(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, TranscribeResponse{
		Text:             res.Text,
		Units:            res.Units,
		Strategy:         res.Strategy,
		Engine:           res.Engine,
		Language:         res.Language,
		DetectedLanguage: res.Detected,
		DurationMs:       res.Duration.Milliseconds(),
		AudioSeconds:     res.AudioDuration.Seconds(),
		Words:            res.Words,
	})
}
