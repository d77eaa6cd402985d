package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// WhisperClient calls an OpenAI-compatible /v1/audio/transcriptions endpoint
// (faster-whisper-server, speaches, whisper.cpp server, OpenAI itself).
// Implements the Provider interface.
type WhisperClient struct {
	url    string
	model  string
	apiKey string
	client *http.Client
}

// whisperResponse is the verbose_json response body.
type whisperResponse struct {
	Text     string        `json:"text"`
	Language string        `json:"language"`
	Words    []whisperWord `json:"words"`
}

type whisperWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// NewWhisperClient creates a new Whisper HTTP client. apiKey may be empty for
// self-hosted servers.
func NewWhisperClient(url, model, apiKey string, timeout time.Duration) *WhisperClient {
	return &WhisperClient{
		url:    url,
		model:  model,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (wc *WhisperClient) Name() string { return "whisper" }

// Model returns the configured model identifier.
func (wc *WhisperClient) Model() string { return wc.model }

// Transcribe sends an audio file to the Whisper API and returns the result.
// Only non-default parameters are sent.
func (wc *WhisperClient) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error) {
	fr := &formRequest{url: wc.url, fileField: "file", audioPath: audioPath, header: http.Header{}}
	fr.field("model", wc.model)
	fr.field("language", opts.Language)
	if opts.Temperature > 0 {
		fr.field("temperature", strconv.FormatFloat(opts.Temperature, 'f', 2, 64))
	}
	fr.field("response_format", "verbose_json")
	fr.field("timestamp_granularities[]", "word")
	fr.field("prompt", opts.Prompt)
	fr.field("hotwords", opts.Hotwords)
	if opts.BeamSize > 0 {
		fr.field("beam_size", strconv.Itoa(opts.BeamSize))
	}
	if opts.VadFilter {
		fr.field("vad_filter", "true")
	}
	if wc.apiKey != "" {
		fr.header.Set("Authorization", "Bearer "+wc.apiKey)
	}

	body, err := postForm(ctx, wc.client, "whisper", fr)
	if err != nil {
		return nil, err
	}

	var result whisperResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var words []Word
	if len(result.Words) > 0 {
		words = make([]Word, len(result.Words))
		for i, ww := range result.Words {
			words[i] = Word{Word: ww.Word, Start: ww.Start, End: ww.End}
		}
	}

	return &Response{
		Text:     result.Text,
		Language: result.Language,
		Words:    words,
	}, nil
}
