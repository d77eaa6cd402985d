// Package transcribe holds the adapters for the external speech-to-text
// engines. Batch engines implement Provider and take one self-contained
// audio file per call. Streaming engines implement Recognizer and keep
// decoder state across frames inside a Session.
package transcribe

import "context"

// Provider is the interface for stateless batch speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error)
	Name() string  // "whisper", "elevenlabs", "deepinfra"
	Model() string // model identifier for logs and health
}

// Recognizer is the interface for stateful streaming backends. A Session
// lives for exactly one request.
type Recognizer interface {
	NewSession(ctx context.Context, sampleRate int, opts TranscribeOpts) (Session, error)
	Name() string
	Model() string
}

// Session feeds raw mono PCM frames to a streaming recognizer.
//
// AcceptFrame returns a non-empty text when the recognizer closed an
// utterance with that frame. Flush ends the stream and returns whatever the
// recognizer still holds, possibly empty. Close is always called, also after
// a failed AcceptFrame.
type Session interface {
	AcceptFrame(ctx context.Context, frame []byte) (string, error)
	Flush(ctx context.Context) (string, error)
	Close() error
}

// TranscribeOpts are per-request options. Zero-value fields are omitted from
// outgoing requests so servers that ignore unknown fields keep working.
// Providers ignore fields their API has no counterpart for.
type TranscribeOpts struct {
	Language    string
	Prompt      string  // initial prompt / domain vocabulary
	Hotwords    string  // comma-separated boost terms
	Temperature float64 // 0 = server default
	BeamSize    int     // 0 = server default
	VadFilter   bool
}

// Response is the common transcription result from any provider.
type Response struct {
	Text     string
	Language string // language the engine reports, may be empty
	Words    []Word // nil if provider doesn't support word timestamps
}

// Word is a timestamped word from any STT provider. Times are relative to
// the start of the audio the provider was given.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
}
