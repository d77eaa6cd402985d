package transcribe

import (
	"fmt"
	"strings"
	"time"
)

// Engine kinds accepted by New.
const (
	KindVosk       = "vosk"
	KindWhisper    = "whisper"
	KindElevenLabs = "elevenlabs"
	KindDeepInfra  = "deepinfra"
)

// Options selects and configures one engine.
type Options struct {
	Kind    string
	Timeout time.Duration

	VoskURL   string
	VoskModel string

	WhisperURL    string
	WhisperModel  string
	WhisperAPIKey string

	ElevenLabsAPIKey   string
	ElevenLabsModel    string
	ElevenLabsKeyterms string

	DeepInfraAPIKey string
	DeepInfraModel  string
}

// Engine is the inference handle shared by all requests. Exactly one of
// Provider or Recognizer is set. It is built once at startup and only read
// afterwards.
type Engine struct {
	provider   Provider
	recognizer Recognizer
}

// New builds the engine named by opts.Kind.
func New(opts Options) (*Engine, error) {
	switch strings.ToLower(opts.Kind) {
	case KindVosk:
		if opts.VoskURL == "" {
			return nil, fmt.Errorf("vosk engine requires VOSK_URL")
		}
		return NewStreamingEngine(NewVoskClient(opts.VoskURL, opts.VoskModel, opts.Timeout)), nil
	case KindWhisper:
		if opts.WhisperURL == "" {
			return nil, fmt.Errorf("whisper engine requires WHISPER_URL")
		}
		return NewBatchEngine(NewWhisperClient(opts.WhisperURL, opts.WhisperModel, opts.WhisperAPIKey, opts.Timeout)), nil
	case KindElevenLabs:
		if opts.ElevenLabsAPIKey == "" {
			return nil, fmt.Errorf("elevenlabs engine requires ELEVENLABS_API_KEY")
		}
		return NewBatchEngine(NewElevenLabsClient(opts.ElevenLabsAPIKey, opts.ElevenLabsModel, opts.ElevenLabsKeyterms, opts.Timeout)), nil
	case KindDeepInfra:
		if opts.DeepInfraAPIKey == "" {
			return nil, fmt.Errorf("deepinfra engine requires DEEPINFRA_API_KEY")
		}
		return NewBatchEngine(NewDeepInfraClient(opts.DeepInfraAPIKey, opts.DeepInfraModel, opts.Timeout)), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (supported: vosk, whisper, elevenlabs, deepinfra)", opts.Kind)
	}
}

// NewBatchEngine wraps a stateless provider.
func NewBatchEngine(p Provider) *Engine { return &Engine{provider: p} }

// NewStreamingEngine wraps a stateful recognizer.
func NewStreamingEngine(r Recognizer) *Engine { return &Engine{recognizer: r} }

// Streaming reports whether the engine consumes raw frames through sessions.
func (e *Engine) Streaming() bool { return e.recognizer != nil }

// Provider returns the batch provider, nil for a streaming engine.
func (e *Engine) Provider() Provider { return e.provider }

// Recognizer returns the streaming recognizer, nil for a batch engine.
func (e *Engine) Recognizer() Recognizer { return e.recognizer }

// Name returns the backend name.
func (e *Engine) Name() string {
	if e.recognizer != nil {
		return e.recognizer.Name()
	}
	return e.provider.Name()
}

// Model returns the backend model identifier.
func (e *Engine) Model() string {
	if e.recognizer != nil {
		return e.recognizer.Model()
	}
	return e.provider.Model()
}
