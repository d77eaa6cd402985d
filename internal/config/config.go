package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":5050"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	AuthToken    string        `env:"AUTH_TOKEN"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:","`
	MaxUploadMB  int           `env:"MAX_UPLOAD_MB" envDefault:"100"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`

	TempDir     string        `env:"TEMP_DIR"`
	ArtifactTTL time.Duration `env:"ARTIFACT_TTL" envDefault:"1h"`

	Engine        string        `env:"ENGINE" envDefault:"whisper"`
	EngineTimeout time.Duration `env:"ENGINE_TIMEOUT" envDefault:"5m"`

	VoskURL   string `env:"VOSK_URL" envDefault:"ws://localhost:2700"`
	VoskModel string `env:"VOSK_MODEL"`

	WhisperURL    string `env:"WHISPER_URL" envDefault:"http://localhost:8000/v1/audio/transcriptions"`
	WhisperModel  string `env:"WHISPER_MODEL" envDefault:"small"`
	WhisperAPIKey string `env:"WHISPER_API_KEY"`

	ElevenLabsAPIKey   string `env:"ELEVENLABS_API_KEY"`
	ElevenLabsModel    string `env:"ELEVENLABS_MODEL" envDefault:"scribe_v1"`
	ElevenLabsKeyterms string `env:"ELEVENLABS_KEYTERMS"`

	DeepInfraAPIKey string `env:"DEEPINFRA_API_KEY"`
	DeepInfraModel  string `env:"DEEPINFRA_MODEL" envDefault:"openai/whisper-large-v3-turbo"`

	Language              string        `env:"LANGUAGE" envDefault:"ar"`
	SampleRate            int           `env:"SAMPLE_RATE" envDefault:"16000"`
	SampleEncoding        string        `env:"SAMPLE_ENCODING" envDefault:"s16"`
	FrameSamples          int           `env:"FRAME_SAMPLES" envDefault:"4000"`
	SegmentWindow         time.Duration `env:"SEGMENT_WINDOW" envDefault:"30s"`
	TranscribeConcurrency int           `env:"TRANSCRIBE_CONCURRENCY" envDefault:"1"`
	Transcoder            string        `env:"TRANSCODER" envDefault:"auto"`

	// Decoding options sent with every unit. Engines without a matching
	// parameter ignore them.
	TranscribePrompt      string  `env:"TRANSCRIBE_PROMPT"`
	TranscribeHotwords    string  `env:"TRANSCRIBE_HOTWORDS"`
	TranscribeTemperature float64 `env:"TRANSCRIBE_TEMPERATURE" envDefault:"0"`
	TranscribeBeamSize    int     `env:"TRANSCRIBE_BEAM_SIZE" envDefault:"0"`
	TranscribeVadFilter   bool    `env:"TRANSCRIBE_VAD_FILTER" envDefault:"false"`

	// MQTT result events are optional; empty broker URL disables them.
	MQTTBrokerURL   string `env:"MQTT_BROKER_URL"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" envDefault:"audioscribe"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"audioscribe"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile  string
	HTTPAddr string
	LogLevel string
	Engine   string
	Language string
	TempDir  string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.Engine != "" {
		cfg.Engine = overrides.Engine
	}
	if overrides.Language != "" {
		cfg.Language = overrides.Language
	}
	if overrides.TempDir != "" {
		cfg.TempDir = overrides.TempDir
	}

	cfg.Engine = strings.ToLower(strings.TrimSpace(cfg.Engine))
	cfg.SampleEncoding = strings.ToLower(strings.TrimSpace(cfg.SampleEncoding))
	cfg.Transcoder = strings.ToLower(strings.TrimSpace(cfg.Transcoder))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and the settings the selected engine needs.
// All problems are reported at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Engine {
	case "vosk":
		if c.VoskURL == "" {
			errs = append(errs, errors.New("ENGINE=vosk requires VOSK_URL"))
		}
		// vosk-server only takes 16-bit PCM frames.
		if c.SampleEncoding != "s16" {
			errs = append(errs, errors.New("ENGINE=vosk requires SAMPLE_ENCODING=s16"))
		}
	case "whisper":
		if c.WhisperURL == "" {
			errs = append(errs, errors.New("ENGINE=whisper requires WHISPER_URL"))
		}
	case "elevenlabs":
		if c.ElevenLabsAPIKey == "" {
			errs = append(errs, errors.New("ENGINE=elevenlabs requires ELEVENLABS_API_KEY"))
		}
	case "deepinfra":
		if c.DeepInfraAPIKey == "" {
			errs = append(errs, errors.New("ENGINE=deepinfra requires DEEPINFRA_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("ENGINE %q not supported (vosk, whisper, elevenlabs, deepinfra)", c.Engine))
	}

	switch c.SampleEncoding {
	case "s16", "f32":
	default:
		errs = append(errs, fmt.Errorf("SAMPLE_ENCODING %q not supported (s16, f32)", c.SampleEncoding))
	}
	switch c.Transcoder {
	case "auto", "ffmpeg", "sox", "none":
	default:
		errs = append(errs, fmt.Errorf("TRANSCODER %q not supported (auto, ffmpeg, sox, none)", c.Transcoder))
	}

	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("SAMPLE_RATE %d out of range 8000..48000", c.SampleRate))
	}
	if c.FrameSamples <= 0 {
		errs = append(errs, fmt.Errorf("FRAME_SAMPLES must be positive, got %d", c.FrameSamples))
	}
	if c.SegmentWindow < time.Second {
		errs = append(errs, fmt.Errorf("SEGMENT_WINDOW must be at least 1s, got %s", c.SegmentWindow))
	}
	if c.TranscribeConcurrency < 1 {
		errs = append(errs, fmt.Errorf("TRANSCRIBE_CONCURRENCY must be at least 1, got %d", c.TranscribeConcurrency))
	}
	if c.TranscribeTemperature < 0 || c.TranscribeTemperature > 1 {
		errs = append(errs, fmt.Errorf("TRANSCRIBE_TEMPERATURE %g out of range 0..1", c.TranscribeTemperature))
	}
	if c.TranscribeBeamSize < 0 {
		errs = append(errs, fmt.Errorf("TRANSCRIBE_BEAM_SIZE must not be negative, got %d", c.TranscribeBeamSize))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB))
	}
	if c.ArtifactTTL < time.Minute {
		errs = append(errs, fmt.Errorf("ARTIFACT_TTL must be at least 1m, got %s", c.ArtifactTTL))
	}

	return errors.Join(errs...)
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
