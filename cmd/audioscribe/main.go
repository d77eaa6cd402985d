package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/snarg/audioscribe/internal/api"
	"github.com/snarg/audioscribe/internal/artifact"
	"github.com/snarg/audioscribe/internal/audio"
	"github.com/snarg/audioscribe/internal/chunk"
	"github.com/snarg/audioscribe/internal/config"
	"github.com/snarg/audioscribe/internal/metrics"
	"github.com/snarg/audioscribe/internal/mqttclient"
	"github.com/snarg/audioscribe/internal/pipeline"
	"github.com/snarg/audioscribe/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.Engine, "engine", "", "inference engine: vosk, whisper, elevenlabs, deepinfra")
	flag.StringVar(&overrides.Language, "language", "", "default language hint (overrides LANGUAGE)")
	flag.StringVar(&overrides.TempDir, "temp-dir", "", "artifact directory (overrides TEMP_DIR)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		os.Stdout.WriteString(version + "\n")
		return
	}

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Str("engine", cfg.Engine).Msg("audioscribe starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Artifacts
	artifactLog := log.With().Str("component", "artifact").Logger()
	artifacts, err := artifact.NewManager(cfg.TempDir, artifactLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create artifact directory")
	}
	// The sweeper's first pass runs on Start and clears whatever a crashed
	// predecessor left behind.
	var services []artifact.BackgroundService
	services = append(services, artifact.NewSweeper(artifacts, cfg.ArtifactTTL, artifactLog))

	// Decoder
	tc, err := audio.NewTranscoder(cfg.Transcoder)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve transcoder")
	}
	enc, err := audio.ParseEncoding(cfg.SampleEncoding)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid sample encoding")
	}
	decoder := audio.NewDecoder(audio.Canonical(cfg.SampleRate, enc), tc, log.With().Str("component", "decoder").Logger())
	if tc == nil {
		log.Warn().Msg("no transcoder available, only WAV uploads will be accepted")
	}

	// Engine
	engine, err := transcribe.New(transcribe.Options{
		Kind:               cfg.Engine,
		Timeout:            cfg.EngineTimeout,
		VoskURL:            cfg.VoskURL,
		VoskModel:          cfg.VoskModel,
		WhisperURL:         cfg.WhisperURL,
		WhisperModel:       cfg.WhisperModel,
		WhisperAPIKey:      cfg.WhisperAPIKey,
		ElevenLabsAPIKey:   cfg.ElevenLabsAPIKey,
		ElevenLabsModel:    cfg.ElevenLabsModel,
		ElevenLabsKeyterms: cfg.ElevenLabsKeyterms,
		DeepInfraAPIKey:    cfg.DeepInfraAPIKey,
		DeepInfraModel:     cfg.DeepInfraModel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create inference engine")
	}
	log.Info().
		Str("engine", engine.Name()).
		Str("model", engine.Model()).
		Bool("streaming", engine.Streaming()).
		Str("transcoder", decoder.TranscoderName()).
		Msg("inference engine ready")

	// MQTT (optional)
	var publisher pipeline.Publisher
	var mqttStatus api.MQTTStatus
	if cfg.MQTTBrokerURL != "" {
		mqtt, err := mqttclient.Connect(mqttclient.Options{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Log:         log.With().Str("component", "mqtt").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mqtt.Close()
		publisher = mqtt
		mqttStatus = mqtt
	}

	// Pipeline
	p := pipeline.New(pipeline.Options{
		Decoder: decoder,
		Engine:  engine,
		Chunking: chunk.Config{
			FrameSamples: cfg.FrameSamples,
			Window:       cfg.SegmentWindow,
		},
		Artifacts:   artifacts,
		Language:    cfg.Language,
		Defaults: transcribe.TranscribeOpts{
			Prompt:      cfg.TranscribePrompt,
			Hotwords:    cfg.TranscribeHotwords,
			Temperature: cfg.TranscribeTemperature,
			BeamSize:    cfg.TranscribeBeamSize,
			VadFilter:   cfg.TranscribeVadFilter,
		},
		Concurrency: cfg.TranscribeConcurrency,
		Publisher:   publisher,
		Log:         log.With().Str("component", "pipeline").Logger(),
	})
	prometheus.MustRegister(metrics.NewCollector(p))

	for _, s := range services {
		s.Start()
	}
	defer func() {
		for _, s := range services {
			s.Stop()
		}
	}()

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, p, mqttStatus, version, startTime, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout. In-flight requests finish and close
	// their artifact scopes before Shutdown returns.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("audioscribe stopped")
}
