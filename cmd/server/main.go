package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TemdigitalAi/voice-dialog-service/internal/boundary"
	"github.com/TemdigitalAi/voice-dialog-service/internal/callcontrol"
	"github.com/TemdigitalAi/voice-dialog-service/internal/config"
	"github.com/TemdigitalAi/voice-dialog-service/internal/delivery"
	"github.com/TemdigitalAi/voice-dialog-service/internal/metrics"
	"github.com/TemdigitalAi/voice-dialog-service/internal/provider"
	"github.com/TemdigitalAi/voice-dialog-service/internal/provider/llm"
	"github.com/TemdigitalAi/voice-dialog-service/internal/provider/stt"
	"github.com/TemdigitalAi/voice-dialog-service/internal/provider/tts"
	"github.com/TemdigitalAi/voice-dialog-service/internal/server"
	"github.com/TemdigitalAi/voice-dialog-service/internal/session"
	"github.com/TemdigitalAi/voice-dialog-service/internal/turn"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "voice-dialog-service"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("address", cfg.Server.Address),
		slog.Int("port", cfg.Server.Port),
		slog.Int("sample_rate", cfg.Media.SampleRate),
		slog.Int("safety_timeout_ms", cfg.Boundary.SafetyTimeoutMs),
		slog.Int("max_exchanges", cfg.Memory.MaxExchanges),
		slog.String("stt_url", cfg.STT.URL),
		slog.String("llm_endpoint", cfg.LLM.Endpoint),
		slog.String("llm_model", cfg.LLM.Model),
		slog.String("tts_endpoint", cfg.TTS.Primary.Endpoint),
		slog.String("call_control_url", cfg.CallControl.BaseURL),
		slog.String("log_level", cfg.Logging.Level),
	)

	appMetrics := metrics.New(prometheus.DefaultRegisterer)

	// Provider clients.
	streamer, err := stt.NewStreamer(stt.Config{
		URL:         cfg.STT.URL,
		APIKey:      cfg.STT.APIKey,
		Language:    cfg.STT.Language,
		EventBuffer: cfg.STT.EventBuffer,
	}, appMetrics, logger)
	if err != nil {
		logger.Error("Failed to create transcription streamer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	llmClient, err := llm.NewClient(llm.Config{
		Endpoint:      cfg.LLM.Endpoint,
		APIKey:        cfg.LLM.APIKey,
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		Timeout:       cfg.LLM.GetTimeoutDuration(),
		MaxRetries:    cfg.LLM.MaxRetries,
		MaxConcurrent: cfg.LLM.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create language model client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	synthChain, err := buildSynthesizer(cfg.TTS, logger)
	if err != nil {
		logger.Error("Failed to create synthesis chain", slog.String("error", err.Error()))
		os.Exit(1)
	}

	gateway, err := callcontrol.NewClient(callcontrol.Config{
		BaseURL: cfg.CallControl.BaseURL,
		APIKey:  cfg.CallControl.APIKey,
		Timeout: cfg.CallControl.GetTimeoutDuration(),
	})
	if err != nil {
		logger.Error("Failed to create call-control client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	deliverer, err := delivery.NewController(delivery.Config{
		SynthesisTimeout: cfg.TTS.GetSynthesisTimeoutDuration(),
		SampleRate:       cfg.Media.SampleRate,
	}, synthChain, gateway, appMetrics, logger)
	if err != nil {
		logger.Error("Failed to create delivery controller", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Session manager.
	sessionMgr, err := session.NewManager(session.ManagerConfig{
		Session: session.Config{
			Greeting:        cfg.Dialog.Greeting,
			CheckinText:     cfg.Dialog.CheckinText,
			CheckinInterval: cfg.Dialog.GetCheckinIntervalDuration(),
			MaxCheckins:     cfg.Dialog.MaxCheckins,
			SampleRate:      cfg.Media.SampleRate,
			FrameBatchMs:    cfg.Media.FrameBatchMs,
			EventQueueSize:  cfg.Media.EventQueueSize,
		},
		Boundary: boundary.Config{
			SafetyTimeout:     cfg.Boundary.GetSafetyTimeoutDuration(),
			MinUtteranceChars: cfg.Boundary.MinUtteranceChars,
		},
		Turn: turn.Config{
			ReplyTimeout:  cfg.Turn.GetReplyTimeoutDuration(),
			FallbackReply: cfg.Turn.FallbackReply,
		},
		SystemPrompt: cfg.Memory.SystemPrompt,
		MaxExchanges: cfg.Memory.MaxExchanges,
		IdleTimeout:  cfg.Media.GetIdleTimeoutDuration(),
	}, session.Deps{
		Streamer:    streamer,
		Generator:   llmClient,
		Deliverer:   deliverer,
		Interrupter: deliverer,
	}, appMetrics, logger)
	if err != nil {
		logger.Error("Failed to create session manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Session manager initialized",
		slog.Duration("idle_timeout", cfg.Media.GetIdleTimeoutDuration()),
	)

	// HTTP surface: media ingress plus monitoring API.
	media := server.NewMediaHandler(sessionMgr, appMetrics, logger)
	httpServer := server.NewHTTPServer(cfg.Server, logger, cfg, sessionMgr, media, llmClient, appMetrics)

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	sessionMgr.Stop()

	stats := llmClient.GetStats()
	logger.Info("Final generation statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("total_retries", stats.TotalRetries),
	)

	logger.Info("Service stopped")
}

// buildSynthesizer assembles the synthesis chain from the configured primary
// and optional secondary provider.
func buildSynthesizer(cfg config.TTSConfig, logger *slog.Logger) (provider.Synthesizer, error) {
	primary, err := tts.NewClient(tts.Config{
		Endpoint:       cfg.Primary.Endpoint,
		APIKey:         cfg.Primary.APIKey,
		Model:          cfg.Primary.Model,
		Voice:          cfg.Primary.Voice,
		ResponseFormat: cfg.ResponseFormat,
		Timeout:        cfg.GetTimeoutDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("primary synthesizer: %w", err)
	}

	synths := []provider.Synthesizer{primary}
	if cfg.Secondary != nil {
		secondary, err := tts.NewClient(tts.Config{
			Endpoint:       cfg.Secondary.Endpoint,
			APIKey:         cfg.Secondary.APIKey,
			Model:          cfg.Secondary.Model,
			Voice:          cfg.Secondary.Voice,
			ResponseFormat: cfg.ResponseFormat,
			Timeout:        cfg.GetTimeoutDuration(),
		})
		if err != nil {
			return nil, fmt.Errorf("secondary synthesizer: %w", err)
		}
		synths = append(synths, secondary)
	}

	return tts.NewChain(logger, synths...)
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
