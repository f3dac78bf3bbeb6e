package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/config"
	httpserver "github.com/Theekshana-Gimhan/ai-persona-simulator/internal/httpserver"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/llm"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/logging"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/realtime"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/transcript"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/tts"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	model, err := llm.NewModel(cfg)
	if err != nil {
		log.WithError(err).Fatal("llm setup failed")
	}
	coach := llm.NewCoach(model, log)

	var synth tts.Synthesizer
	if cfg.PlaybackProvider == "server" {
		synth, err = tts.NewSynthesizer(cfg.TTSProvider, cfg.DeepgramKey, cfg.DeepgramModel, cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID, log)
		if err != nil {
			log.WithError(err).Fatal("tts setup failed")
		}
	}

	var newRecognizer func(locale string, log logrus.FieldLogger) realtime.ServerRecognizer
	if cfg.CaptureProvider == "assemblyai" {
		newRecognizer = func(locale string, l logrus.FieldLogger) realtime.ServerRecognizer {
			return transcript.NewRecognizer(cfg.AssemblyAIKey, locale, l)
		}
	}

	call := realtime.NewHandler(realtime.Options{
		Coach:           coach,
		Synthesizer:     synth,
		NewRecognizer:   newRecognizer,
		Logger:          log,
		Defaults:        cfg.Defaults.CallSettings(),
		DefaultCriteria: cfg.Defaults.Criteria,
	})
	srv := httpserver.New(cfg, httpserver.Deps{
		Coach:       coach,
		Synthesizer: synth,
		Call:        call,
		Logger:      log,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":     cfg.HTTPAddress,
			"llm":      cfg.LLMProvider,
			"capture":  cfg.CaptureProvider,
			"playback": cfg.PlaybackProvider,
		}).Info("server listening")
		serverErrors <- server.ListenAndServe()
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
		_ = server.Close()
	}
}
