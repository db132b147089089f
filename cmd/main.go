package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"meeting-transcription-service/internal/api"
	"meeting-transcription-service/internal/config"
	"meeting-transcription-service/internal/events"
	"meeting-transcription-service/internal/observability"
	"meeting-transcription-service/internal/observability/logging"
	"meeting-transcription-service/internal/service/capture"
)

func main() {
	cfg := config.Load()

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Observability.LogLevel
	if os.Getenv("ENV") == "dev" {
		logCfg.Format = "console"
	}
	logging.Init(logCfg)

	log.Info().
		Str("service", cfg.Service.Name).
		Str("provider", cfg.Recognizer.Provider).
		Msg("Meeting transcription service starting")

	// Metrics and health endpoints, separate from the API listener
	obs := observability.NewServer(":" + cfg.Observability.MetricsPort)
	obs.Start()

	// Kafka publisher for segment and session-ended events
	publisher := events.New(&events.Config{
		Enabled:       cfg.Kafka.Enabled,
		Brokers:       cfg.Kafka.Brokers,
		TopicSegments: cfg.Kafka.TopicSegments,
		TopicSessions: cfg.Kafka.TopicSessions,
		Principal:     cfg.Kafka.Principal,
	})

	manager := capture.NewManager(cfg, publisher)

	server := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      api.NewRouter(manager),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("API server shutdown failed")
	}

	// Stop running sessions so their transcripts are finalized and exported.
	manager.Close()

	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Kafka publisher close failed")
	}
	if err := obs.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown failed")
	}
}
