// Package main is the entry point for the Celima telemetry normalization
// gateway. It initializes all components and manages the application
// lifecycle.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ernestoguevaraa/celima-iot/internal/adapter/config"
	"github.com/ernestoguevaraa/celima-iot/internal/adapter/mqtt"
	"github.com/ernestoguevaraa/celima-iot/internal/api"
	"github.com/ernestoguevaraa/celima-iot/internal/health"
	"github.com/ernestoguevaraa/celima-iot/internal/metrics"
	"github.com/ernestoguevaraa/celima-iot/internal/processor"
	"github.com/ernestoguevaraa/celima-iot/internal/service"
	"github.com/ernestoguevaraa/celima-iot/internal/state"
	"github.com/ernestoguevaraa/celima-iot/pkg/logging"
)

const (
	serviceName    = "celima-gateway"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration; positional args keep the historical CLI contract:
	// gateway [broker [client-id [prefix]]]
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyArgs(os.Args[1:])

	logger := logging.New(serviceName, serviceVersion, cfg.Logging.Level, cfg.Logging.Format)
	logger.Info().Str("env", cfg.Environment).Msg("Starting Celima gateway")

	// Piece-factor table (built-in defaults, optional YAML override)
	factors, err := config.LoadPressFactors(cfg.FactorsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load piece factors")
	}

	metricsRegistry := metrics.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientID := cfg.MQTT.ClientID
	if cfg.MQTT.UniqueClientID {
		clientID = fmt.Sprintf("%s-%s", clientID, uuid.NewString()[:8])
	}

	publisher := mqtt.NewPublisher(mqtt.Config{
		BrokerURL:      cfg.MQTT.BrokerURL,
		ClientID:       clientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		CleanSession:   cfg.MQTT.CleanSession,
		QoS:            cfg.MQTT.QoS,
		KeepAlive:      cfg.MQTT.KeepAlive,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		ReconnectDelay: cfg.MQTT.ReconnectDelay,
		TLSEnabled:     cfg.MQTT.TLSEnabled,
		TLSCertFile:    cfg.MQTT.TLSCertFile,
		TLSKeyFile:     cfg.MQTT.TLSKeyFile,
		TLSCAFile:      cfg.MQTT.TLSCAFile,
		BufferSize:     cfg.MQTT.BufferSize,
		PublishTimeout: cfg.MQTT.PublishTimeout,
	}, logger, metricsRegistry)

	if err := publisher.Connect(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MQTT broker")
	}
	defer publisher.Disconnect()

	// Accumulator store and processors
	store := state.NewStore()
	registry := processor.NewRegistry(processor.Config{
		Store:   store,
		Factors: factors,
		Now:     time.Now,
	})

	// Inbound message handler on the same MQTT session
	handler := service.NewHandler(publisher.Client(), registry, publisher, service.HandlerConfig{
		DataTopic:      cfg.Topics.Data,
		ErrorTopic:     cfg.Topics.Error,
		JoinTopic:      cfg.Topics.Join,
		AckTopic:       cfg.Topics.Ack,
		Prefix:         cfg.Topics.Prefix,
		QoS:            cfg.MQTT.QoS,
		PublishTimeout: cfg.MQTT.PublishTimeout,
	}, logger, metricsRegistry)

	if err := handler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to subscribe to data topics")
	}
	defer handler.Stop()

	// Health checks and the admin HTTP server
	healthChecker := health.NewChecker(health.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	})
	healthChecker.AddCheck("mqtt", publisher)

	apiHandler := api.NewHandler(serviceName, serviceVersion, store, registry, publisher, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthChecker.HealthHandler)
	mux.HandleFunc("/health/live", healthChecker.LivenessHandler)
	mux.HandleFunc("/health/ready", healthChecker.ReadinessHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", apiHandler.StatusHandler)
	mux.HandleFunc("/admin/reset", apiHandler.ResetHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info().Int("port", cfg.HTTP.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	logger.Info().
		Str("mqtt_broker", cfg.MQTT.BrokerURL).
		Str("data_topic", cfg.Topics.Data).
		Str("prefix", cfg.Topics.Prefix).
		Int("http_port", cfg.HTTP.Port).
		Msg("Celima gateway started successfully")

	// Wait for shutdown signal; in-flight callbacks complete, nothing persists.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := handler.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping message handler")
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	logger.Info().Msg("Celima gateway shutdown complete")
}
