package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/xferlink/internal/api"
	"github.com/dennisdiepolder/xferlink/internal/auth"
	"github.com/dennisdiepolder/xferlink/internal/config"
	"github.com/dennisdiepolder/xferlink/internal/metrics"
	"github.com/dennisdiepolder/xferlink/internal/publish"
	"github.com/dennisdiepolder/xferlink/internal/queues"
	"github.com/dennisdiepolder/xferlink/internal/report"
	"github.com/dennisdiepolder/xferlink/internal/source"
	"github.com/dennisdiepolder/xferlink/internal/websocket"
	"github.com/dennisdiepolder/xferlink/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Msg("starting xferlink server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Queue-extension mapping, optionally from a YAML file
	resolver, err := queues.LoadResolver(cfg.QueueMapFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.QueueMapFile).Msg("failed to load queue map")
	}

	// Call source: DynamoDB when configured, otherwise empty streams
	var callSource source.CallSource
	dynamoCfg := source.LoadDynamoConfig()
	if dynamoCfg.Mode == source.DynamoModeNone {
		log.Warn().Msg("DYNAMO_MODE not set, using empty call source")
		callSource = source.NewNoopSource()
	} else {
		dynamoSource, err := source.NewDynamoDBSource(ctx, dynamoCfg, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize DynamoDB call source")
		}
		callSource = dynamoSource
	}

	engine := report.NewEngine(callSource, resolver, log.Logger)

	// Create WebSocket hub for live summaries
	hub := websocket.NewHub(log.Logger)
	go hub.Run()
	wsHandler := websocket.NewHandler(hub, cfg, log.Logger)

	// Report handlers
	reportsHandler := api.NewReportsHandler(engine, cfg.ReportMaxWindow, log.Logger)
	reportsHandler.AddSummarySink(hub.BroadcastSummary)

	// Optional MQTT publishing of run summaries
	if cfg.MQTTBroker != "" {
		publisher, err := publish.NewMQTTPublisher(publish.MQTTOptions{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			QoS:      1,
		})
		if err != nil {
			log.Fatal().Err(err).Str("broker", cfg.MQTTBroker).Msg("failed to connect MQTT publisher")
		}
		defer publisher.Close()

		reportsHandler.AddSummarySink(func(summary report.Summary) {
			if err := publish.Summary(ctx, publisher, cfg.MQTTTopic, summary); err != nil {
				log.Error().Err(err).Str("topic", cfg.MQTTTopic).Msg("failed to publish report summary")
			}
		})
		log.Info().Str("broker", cfg.MQTTBroker).Str("topic", cfg.MQTTTopic).Msg("MQTT summary publishing enabled")
	}

	queuesHandler := api.NewQueuesHandler(resolver, log.Logger)

	// Initialize JWKS when auth is enabled
	if !cfg.SkipAuth && cfg.OIDCIssuer != "" {
		if err := auth.InitJWKS(cfg.OIDCIssuer); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize JWKS")
		}
	}

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Internal routes (no auth - for operators)
	r.Route("/internal", func(r chi.Router) {
		r.Get("/queues", queuesHandler.GetMapping)
	})

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Get("/api/reports/transfers", reportsHandler.GetTransfers)
		r.Get("/api/reports/transfers/summary", reportsHandler.GetSummary)
		r.Get("/ws", wsHandler.ServeHTTP)
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"xferlink"}`)
}
