package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pablodma/homeAssistant-asistant/internal/api"
	"github.com/pablodma/homeAssistant-asistant/internal/config"
	"github.com/pablodma/homeAssistant-asistant/internal/database"
	"github.com/pablodma/homeAssistant-asistant/internal/github"
	"github.com/pablodma/homeAssistant-asistant/internal/metrics"
	"github.com/pablodma/homeAssistant-asistant/internal/prompts"
	"github.com/pablodma/homeAssistant-asistant/internal/provider"
	"github.com/pablodma/homeAssistant-asistant/internal/review"
	"github.com/pablodma/homeAssistant-asistant/internal/telemetry"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("qa-reviewd v%s\n", version)
		return
	}

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		log.Fatalf("failed to load config from %s: %v", *configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Text generation is the whole point of this service, so a missing
	// API key fails startup instead of the first cycle.
	generator, err := provider.NewAnthropicClient(cfg.Anthropic.Endpoint, cfg.Anthropic.APIKey)
	if err != nil {
		log.Fatalf("failed to initialize anthropic client: %v", err)
	}

	db, err := database.New(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	gh := github.NewClient(cfg.GitHub.Repo, cfg.GitHub.Branch, cfg.GitHub.PromptsDir, cfg.GitHub.Token)
	if !gh.IsConfigured() {
		log.Printf("Warning: GitHub token not configured, prompt commits will fail")
	}

	loader := prompts.NewLoader(cfg.GitHub.LocalDir)
	if err := loader.Watch(); err != nil {
		log.Printf("Warning: template hot-reload disabled: %v", err)
	}
	defer loader.Close()

	// Initialize OpenTelemetry
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(context.Background(), "qa-reviewer", cfg.Telemetry.Endpoint)
		if err != nil {
			log.Printf("Warning: Failed to initialize telemetry: %v", err)
		} else {
			defer func() {
				if err := shutdownTelemetry(context.Background()); err != nil {
					log.Printf("Error shutting down telemetry: %v", err)
				}
			}()
		}
	}

	m := metrics.New()
	reviewer := review.New(review.Deps{
		Issues:    db,
		Cycles:    db,
		Revisions: db,
		Tenants:   db,
		Docs:      gh,
		Generator: generator,
		Templates: loader,
		Metrics:   m,
		Config:    cfg.Review,
		Model:     cfg.Anthropic.Model,
	})
	runner := review.NewRunner(reviewer, cfg.Review.CycleTimeout)

	server := api.NewServer(runner, cfg)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", server.SetupRoutes())
	handler := otelhttp.NewHandler(mux, "qa-reviewer-http")

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("qa-reviewd v%s listening on %s", version, httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	if err := runner.Shutdown(shutdownCtx); err != nil {
		log.Printf("background cycles did not finish before shutdown: %v", err)
	}
}
