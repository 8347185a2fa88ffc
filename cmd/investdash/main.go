package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/savegress/investdash/internal/api"
	"github.com/savegress/investdash/internal/config"
	"github.com/savegress/investdash/internal/dashboard"
	"github.com/savegress/investdash/internal/fetcher"
	"github.com/savegress/investdash/internal/logger"
)

func main() {
	// Load configuration
	cfg, cfgErr := loadConfig()

	log := logger.New(cfg.Log.Level, cfg.Log.Format).With().Str("service", "investdash").Logger()
	if cfgErr != nil {
		log.Warn().Err(cfgErr).Msg("failed to load config file, using environment defaults")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Server.JWTSecret == "" {
		log.Warn().Msg("jwt secret is empty, every request will be rejected")
	}

	log.Info().Str("environment", cfg.Server.Environment).Msg("starting InvestDash")

	// Backend client shared by every session
	client := fetcher.NewClient(&cfg.Backend, log)

	// One dashboard controller per signed-in user
	registry := dashboard.NewRegistry(func(userID string) *dashboard.Controller {
		return dashboard.NewController(client, &cfg.Analytics,
			dashboard.WithLogger(log.With().Str("component", "dashboard").Str("user_id", userID).Logger()),
		)
	})

	hub := api.NewHub(log)
	go hub.Run()

	// Create API server
	server := api.NewServer(cfg, registry, hub, log)

	// session loads wait on the backend before responding
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Backend.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("InvestDash API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down InvestDash")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	hub.Stop()

	log.Info().Msg("InvestDash stopped")
}

func loadConfig() (*config.Config, error) {
	configPath := os.Getenv("INVESTDASH_CONFIG")
	if configPath == "" {
		return config.LoadFromEnv(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.LoadFromEnv(), fmt.Errorf("load %s: %w", configPath, err)
	}
	return cfg, nil
}
