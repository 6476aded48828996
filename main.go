package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"feedmix/internal/config"
	"feedmix/internal/database"
	"feedmix/internal/feed"
	"feedmix/internal/media"
	"feedmix/internal/mixin"
	"feedmix/internal/server"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()
	logger.Info().Str("backend", store.DatabaseType()).Msg("store ready")

	fetcher := feed.NewFetcher(cfg.FetchTimeout)
	parser := feed.NewParser()
	selector := mixin.NewSelector(store, logger)

	scheduler := feed.NewScheduler(store, fetcher, parser, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start feed scheduler")
	}
	defer scheduler.Stop()

	reclaimer := media.NewReclaimer(store, media.NewHTTPStorage(cfg.StorageBucket), cfg.MediaReclaimSchedule, logger)
	if err := reclaimer.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start media reclaimer")
	}
	defer reclaimer.Stop()

	srv := server.New(store, selector, fetcher, parser, logger)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	logger.Info().Msg("server stopped")
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func openStore(cfg config.Config) (database.Store, error) {
	if cfg.DBDriver == "postgres" {
		return database.NewPostgres(cfg.DBDSN)
	}
	return database.New(cfg.DBDSN)
}
