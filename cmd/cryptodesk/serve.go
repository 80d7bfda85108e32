package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/cryptodesk/internal/config"
	"github.com/stupiduntilnot/cryptodesk/internal/logger"
	"github.com/stupiduntilnot/cryptodesk/internal/market"
	"github.com/stupiduntilnot/cryptodesk/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides HTTP_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.HTTPPort = servePort
	}

	log := newLogger(cfg, os.Stdout)
	logger.SetGlobalLogger(log)
	log.Info().
		Str("model", cfg.LLMModel).
		Str("provider", cfg.ModelProvider).
		Str("cache_backend", cfg.CacheBackend).
		Str("cache_path", cfg.CachePath).
		Msg("Starting cryptodesk")

	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var warmer *market.Warmer
	if cfg.CacheWarmSchedule != "" {
		warmer = market.NewWarmer(a.fetcher, cfg.MarketTimeout(), log)
		if err := warmer.Schedule(cfg.CacheWarmSchedule); err != nil {
			return err
		}
		warmer.Start()
		defer warmer.Stop()
	}

	srv := server.New(server.Config{
		Port:           cfg.HTTPPort,
		RequestTimeout: cfg.HTTPRequestTimeout(),
		Log:            log,
		Pipeline:       a.pipeline,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}
