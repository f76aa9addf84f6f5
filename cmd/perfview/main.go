package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"perfview/internal/api"
	"perfview/internal/config"
	"perfview/internal/credstore"
	"perfview/internal/handlers"
	"perfview/internal/log"
	"perfview/internal/server"
	"perfview/internal/session"
)

func main() {
	root := &cobra.Command{
		Use:          "perfview",
		Short:        "Local web client for the Student Performance Analyzer",
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the web client and serve the dashboards on localhost",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := log.New(cfg.Environment)

	store, err := credstore.Open(filepath.Join(cfg.State.Dir, cfg.State.File))
	if err != nil {
		logger.Error().Err(err).Msg("failed to open credential store")
		return err
	}
	defer store.Close()

	// The manager is the client's token source; the client is the
	// manager's authenticator. The closure breaks the construction cycle.
	var sessions *session.Manager
	client := api.NewClient(cfg.Upstream, api.TokenFunc(func() string {
		return sessions.Token()
	}), logger)
	sessions = session.NewManager(store, client, logger)

	// Hydration completes before the first request is served, so no
	// authorization decision ever races it.
	sessions.Hydrate()

	handlerSet := handlers.NewHandlerSet(logger, sessions, client)
	httpServer, err := server.NewHTTPServer(cfg, logger, handlerSet)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build http server")
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}

	logger.Info().Msg("client exited cleanly")
	return nil
}
