package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tsp-search/internal/server"
)

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [instance.tsp]",
		Short: "Serve the web UI and HTTP API",
		Long: `Serve the web UI and HTTP API. Search settings are read from the
database and edited on the settings page. An optional TSPLIB file is loaded
at startup.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context(), args)
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().Bool("open-browser", false, "open the UI in the default browser")
	cmd.Flags().Int64("seed", 0, "random seed (0 seeds from the clock)")
	return cmd
}

func (c *cli) serve(ctx context.Context, args []string) error {
	logger, err := c.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	dbPath, err := c.dbPath()
	if err != nil {
		return err
	}

	cfg := server.Config{
		Addr:   c.conf.GetString("addr"),
		DBPath: dbPath,
		Logger: logger,
	}
	cfg.Session.Seed = c.conf.GetInt64("seed")
	if len(args) == 1 {
		cfg.Instance = args[0]
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	addr, err := srv.Listen()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	url := fmt.Sprintf("http://%s", addr)
	logger.Info("server listening", zap.String("url", url))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Serve)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not gracefully shutdown the server: %w", err)
		}
		return nil
	})

	if c.conf.GetBool("open-browser") {
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-time.After(500 * time.Millisecond):
				if err := server.OpenBrowser(url); err != nil {
					logger.Warn("could not open browser", zap.Error(err))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
