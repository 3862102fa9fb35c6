package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"tsp-search/internal/database"
	"tsp-search/internal/session"
	"tsp-search/internal/tsplib"
	"tsp-search/internal/tui"
)

func (c *cli) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <instance.tsp>",
		Short: "Watch the search live in the terminal",
		Long: `Watch the search live in the terminal. Space starts and stops the
search, s takes a single step, p toggles the tour and q or Esc quits. Logs
go to ~/.tsp-search/tsp-search.log while the screen is in use.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.watch(cmd.Context(), args[0])
		},
	}
	searchFlags(cmd)
	cmd.Flags().Bool("autostart", false, "start searching immediately")
	return cmd
}

func (c *cli) watch(ctx context.Context, path string) error {
	logPath, err := database.GetLogFilePath()
	if err != nil {
		return err
	}
	logger, err := c.logger(logPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := c.sessionConfig()
	if err != nil {
		return err
	}

	inst, err := tsplib.ParseFile(path)
	if err != nil {
		return err
	}

	store, err := c.openStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sess := session.New(cfg, store, nil, logger)
	defer sess.Close(context.Background())

	if _, err := sess.Load(ctx, inst); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	if c.conf.GetBool("autostart") {
		if err := sess.Start(); err != nil {
			return err
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return tui.New(screen, sess, logger).Run(ctx)
}
