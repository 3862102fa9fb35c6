package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tsp-search/internal/chart"
	"tsp-search/internal/models"
	"tsp-search/internal/session"
	"tsp-search/internal/tsplib"
)

func (c *cli) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <instance.tsp>",
		Short: "Run a fixed number of search steps without a UI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
	searchFlags(cmd)
	cmd.Flags().Int("iterations", 1000, "number of search steps")
	cmd.Flags().String("chart", "", "write the convergence chart to this .png or .svg file")
	cmd.Flags().Bool("no-archive", false, "do not store the run in the database")
	return cmd
}

func (c *cli) run(ctx context.Context, out io.Writer, path string) error {
	logger, err := c.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	iterations := c.conf.GetInt("iterations")
	if iterations < 0 {
		return fmt.Errorf("iterations must not be negative")
	}

	cfg, err := c.sessionConfig()
	if err != nil {
		return err
	}

	inst, err := tsplib.ParseFile(path)
	if err != nil {
		return err
	}

	var sess *session.Session
	if c.conf.GetBool("no-archive") {
		sess = session.New(cfg, nil, nil, logger)
	} else {
		store, err := c.openStore(logger)
		if err != nil {
			return err
		}
		defer store.Close()
		sess = session.New(cfg, store, nil, logger)
	}
	defer sess.Close(context.Background())

	snap, err := sess.Load(ctx, inst)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	runID := sess.RunID()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	for i := 0; i < iterations; i++ {
		if ctx.Err() != nil {
			logger.Info("interrupted", zap.Int("iteration", snap.Iteration))
			break
		}
		if snap, err = sess.Step(); err != nil {
			return err
		}
	}

	printSummary(out, inst, snap)

	if chartPath := c.conf.GetString("chart"); chartPath != "" {
		if err := writeChart(chartPath, inst.Name, snap.History.Points()); err != nil {
			return err
		}
		fmt.Fprintf(out, "chart:      %s\n", chartPath)
	}

	if err := sess.Close(context.Background()); err != nil {
		return fmt.Errorf("failed to archive run: %w", err)
	}
	if !c.conf.GetBool("no-archive") && snap.Iteration > 0 {
		fmt.Fprintf(out, "run:        %s\n", runID)
	}
	return nil
}

func printSummary(out io.Writer, inst *models.Instance, snap models.Snapshot) {
	summary := "No data"
	if len(snap.Tour) > 0 {
		summary = snap.Tour.String()
	}
	fmt.Fprintf(out, "instance:   %s\n", inst.Name)
	fmt.Fprintf(out, "cities:     %d\n", snap.CityCount)
	fmt.Fprintf(out, "iterations: %s\n", humanize.Comma(int64(snap.Iteration)))
	fmt.Fprintf(out, "length:     %.2f\n", snap.Length)
	fmt.Fprintf(out, "tour:       %s\n", summary)
}

func writeChart(path, title string, points []models.HistoryPoint) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := chart.Render(f, points, chart.Options{Title: title, Format: format}); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
