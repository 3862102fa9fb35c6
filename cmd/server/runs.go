package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tsp-search/internal/sqlite"
)

func (c *cli) runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect archived runs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(store *sqlite.Store) error {
				return listRuns(cmd.Context(), cmd.OutOrStdout(), store, c.conf.GetInt("limit"))
			})
		},
	}
	list.Flags().Int("limit", 20, "maximum number of runs to show")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(store *sqlite.Store) error {
				return showRun(cmd.Context(), cmd.OutOrStdout(), store, args[0])
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an archived run and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(store *sqlite.Store) error {
				if err := store.Runs().Delete(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to delete run %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

func (c *cli) withStore(fn func(*sqlite.Store) error) error {
	logger, err := c.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := c.openStore(logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()
	return fn(store)
}

func listRuns(ctx context.Context, out io.Writer, store *sqlite.Store, limit int) error {
	runs, total, err := store.Runs().List(ctx, limit, 0)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tINSTANCE\tCITIES\tITERATIONS\tLENGTH\tFINISHED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.2f\t%s\n",
			r.ID, r.InstanceName, r.CityCount,
			humanize.Comma(int64(r.Iterations)), r.BestLength,
			humanize.Time(r.FinishedAt))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d runs\n", len(runs), total)
	return nil
}

func showRun(ctx context.Context, out io.Writer, store *sqlite.Store, id string) error {
	run, history, err := store.Runs().GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", id, err)
	}

	fmt.Fprintf(out, "id:         %s\n", run.ID)
	fmt.Fprintf(out, "instance:   %s\n", run.InstanceName)
	fmt.Fprintf(out, "cities:     %d\n", run.CityCount)
	fmt.Fprintf(out, "iterations: %s\n", humanize.Comma(int64(run.Iterations)))
	fmt.Fprintf(out, "length:     %.2f\n", run.BestLength)
	fmt.Fprintf(out, "mode:       %s\n", run.CandidateMode)
	fmt.Fprintf(out, "lookup:     %s\n", run.LookupPolicy)
	fmt.Fprintf(out, "record:     %s\n", run.HistoryRecord)
	fmt.Fprintf(out, "started:    %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "finished:   %s (%s)\n", run.FinishedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(run.FinishedAt))
	fmt.Fprintf(out, "history:    %d samples\n", len(history))
	fmt.Fprintf(out, "tour:       %s\n", run.Tour.String())
	return nil
}
