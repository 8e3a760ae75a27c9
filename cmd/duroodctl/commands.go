package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"durood/internal/cli"
	"durood/internal/core"
	"durood/internal/log"
)

type options struct {
	logLevel string
	asJSON   bool
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "duroodctl",
		Short: "Inspect and update the durood counter offline",
		Long: `duroodctl reads the same environment (or .env file) as the durood
server and operates directly on its persistence backend. Stop the server
before mutating a file or sqlite backend: the last writer wins.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.LoadEnvFile()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "Print JSON instead of text")

	cmd.AddCommand(
		statusCmd(opts),
		addCmd(opts),
		editCmd(opts),
		daysCmd(opts),
		resetCmd(opts),
	)
	return cmd
}

// withCounter opens the counter for one command and always closes it. Only
// mutating commands flush on the way out.
func withCounter(cmd *cobra.Command, opts *options, mutate bool, fn func(ctx context.Context, c *cli.Counter) error) error {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLoggerTo(cmd.ErrOrStderr(), opts.logLevel).WithComponent(log.ComponentCLI)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := cli.OpenCounter(ctx, logger.Logger, cfg, nil, nil)
	if err != nil {
		return err
	}

	runErr := fn(ctx, c)
	var closeErr error
	if mutate {
		closeErr = c.Close(ctx)
	} else {
		closeErr = c.Release()
	}
	if closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	return runErr
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show today's total, lifetime total and entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCounter(cmd, opts, false, func(ctx context.Context, c *cli.Counter) error {
				st := c.Service.Snapshot()
				out := cmd.OutOrStdout()
				if opts.asJSON {
					return writeJSON(out, st)
				}

				loc := c.Service.Store().Policy().Location()
				fmt.Fprintf(out, "Business day:   %s\n", core.FormatDailyDate(st.LastResetDate))
				fmt.Fprintf(out, "Today:          %d\n", st.TotalCount)
				fmt.Fprintf(out, "Lifetime:       %d\n", st.LifetimeTotal)
				fmt.Fprintf(out, "Closed days:    %d\n", len(st.DailyTotals))
				if len(st.History) == 0 {
					return nil
				}
				fmt.Fprintln(out)
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCOUNT\tTIME")
				for _, e := range st.History {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", e.ID, e.Count, core.FormatEntryTimestamp(e.Timestamp, loc))
				}
				return tw.Flush()
			})
		},
	}
}

func addCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add <count>",
		Short: "Record a new entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := core.ParseCount(args[0])
			if err != nil {
				return fmt.Errorf("count %q: %w", args[0], err)
			}
			return withCounter(cmd, opts, true, func(ctx context.Context, c *cli.Counter) error {
				e, err := c.Service.Add(ctx, count)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return writeJSON(cmd.OutOrStdout(), e)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d (%s). Today: %d\n", e.Count, e.ID, c.Service.Snapshot().TotalCount)
				return nil
			})
		},
	}
}

func editCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <count>",
		Short: "Change the count of one of today's entries",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := core.ParseCount(args[1])
			if err != nil {
				return fmt.Errorf("count %q: %w", args[1], err)
			}
			return withCounter(cmd, opts, true, func(ctx context.Context, c *cli.Counter) error {
				e, found, err := c.Service.Edit(ctx, args[0], count)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.asJSON {
					return writeJSON(out, map[string]any{"updated": found, "entry": e})
				}
				if !found {
					fmt.Fprintf(out, "No entry %s in the current day, nothing changed\n", args[0])
					return nil
				}
				fmt.Fprintf(out, "Updated %s to %d. Today: %d\n", e.ID, e.Count, c.Service.Snapshot().TotalCount)
				return nil
			})
		},
	}
}

func daysCmd(opts *options) *cobra.Command {
	var rng, sortBy, order string

	cmd := &cobra.Command{
		Use:   "days",
		Short: "List daily totals with statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := core.ParseDayQuery(rng, sortBy, order)
			return withCounter(cmd, opts, false, func(ctx context.Context, c *cli.Counter) error {
				sum := c.Service.Days(q)
				out := cmd.OutOrStdout()
				if opts.asJSON {
					return writeJSON(out, sum)
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DATE\tTOTAL\t")
				for _, row := range sum.Rows {
					marker := ""
					if row.IsToday {
						marker = "today"
					}
					fmt.Fprintf(tw, "%s\t%d\t%s\n", core.FormatDailyDate(row.Date), row.Total, marker)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(out, "\nDays: %d  Highest: %d  Average: %d\n", sum.Days, sum.Highest, sum.Average)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&rng, "range", string(core.RangeAll), "7days, 30days or all")
	cmd.Flags().StringVar(&sortBy, "sort", string(core.SortByDate), "date or count")
	cmd.Flags().StringVar(&order, "order", string(core.Descending), "asc or desc")
	return cmd
}

var errResetNotConfirmed = errors.New("reset clears today and all daily history; pass --yes to confirm")

func resetCmd(opts *options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear today and all daily history, keeping the lifetime total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errResetNotConfirmed
			}
			return withCounter(cmd, opts, true, func(ctx context.Context, c *cli.Counter) error {
				c.Service.Reset(ctx)
				st := c.Service.Snapshot()
				if opts.asJSON {
					return writeJSON(cmd.OutOrStdout(), st)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Counter reset. Lifetime total kept: %d\n", st.LifetimeTotal)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

