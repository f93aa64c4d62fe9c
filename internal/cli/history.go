package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/aplan/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB    string
	Limit int
}

// RunDetail is the JSON payload for a single recorded run.
type RunDetail struct {
	Run      store.Run          `json:"run"`
	Examples []store.ExampleRow `json:"examples"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [<run-id>]",
		Short: "Show recorded test and regeneration runs",
		Long: `List runs recorded in the history database, newest first, or show
the per-example outcome of one run.

The database is taken from --db, or from "history" in the config file.

Examples:
  aplan history --db .aplan/history.db
  aplan history --limit 5
  aplan history 0190c3c4-7d1e-7cc1-8f6a-2a1b4f7d9e10 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "history database (overrides the config)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum runs to list (0 for all)")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions, args []string) error {
	path := opts.DB
	if path == "" {
		cfg, err := opts.loadConfig(cmd)
		if err != nil {
			return err
		}
		path = cfg.History
	}
	if path == "" {
		return opts.fail(cmd, ExitCommandError, CodeHistory, "no history database (use --db or set history in the config)", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return opts.fail(cmd, ExitCommandError, CodeHistory, "history database not found", err)
	}

	s, err := store.Open(path)
	if err != nil {
		return opts.fail(cmd, ExitCommandError, CodeHistory, "open run history", err)
	}
	defer s.Close()

	if len(args) == 1 {
		return showRun(cmd, opts, s, args[0])
	}

	runs, err := s.Runs(cmd.Context(), opts.Limit)
	if err != nil {
		return opts.fail(cmd, ExitCommandError, CodeHistory, "read run history", err)
	}
	f := opts.formatter(cmd)
	if f.JSON() {
		return f.Success(runs)
	}
	writeRunsText(cmd.OutOrStdout(), runs)
	return nil
}

func showRun(cmd *cobra.Command, opts *HistoryOptions, s *store.Store, id string) error {
	run, err := s.Run(cmd.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		return opts.fail(cmd, ExitCommandError, CodeHistory, "unknown run", err)
	}
	if err != nil {
		return opts.fail(cmd, ExitCommandError, CodeHistory, "read run history", err)
	}
	examples, err := s.Examples(cmd.Context(), id)
	if err != nil {
		return opts.fail(cmd, ExitCommandError, CodeHistory, "read run history", err)
	}

	f := opts.formatter(cmd)
	if f.JSON() {
		return f.Success(RunDetail{Run: run, Examples: examples})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s (%s) %s\n", run.Kind, run.ID, run.Variant, run.Manifest)
	fmt.Fprintf(w, "started %s, took %s\n\n", run.StartedAt.Format(time.RFC3339), run.Duration)
	for _, ex := range examples {
		fmt.Fprintf(w, "%-5s %d %s\n", ex.Status, ex.Index+1, ex.File)
		if ex.Detail != "" {
			fmt.Fprintf(w, "    error: %s\n", ex.Detail)
		}
		writePaths(w, "missing", ex.Missing)
		writePaths(w, "extra", ex.Extra)
		writePaths(w, "differing", ex.Differing)
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d errored of %d\n", run.Passed, run.Failed, run.Errored, run.Total)
	return nil
}

func writeRunsText(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tKIND\tVARIANT\tSTARTED\tPASSED\tTOTAL\tMANIFEST")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Kind, r.Variant, r.StartedAt.Format(time.RFC3339), r.Passed, r.Total, r.Manifest)
	}
	tw.Flush()
}
