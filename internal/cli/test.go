package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/aplan/internal/compare"
	"github.com/roach88/aplan/internal/config"
	"github.com/roach88/aplan/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Workers     int
	KeepResults bool
	Normalize   bool
	History     string
	BaseDir     string
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <manifest>",
		Short: "Run the golden-master test suite",
		Long: `Translate every manifest example into its result_dir and compare the
produced tree with its aplan_dir reference.

An example PASSes when both trees hold the same relative paths with
identical content. Missing, extra and differing files make it FAIL;
translator or filesystem failures make it ERROR. One failing example
never stops the others.

Exit codes:
  0 - All examples passed
  1 - One or more examples failed or errored
  2 - Command error (unreadable manifest, no variant, etc.)

Examples:
  aplan test --variant sv tests.json
  aplan test tests.yaml --workers 4 --keep-results
  aplan test tests.cue --normalize --format json
  aplan test ci/tests.json --base-dir .`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.Workers, "workers", "j", 1, "examples translated concurrently")
	cmd.Flags().BoolVar(&opts.KeepResults, "keep-results", false, "keep each result_dir after comparing")
	cmd.Flags().BoolVar(&opts.Normalize, "normalize", false, "ignore line endings, trailing whitespace and Unicode form")
	cmd.Flags().StringVar(&opts.History, "history", "", "record the run in this history database")
	cmd.Flags().StringVar(&opts.BaseDir, "base-dir", "", "resolve manifest paths against this directory instead of the manifest's")

	return cmd
}

// applyTo overrides cfg with the flags given on the command line.
func (o *TestOptions) applyTo(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = o.Workers
	}
	if flags.Changed("keep-results") {
		cfg.KeepResults = o.KeepResults
	}
	if flags.Changed("normalize") && o.Normalize {
		cfg.Compare.Mode = compare.Normalized.String()
	}
	if flags.Changed("history") {
		cfg.History = o.History
	}
	if flags.Changed("base-dir") {
		cfg.Manifest.BaseDir = o.BaseDir
	}
}

func runTests(cmd *cobra.Command, opts *TestOptions, manifestPath string) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	opts.applyTo(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return opts.fail(cmd, ExitCommandError, CodeConfig, "invalid flags", err)
	}

	env, err := opts.openEnvironment(cmd, cfg, true)
	if err != nil {
		return err
	}
	defer env.Close()

	report, err := env.session.RunTests(cmd.Context(), manifestPath)
	if err != nil {
		return opts.fail(cmd, ExitCommandError, CodeManifest, "load manifest", err)
	}
	return finishBatch(cmd, opts.RootOptions, report)
}

// finishBatch writes the report and maps its outcome to an exit code.
func finishBatch(cmd *cobra.Command, opts *RootOptions, report *harness.BatchReport) error {
	f := opts.formatter(cmd)
	if f.JSON() {
		if err := f.Report(report.Passed(), report.RunID, report); err != nil {
			return err
		}
	} else {
		writeBatchText(cmd.OutOrStdout(), report)
	}

	if report.Passed() {
		return nil
	}
	c := report.Counts()
	return NewExitError(ExitFailure, fmt.Sprintf("%d of %d examples did not pass", c.Failed+c.Errored, c.Total))
}
