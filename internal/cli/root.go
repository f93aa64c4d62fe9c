package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/aplan/internal/harness"
	"github.com/roach88/aplan/internal/translate"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Variant    string

	// Registry replaces the translators built from the configuration.
	Registry *translate.Registry
	// RunIDs and Now are handed to the harness; nil keeps its defaults.
	RunIDs harness.RunIDGenerator
	Now    func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the aplan CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aplan",
		Short: "aplan - HDL to Aplan translation harness",
		Long: `Translate SystemVerilog or VHDL sources into Aplan artifacts and verify
them against stored reference trees.

A manifest lists examples as {file, result_dir, aplan_dir}. "aplan test"
translates every example into result_dir and compares it with aplan_dir;
"aplan regenerate" rewrites aplan_dir from the current translator.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logs, diffs)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./aplan.yaml when present)")
	cmd.PersistentFlags().StringVar(&opts.Variant, "variant", "", "source variant (sv|vhdl), overrides the config")

	cmd.AddCommand(NewTranslateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewRegenerateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}
