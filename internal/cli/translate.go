package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/aplan/internal/harness"
)

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	Out string // result directory
}

// TranslateResult is the JSON payload of the translate command.
type TranslateResult struct {
	Source string   `json:"source"`
	Result string   `json:"result"`
	Files  []string `json:"files"`
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate <source>",
		Short: "Translate one HDL source into Aplan artifacts",
		Long: `Translate a single source file with the configured translator and
replace the result directory with the produced artifacts.

Exit codes:
  0 - Translation written
  2 - Command error (no variant, wrong extension, translator failure, etc.)

Examples:
  aplan translate --variant sv counter.sv
  aplan translate --variant vhdl top.vhdl --out build/aplan`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "result directory (default ./"+harness.DefaultResultDirName+")")

	return cmd
}

func runTranslate(cmd *cobra.Command, opts *TranslateOptions, source string) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	env, err := opts.openEnvironment(cmd, cfg, false)
	if err != nil {
		return err
	}
	defer env.Close()

	out := opts.Out
	if out == "" {
		out = harness.DefaultResultDir(source)
	}
	tree, err := env.session.Start(cmd.Context(), source, out)
	if err != nil {
		return opts.fail(cmd, ExitCommandError, CodeTranslation, "translation failed", err)
	}

	result := TranslateResult{Source: source, Result: out, Files: tree.Paths()}
	f := opts.formatter(cmd)
	if f.JSON() {
		return f.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Translated %s -> %s (%d files)\n", source, out, len(result.Files))
	for _, p := range result.Files {
		fmt.Fprintf(w, "  %s\n", p)
	}
	return nil
}
