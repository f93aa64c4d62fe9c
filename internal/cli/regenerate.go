package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/aplan/internal/config"
	"github.com/roach88/aplan/internal/harness"
)

// RegenerateOptions holds flags for the regenerate command.
type RegenerateOptions struct {
	*RootOptions
	File    string // single source to regenerate
	Aplan   string // reference directory for File
	Workers int
	History string
	BaseDir string
}

// NewRegenerateCommand creates the regenerate command.
func NewRegenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "regenerate [<manifest>]",
		Short: "Rewrite reference trees from the current translator",
		Long: `Replace reference trees with fresh translations.

With a manifest, every example's aplan_dir is rewritten. With --file, a
single source is translated into --aplan, or into an "aplan" directory
next to the source. A reference is only replaced once its new
translation has been fully written.

Exit codes:
  0 - All references rewritten
  1 - One or more manifest examples failed to regenerate
  2 - Command error (bad arguments, unreadable manifest, failed --file run)

Examples:
  aplan regenerate --variant sv tests.json
  aplan regenerate --variant vhdl --file top.vhdl
  aplan regenerate --variant sv --file counter.sv --aplan refs/counter`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegenerate(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "regenerate a single source file")
	cmd.Flags().StringVar(&opts.Aplan, "aplan", "", "reference directory for --file (default <source dir>/"+harness.DefaultReferenceDirName+")")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "j", 1, "examples translated concurrently")
	cmd.Flags().StringVar(&opts.History, "history", "", "record the run in this history database")
	cmd.Flags().StringVar(&opts.BaseDir, "base-dir", "", "resolve manifest paths against this directory instead of the manifest's")

	return cmd
}

func (o *RegenerateOptions) applyTo(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("workers") {
		cfg.Workers = o.Workers
	}
	if cmd.Flags().Changed("history") {
		cfg.History = o.History
	}
	if cmd.Flags().Changed("base-dir") {
		cfg.Manifest.BaseDir = o.BaseDir
	}
}

func runRegenerate(cmd *cobra.Command, opts *RegenerateOptions, args []string) error {
	switch {
	case len(args) == 1 && opts.File != "":
		return opts.fail(cmd, ExitCommandError, CodeConfig, "give either a manifest or --file, not both", nil)
	case len(args) == 0 && opts.File == "":
		return opts.fail(cmd, ExitCommandError, CodeConfig, "a manifest or --file is required", nil)
	case opts.Aplan != "" && opts.File == "":
		return opts.fail(cmd, ExitCommandError, CodeConfig, "--aplan requires --file", nil)
	case opts.BaseDir != "" && opts.File != "":
		return opts.fail(cmd, ExitCommandError, CodeConfig, "--base-dir applies to manifests, not --file", nil)
	}

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	opts.applyTo(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return opts.fail(cmd, ExitCommandError, CodeConfig, "invalid flags", err)
	}

	env, err := opts.openEnvironment(cmd, cfg, opts.File == "")
	if err != nil {
		return err
	}
	defer env.Close()

	if opts.File != "" {
		return regenerateFile(cmd, opts, env)
	}

	report, err := env.session.Regenerate(cmd.Context(), args[0])
	if err != nil {
		return opts.fail(cmd, ExitCommandError, CodeManifest, "load manifest", err)
	}
	return finishBatch(cmd, opts.RootOptions, report)
}

func regenerateFile(cmd *cobra.Command, opts *RegenerateOptions, env *environment) error {
	report, err := env.session.RegenerateFile(cmd.Context(), opts.File, opts.Aplan)
	if err != nil {
		return opts.fail(cmd, ExitCommandError, CodeTranslation, "regeneration failed", err)
	}

	f := opts.formatter(cmd)
	if f.JSON() {
		return f.Success(report)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Regenerated %s -> %s\n", report.Example.File, report.Example.AplanDir)
	return nil
}
