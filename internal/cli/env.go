package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/aplan/internal/config"
	"github.com/roach88/aplan/internal/harness"
	"github.com/roach88/aplan/internal/store"
	"github.com/roach88/aplan/internal/translate"
)

// environment is what a translating command needs: the merged
// configuration, a logger, a configured session and, when enabled, the
// run history store.
type environment struct {
	cfg     *config.Config
	logger  *slog.Logger
	session *harness.Session
	history *store.Store
}

func (e *environment) Close() error {
	if e.history == nil {
		return nil
	}
	return e.history.Close()
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout(), Verbose: o.Verbose}
}

// newLogger writes slog text records to stderr so stdout stays parseable.
func (o *RootOptions) newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// fail emits a JSON error response when --format=json and returns the
// matching ExitError.
func (o *RootOptions) fail(cmd *cobra.Command, exitCode int, code, message string, err error) error {
	f := o.formatter(cmd)
	if f.JSON() {
		var details any
		if err != nil {
			details = err.Error()
		}
		_ = f.Error(code, message, details)
	}
	if err == nil {
		return NewExitError(exitCode, message)
	}
	return WrapExitError(exitCode, message, err)
}

// loadConfig resolves --config, falling back to ./aplan.yaml or defaults.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(o.ConfigPath)
	if err != nil {
		return nil, o.fail(cmd, ExitCommandError, CodeConfig, "load config", err)
	}
	return cfg, nil
}

// openEnvironment configures a harness session for cfg. The history store
// is opened only when withHistory is set and cfg names a database.
func (o *RootOptions) openEnvironment(cmd *cobra.Command, cfg *config.Config, withHistory bool) (*environment, error) {
	logger := o.newLogger(cmd)
	logger.Debug("configuration loaded",
		"config", o.ConfigPath,
		"workers", cfg.Workers,
		"compare", cfg.Compare.Mode,
		"history", cfg.History,
	)

	registry := o.Registry
	if registry == nil {
		var err error
		if registry, err = cfg.BuildRegistry(); err != nil {
			return nil, o.fail(cmd, ExitCommandError, CodeConfig, "build translators", err)
		}
	}

	env := &environment{cfg: cfg, logger: logger}
	var recorder harness.Recorder
	if withHistory && cfg.History != "" {
		s, err := openHistory(cfg.History)
		if err != nil {
			return nil, o.fail(cmd, ExitCommandError, CodeHistory, "open run history", err)
		}
		env.history = s
		recorder = s
	}

	session, err := o.configure(cmd, cfg, registry, logger, recorder)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.session = session
	return env, nil
}

func (o *RootOptions) configure(cmd *cobra.Command, cfg *config.Config, registry *translate.Registry, logger *slog.Logger, recorder harness.Recorder) (*harness.Session, error) {
	hopts, err := cfg.HarnessOptions(logger, recorder)
	if err != nil {
		return nil, o.fail(cmd, ExitCommandError, CodeConfig, "invalid config", err)
	}
	hopts.RunIDs = o.RunIDs
	hopts.Now = o.Now
	tool := harness.New(registry, hopts)

	if o.Variant != "" {
		cfg.Variant = o.Variant
	}
	v, ok, err := cfg.SourceVariant()
	if err != nil {
		return nil, o.fail(cmd, ExitCommandError, CodeConfig, "invalid variant", err)
	}
	if !ok {
		_, err := tool.Session()
		return nil, o.fail(cmd, ExitCommandError, CodeConfig,
			"no source variant (use --variant or set variant in "+config.DefaultFile+")", err)
	}
	session, err := tool.Configure(v)
	if err != nil {
		var unsupported *translate.UnsupportedVariantError
		if errors.As(err, &unsupported) {
			return nil, o.fail(cmd, ExitCommandError, CodeConfig,
				fmt.Sprintf("no translator configured for %s", v), err)
		}
		return nil, o.fail(cmd, ExitCommandError, CodeConfig, "configure", err)
	}
	return session, nil
}

func openHistory(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	return store.Open(path)
}
