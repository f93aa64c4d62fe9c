// Package config loads aplan.yaml, the harness configuration file.
//
// A configuration names the source variant, the external translator
// command for each variant, and defaults for batch runs:
//
//	variant: sv
//	workers: 4
//	keep_results: false
//	history: .aplan/history.db
//	manifest:
//	  default_result_dir: test_result
//	compare:
//	  mode: exact
//	  extensions: [.act, .behp, .env_descript, .evt_descript]
//	translators:
//	  sv:
//	    command: [sv2aplan, "{source}", -o, "{out}"]
//	  vhdl:
//	    command: [vhdl2aplan, "{source}", "{out}"]
//	    env: [VHDL_STD=2008]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/aplan/internal/compare"
	"github.com/roach88/aplan/internal/harness"
	"github.com/roach88/aplan/internal/manifest"
	"github.com/roach88/aplan/internal/translate"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "aplan.yaml"

// Config is the decoded aplan.yaml.
type Config struct {
	Variant     string                `yaml:"variant"`
	Workers     int                   `yaml:"workers"`
	KeepResults bool                  `yaml:"keep_results"`
	History     string                `yaml:"history"`
	Manifest    ManifestConfig        `yaml:"manifest"`
	Compare     CompareConfig         `yaml:"compare"`
	Translators map[string]Translator `yaml:"translators"`
}

// ManifestConfig controls how manifest entries are resolved.
type ManifestConfig struct {
	// BaseDir resolves relative entry paths instead of the manifest's
	// own directory.
	BaseDir string `yaml:"base_dir"`

	// DefaultResultDir names the result directory placed beside each
	// source whose entry omits result_dir.
	DefaultResultDir string `yaml:"default_result_dir"`
}

// CompareConfig selects the comparison mode and optional extension filter.
type CompareConfig struct {
	Mode       string   `yaml:"mode"`
	Extensions []string `yaml:"extensions"`
}

// Translator describes an external translator executable.
type Translator struct {
	Command []string `yaml:"command"`
	Env     []string `yaml:"env"`
	Dir     string   `yaml:"dir"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Workers: 1,
		Compare: CompareConfig{Mode: compare.Exact.String()},
	}
}

// Load reads and validates the configuration at path. Fields absent from
// the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when given. With an empty path it loads
// DefaultFile if that exists, and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultFile); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(DefaultFile)
}

// Parse decodes and validates configuration bytes. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	if c.Variant != "" {
		if _, err := translate.ParseVariant(c.Variant); err != nil {
			return fmt.Errorf("variant: %w", err)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if d := c.Manifest.DefaultResultDir; d != "" && filepath.IsAbs(d) {
		return fmt.Errorf("manifest.default_result_dir must be relative, got %q", d)
	}
	if c.Compare.Mode != "" {
		if _, err := compare.ParseMode(c.Compare.Mode); err != nil {
			return fmt.Errorf("compare.mode: %w", err)
		}
	}
	for name, tr := range c.Translators {
		if _, err := translate.ParseVariant(name); err != nil {
			return fmt.Errorf("translators: %w", err)
		}
		if len(tr.Command) == 0 {
			return fmt.Errorf("translators.%s: command is required", name)
		}
	}
	return nil
}

// SourceVariant returns the configured variant, or ok=false when the
// file leaves it unset.
func (c *Config) SourceVariant() (v translate.Variant, ok bool, err error) {
	if c.Variant == "" {
		return 0, false, nil
	}
	v, err = translate.ParseVariant(c.Variant)
	return v, err == nil, err
}

// BuildRegistry registers a CommandTranslator for every configured
// translator.
func (c *Config) BuildRegistry() (*translate.Registry, error) {
	reg := translate.NewRegistry()

	names := make([]string, 0, len(c.Translators))
	for name := range c.Translators {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		v, err := translate.ParseVariant(name)
		if err != nil {
			return nil, fmt.Errorf("translators: %w", err)
		}
		tr := c.Translators[name]
		err = reg.Register(v, &translate.CommandTranslator{
			Variant: v,
			Args:    slices.Clone(tr.Command),
			Env:     slices.Clone(tr.Env),
			Dir:     tr.Dir,
		})
		if err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Comparator builds the comparator described by the compare section.
func (c *Config) Comparator() (compare.Comparator, error) {
	mode := compare.Exact
	if c.Compare.Mode != "" {
		m, err := compare.ParseMode(c.Compare.Mode)
		if err != nil {
			return compare.Comparator{}, fmt.Errorf("compare.mode: %w", err)
		}
		mode = m
	}
	return compare.Comparator{Mode: mode, Extensions: slices.Clone(c.Compare.Extensions)}, nil
}

// HarnessOptions maps the configuration onto harness.Options.
func (c *Config) HarnessOptions(logger *slog.Logger, recorder harness.Recorder) (harness.Options, error) {
	cmp, err := c.Comparator()
	if err != nil {
		return harness.Options{}, err
	}
	return harness.Options{
		Workers:     c.Workers,
		Comparator:  cmp,
		KeepResults: c.KeepResults,
		Manifest: manifest.Options{
			BaseDir:          c.Manifest.BaseDir,
			DefaultResultDir: c.Manifest.DefaultResultDir,
		},
		Logger:   logger,
		Recorder: recorder,
	}, nil
}
