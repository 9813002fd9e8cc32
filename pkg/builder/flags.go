package builder

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jetstack/dcc-trustlist/pkg/output"
	"github.com/jetstack/dcc-trustlist/pkg/trustlist"
)

// Flags are the command line settings of the build command. Flags that are
// set override the matching field of the config file.
type Flags struct {
	ConfigFilePath  string
	OutputPath      string
	Artifact        string
	Timeout         time.Duration
	DuplicateKIDs   string
	Strict          bool
	SkipAuxFiles    bool
	MetricsTextfile string
	PrintConfig     bool
}

// InitFlags registers the build flags on c.
func InitFlags(c *cobra.Command, f *Flags) {
	c.PersistentFlags().StringVarP(
		&f.ConfigFilePath,
		"config-file",
		"c",
		"",
		"Config file location. The built-in EU and UK sources are used when empty.",
	)
	c.PersistentFlags().StringVar(
		&f.OutputPath,
		"output-path",
		"",
		"Write to this local directory instead of the output of the config file.",
	)
	c.PersistentFlags().StringVar(
		&f.Artifact,
		"artifact",
		"",
		"Override the file name of the compressed trust list.",
	)
	c.PersistentFlags().DurationVar(
		&f.Timeout,
		"timeout",
		0,
		"Override the timeout of a single upstream request (given as XhYmZs).",
	)
	c.PersistentFlags().StringVar(
		&f.DuplicateKIDs,
		"duplicate-kids",
		"",
		`Override what to do with a kid seen twice: "allow", "first" or "reject".`,
	)
	c.PersistentFlags().BoolVar(
		&f.Strict,
		"strict",
		false,
		"Fail without writing anything when any source or auxiliary file fails.",
	)
	c.PersistentFlags().BoolVar(
		&f.SkipAuxFiles,
		"skip-aux-files",
		false,
		"Only write the trust list.",
	)
	c.PersistentFlags().StringVar(
		&f.MetricsTextfile,
		"metrics-textfile",
		"",
		"Write the build metrics to this file in the Prometheus text format.",
	)
	c.PersistentFlags().BoolVar(
		&f.PrintConfig,
		"print-config",
		false,
		"Print the effective config, with secrets redacted, and exit.",
	)
}

// Options returns the failure handling selected by the flags.
func (f *Flags) Options() Options {
	return Options{Strict: f.Strict, SkipAuxFiles: f.SkipAuxFiles}
}

// ApplyFlags overrides the fields of cfg that have a flag set and validates the
// result.
func ApplyFlags(cfg Config, f Flags) (Config, error) {
	if f.OutputPath != "" {
		cfg.Output = OutputConfig{Type: output.TypeLocal, Path: f.OutputPath}
	}
	if f.Artifact != "" {
		cfg.Artifact = f.Artifact
	}
	if f.Timeout != 0 {
		cfg.HTTP.Timeout = f.Timeout
	}
	if f.DuplicateKIDs != "" {
		cfg.DuplicateKIDs = trustlist.DuplicatePolicy(f.DuplicateKIDs)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
