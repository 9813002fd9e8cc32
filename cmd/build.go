package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/jetstack/dcc-trustlist/pkg/builder"
	"github.com/jetstack/dcc-trustlist/pkg/fetch"
	"github.com/jetstack/dcc-trustlist/pkg/pathutils"
)

var buildFlags builder.Flags

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "download the keys and write the trust list",
	Long: `Download the public keys from every configured source, write them as a
gzip compressed trust list, and copy the auxiliary value sets next to it.

A source that cannot be fetched or decoded only loses its own keys, unless
--strict is given. The command fails when no source contributed.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	builder.InitFlags(buildCmd, &buildFlags)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := klog.FromContext(ctx).WithName("build")
	ctx = klog.NewContext(ctx, logger)

	cfg, err := builder.LoadConfig(buildFlags.ConfigFilePath)
	if err != nil {
		return err
	}
	cfg, err = builder.ApplyFlags(cfg, buildFlags)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if buildFlags.PrintConfig {
		dump, err := cfg.Dump()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), dump)
		return nil
	}

	out, err := cfg.NewOutput(ctx)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	metrics := builder.NewMetrics()
	report, buildErr := builder.Build(ctx, cfg, buildFlags.Options(), fetch.NewClient(cfg.FetchOptions()), out, metrics)

	if buildFlags.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(pathutils.ExpandHome(buildFlags.MetricsTextfile)); err != nil {
			logger.Error(err, "failed to write metrics", "path", buildFlags.MetricsTextfile)
		}
	}

	if buildErr != nil {
		return buildErr
	}

	for _, s := range report.Sources {
		if s.Err != nil {
			logger.Info("source failed, its keys are missing from the trust list", "source", s.Name)
		}
	}
	logger.Info("build complete", "records", report.Records)
	return nil
}
