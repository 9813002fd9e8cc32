package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/jetstack/dcc-trustlist/pkg/logs"
)

// envPrefix is the prefix of the environment variables that set flags.
const envPrefix = "TRUSTLIST_"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trustlist",
	Short: "Builds the DCC trust list for offline verifiers",
	Long: `trustlist downloads the public keys of the EU Digital COVID Certificate
issuers from the configured key distribution services and writes them as a
compact, gzip compressed trust list, together with the value sets a verifier
needs to display a certificate.

Every flag can also be set with an environment variable, for example
TRUSTLIST_OUTPUT_PATH for --output-path.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setFlagsFromEnv(envPrefix, cmd.Flags())
		return logs.Initialize()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	logs.AddFlags(rootCmd.PersistentFlags())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = klog.NewContext(ctx, klog.Background())

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setFlagsFromEnv sets every flag of fs that was not given on the command line
// from the environment variable named prefix + the upper-cased flag name, with
// dashes replaced by underscores.
func setFlagsFromEnv(prefix string, fs *pflag.FlagSet) {
	set := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) {
		set[f.Name] = true
	})
	fs.VisitAll(func(f *pflag.Flag) {
		// ignore flags set from the commandline
		if set[f.Name] {
			return
		}
		// remove trailing _ to reduce common errors with the prefix, i.e. people setting it to MY_PROG_
		cleanPrefix := strings.TrimSuffix(prefix, "_")
		name := fmt.Sprintf("%s_%s", cleanPrefix, strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_"))
		if e, ok := os.LookupEnv(name); ok {
			if err := f.Value.Set(e); err != nil {
				klog.Background().Error(err, "ignoring invalid environment variable", "name", name)
				return
			}
			f.Changed = true
		}
	})
}
