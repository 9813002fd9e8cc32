package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jetstack/dcc-trustlist/pkg/inspect"
	"github.com/jetstack/dcc-trustlist/pkg/trustlist"
)

var inspectListKeys bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <artifact>",
	Short: "summarize a trust list artifact",
	Long: `Read a gzip compressed trust list, check every record and print the
number of keys per algorithm and usage.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		records, err := trustlist.ReadArtifact(f)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		inspect.Print(cmd.OutOrStdout(), records, inspectListKeys)
		if err := inspect.Check(records); err != nil {
			return fmt.Errorf("%s contains invalid records: %w", args[0], err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVarP(
		&inspectListKeys,
		"keys",
		"k",
		false,
		"List every key.",
	)
}
