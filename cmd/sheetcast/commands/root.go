// Package commands implements the sheetcast command line.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetcast/internal/logging"
)

// Execute runs the root command.
func Execute(ctx context.Context, version string) error {
	return newRootCommand(version).ExecuteContext(ctx)
}

func newRootCommand(version string) *cobra.Command {
	var (
		verbose   bool
		logFormat string
	)

	rootCmd := &cobra.Command{
		Use:   "sheetcast",
		Short: "Validate and cast tabular files against templates",
		Long: `sheetcast checks CSV files against a template: every header is matched to
a declared column and every cell is cast to its declared type. Problems are
reported as coded messages scoped to the sheet, a column or a cell.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			logging.Setup(level, logFormat)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newCheckCommand())

	return rootCmd
}
