package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ariadne-eth/ariadne/logging"
)

// rootCmd represents the root CLI command object which all other commands are attached to.
var rootCmd = &cobra.Command{
	Use:           "ariadne",
	Short:         "A source-level debugger for EVM transactions",
	Long:          "ariadne reconstructs human-readable call traces for EVM transactions from node-supplied instruction traces and compiler debug metadata",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// cmdLogger describes the logger used by the command package.
var cmdLogger = logging.GlobalLogger.NewSubLogger("module", "cli")

// Execute provides an exportable function to invoke the CLI.
func Execute() error {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	return rootCmd.Execute()
}
