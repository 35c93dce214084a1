package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ariadne-eth/ariadne/config"
)

// addSimulateFlags adds the various flags for the simulate command.
func addSimulateFlags() {
	// Prevent alphabetical sorting of usage message
	simulateCmd.Flags().SortFlags = false

	// Config file
	simulateCmd.Flags().String("config", "", "path to config file")

	// Node endpoint
	simulateCmd.Flags().String("rpc", "", "URL of the node's JSON-RPC endpoint (overrides the config file)")

	// Call parameters
	simulateCmd.Flags().String("from", "", "sender address for the simulated call (overrides the config file)")
	simulateCmd.Flags().String("value", "", "wei transferred with the simulated call")
	simulateCmd.Flags().Uint64("block", 0, "block number to simulate against (defaults to the latest block)")
	simulateCmd.Flags().String("raw-data", "", "hex calldata to send verbatim, bypassing signature encoding")

	// Debug metadata sources
	simulateCmd.Flags().StringSlice("ethdebug-dir", []string{}, DebugDirFlagDescription)
	simulateCmd.Flags().String("contracts", "", "path to a contract mapping file")

	// Trace capture
	simulateCmd.Flags().Uint64("max-steps", 0, "cap on the number of trace steps to analyze; 0 means no cap")

	// Display modes
	simulateCmd.Flags().Bool("json", false, "emit a machine-readable JSON trace document on stdout")
	simulateCmd.Flags().Bool("raw", false, "emit the flat instruction listing instead of a call tree")
	simulateCmd.Flags().Bool("interactive", false, "open an interactive stepping session after rendering")
	simulateCmd.Flags().Bool("no-color", false, "disable ANSI coloring in output")
}

// updateProjectConfigWithSimulateFlags will update the given projectConfig with any CLI arguments that
// were provided to the simulate command.
func updateProjectConfigWithSimulateFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	var err error
	if cmd.Flags().Changed("rpc") {
		projectConfig.Node.RPCEndpoint, err = cmd.Flags().GetString("rpc")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("ethdebug-dir") {
		directives, err := cmd.Flags().GetStringSlice("ethdebug-dir")
		if err != nil {
			return err
		}
		projectConfig.Contracts.DebugDirectories = append(projectConfig.Contracts.DebugDirectories, directives...)
	}
	if cmd.Flags().Changed("contracts") {
		projectConfig.Contracts.MappingFile, err = cmd.Flags().GetString("contracts")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("max-steps") {
		projectConfig.Trace.MaxSteps, err = cmd.Flags().GetUint64("max-steps")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("no-color") {
		projectConfig.Logging.NoColor, err = cmd.Flags().GetBool("no-color")
		if err != nil {
			return err
		}
	}
	return nil
}
