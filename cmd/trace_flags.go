package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ariadne-eth/ariadne/config"
)

// addTraceFlags adds the various flags for the trace command.
func addTraceFlags() {
	// Prevent alphabetical sorting of usage message
	traceCmd.Flags().SortFlags = false

	// Config file
	traceCmd.Flags().String("config", "", "path to config file")

	// Node endpoint
	traceCmd.Flags().String("rpc", "", "URL of the node's JSON-RPC endpoint (overrides the config file)")

	// Debug metadata sources
	traceCmd.Flags().StringSlice("ethdebug-dir", []string{}, DebugDirFlagDescription)
	traceCmd.Flags().String("contracts", "", "path to a contract mapping file")

	// Trace capture
	traceCmd.Flags().Uint64("max-steps", 0, "cap on the number of trace steps to analyze; 0 means no cap")

	// Display modes
	traceCmd.Flags().Bool("json", false, "emit a machine-readable JSON trace document on stdout")
	traceCmd.Flags().Bool("raw", false, "emit the flat instruction listing instead of a call tree")
	traceCmd.Flags().Bool("interactive", false, "open an interactive stepping session after rendering")
	traceCmd.Flags().Bool("no-color", false, "disable ANSI coloring in output")
}

// updateProjectConfigWithTraceFlags will update the given projectConfig with any CLI arguments that were
// provided to the trace command.
func updateProjectConfigWithTraceFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
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
