package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"golang.org/x/net/context"

	"github.com/ariadne-eth/ariadne/cmd/exitcodes"
	"github.com/ariadne-eth/ariadne/node"
)

// traceCmd represents the command provider for tracing a mined transaction.
var traceCmd = &cobra.Command{
	Use:               "trace <tx-hash>",
	Short:             "Reconstruct the call trace of a mined transaction",
	Long:              "Reconstructs a source-level, hierarchical call trace for a mined transaction from the node's instruction trace and registered debug metadata",
	Args:              cmdValidateTraceArgs,
	ValidArgsFunction: cmdValidUnusedFlagArgs,
	RunE:              cmdRunTrace,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Add all the flags allowed for the trace command
	addTraceFlags()

	// Add the trace command and its associated flags to the root command
	rootCmd.AddCommand(traceCmd)
}

// cmdValidateTraceArgs makes sure the trace command receives exactly one transaction hash.
func cmdValidateTraceArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return fmt.Errorf("trace requires exactly one transaction hash argument")
	}
	if len(args[0]) != 66 || args[0][:2] != "0x" {
		return fmt.Errorf("%q is not a transaction hash (want 0x-prefixed 32-byte hex)", args[0])
	}
	return nil
}

// cmdRunTrace executes the CLI trace command: it resolves configuration, builds the contract registry,
// fetches the transaction's instruction trace from the node, and renders the reconstructed call tree.
// A successfully resolved trace exits with success even when the traced transaction reverted.
func cmdRunTrace(cmd *cobra.Command, args []string) error {
	projectConfig, err := loadProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the trace command", err)
		return err
	}
	if err = updateProjectConfigWithTraceFlags(cmd, projectConfig); err != nil {
		cmdLogger.Error("Failed to run the trace command", err)
		return err
	}

	machineReadable, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if err = setupGlobalLogging(projectConfig, machineReadable); err != nil {
		cmdLogger.Error("Failed to set up logging", err)
		return err
	}

	registry, err := buildRegistry(projectConfig)
	if err != nil {
		cmdLogger.Error("Failed to build the contract registry", err)
		return err
	}

	client, err := node.Dial(projectConfig.Node.RPCEndpoint, projectConfig.Trace)
	if err != nil {
		cmdLogger.Error("Failed to connect to the node", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeTraceError)
	}
	defer client.Close()
	verifyRegisteredContracts(context.Background(), client, registry)

	txHash := common.HexToHash(args[0])
	trace, err := client.TraceTransaction(context.Background(), txHash)
	if err != nil {
		cmdLogger.Error("Failed to fetch the transaction trace", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeTraceError)
	}
	cmdLogger.Info("Fetched ", len(trace.Steps), " trace steps for ", txHash.Hex())

	if err = analyzeAndRender(cmd, trace, registry); err != nil {
		cmdLogger.Error("Failed to analyze the trace", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeTraceError)
	}
	return nil
}
