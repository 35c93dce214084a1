package cmd

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"golang.org/x/net/context"

	"github.com/ariadne-eth/ariadne/abiutils"
	"github.com/ariadne-eth/ariadne/cmd/exitcodes"
	"github.com/ariadne-eth/ariadne/node"
	"github.com/ariadne-eth/ariadne/utils"
)

// simulateCmd represents the command provider for tracing a hypothetical call.
var simulateCmd = &cobra.Command{
	Use:               "simulate <target> <signature> [args...]",
	Short:             "Trace a hypothetical call without sending a transaction",
	Long:              "Encodes the given function call, executes it through the node's tracer against the current (or a chosen) block, and renders the reconstructed call tree. Positional arguments are literals matching the signature's parameter types, e.g. ariadne simulate 0x… 'transfer(address,uint256)' 0xabc… 100",
	Args:              cmdValidateSimulateArgs,
	ValidArgsFunction: cmdValidUnusedFlagArgs,
	RunE:              cmdRunSimulate,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Add all the flags allowed for the simulate command
	addSimulateFlags()

	// Add the simulate command and its associated flags to the root command
	rootCmd.AddCommand(simulateCmd)
}

// cmdValidateSimulateArgs makes sure simulate receives a target address and a function signature.
func cmdValidateSimulateArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.MinimumNArgs(2)(cmd, args); err != nil {
		return fmt.Errorf("simulate requires a target address and a function signature")
	}
	if !common.IsHexAddress(args[0]) {
		return fmt.Errorf("%q is not a contract address", args[0])
	}
	return nil
}

// cmdRunSimulate executes the CLI simulate command: it encodes the requested call through the argument
// codec (or takes raw calldata verbatim), traces it through the node, and runs the same analysis
// pipeline as the trace command.
func cmdRunSimulate(cmd *cobra.Command, args []string) error {
	projectConfig, err := loadProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the simulate command", err)
		return err
	}
	if err = updateProjectConfigWithSimulateFlags(cmd, projectConfig); err != nil {
		cmdLogger.Error("Failed to run the simulate command", err)
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

	call, err := assembleSimulatedCall(cmd, projectConfig.Node.DefaultSender, args)
	if err != nil {
		// Codec errors carry the offending literal and the expected type; report them as-is.
		cmdLogger.Error("Failed to encode the simulated call", err)
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

	blockNumber, err := blockOverride(cmd)
	if err != nil {
		return err
	}
	trace, err := client.TraceCall(context.Background(), *call, blockNumber)
	if err != nil {
		cmdLogger.Error("Failed to simulate the call", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeTraceError)
	}
	cmdLogger.Info("Simulated call produced ", len(trace.Steps), " trace steps")

	if err = analyzeAndRender(cmd, trace, registry); err != nil {
		cmdLogger.Error("Failed to analyze the simulated trace", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeTraceError)
	}
	return nil
}

// assembleSimulatedCall builds the call to trace: target and sender addresses, transferred value, and
// calldata either encoded from the signature and its positional literals or taken verbatim from
// --raw-data.
func assembleSimulatedCall(cmd *cobra.Command, defaultSender string, args []string) (*node.SimulatedCall, error) {
	call := &node.SimulatedCall{To: common.HexToAddress(args[0])}

	fromText, err := cmd.Flags().GetString("from")
	if err != nil {
		return nil, err
	}
	if fromText == "" {
		fromText = defaultSender
	}
	if fromText != "" {
		from, err := utils.HexStringToAddress(fromText)
		if err != nil {
			return nil, err
		}
		call.From = *from
	}

	valueText, err := cmd.Flags().GetString("value")
	if err != nil {
		return nil, err
	}
	if valueText != "" {
		value, ok := new(big.Int).SetString(valueText, 0)
		if !ok {
			return nil, fmt.Errorf("%q is not a valid call value", valueText)
		}
		call.Value = value
	}

	rawData, err := cmd.Flags().GetString("raw-data")
	if err != nil {
		return nil, err
	}
	if rawData != "" {
		call.Data, err = hexutil.Decode(rawData)
		if err != nil {
			return nil, fmt.Errorf("could not parse --raw-data: %v", err)
		}
		return call, nil
	}

	method, err := abiutils.ParseSignature(args[1])
	if err != nil {
		return nil, err
	}
	values, err := abiutils.ParseLiterals(method.Inputs, args[2:])
	if err != nil {
		return nil, err
	}
	call.Data, err = abiutils.EncodeCallData(method, values)
	if err != nil {
		return nil, err
	}
	return call, nil
}

// blockOverride returns the block number the simulation should run against, or nil for the latest.
func blockOverride(cmd *cobra.Command) (*big.Int, error) {
	if !cmd.Flags().Changed("block") {
		return nil, nil
	}
	blockNumber, err := cmd.Flags().GetUint64("block")
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(blockNumber), nil
}
