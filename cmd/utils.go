package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/net/context"

	"github.com/ariadne-eth/ariadne/config"
	"github.com/ariadne-eth/ariadne/contracts"
	"github.com/ariadne-eth/ariadne/logging"
	"github.com/ariadne-eth/ariadne/logging/colors"
	"github.com/ariadne-eth/ariadne/node"
	"github.com/ariadne-eth/ariadne/tracing"
	"github.com/ariadne-eth/ariadne/utils"
)

// cmdValidUnusedFlagArgs will return which flags are valid for dynamic completion: every flag of the
// command that has not been set on the current command line yet.
func cmdValidUnusedFlagArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var unusedFlags []string
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			// Include the "--" prefix to indicate that it is a flag and not a positional argument.
			unusedFlags = append(unusedFlags, "--"+flag.Name)
		}
	})
	return unusedFlags, cobra.ShellCompDirectiveNoFileComp
}

// loadProjectConfig resolves the project configuration for a command invocation: an explicit --config
// path must exist; otherwise ariadne.json in the working directory is read when present; otherwise the
// defaults apply. CLI flags are layered on top by the per-command flag files afterward.
func loadProjectConfig(cmd *cobra.Command) (*config.ProjectConfig, error) {
	configFlagUsed := cmd.Flags().Changed("config")
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	if !configFlagUsed {
		workingDirectory, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(workingDirectory, DefaultProjectConfigFilename)
	}

	if utils.FileExists(configPath) {
		return config.ReadProjectConfigFromFile(configPath)
	}
	if configFlagUsed {
		return nil, fmt.Errorf("no config file exists at %v", configPath)
	}
	return config.GetDefaultProjectConfig(), nil
}

// setupGlobalLogging installs the global logger according to the project configuration. Machine-readable
// output modes silence the console logger and strip coloring so stdout and stderr stay parseable.
func setupGlobalLogging(projectConfig *config.ProjectConfig, machineReadable bool) error {
	logging.GlobalLogger = logging.NewLogger(projectConfig.Logging.Level, !machineReadable)
	cmdLogger = logging.GlobalLogger.NewSubLogger("module", "cli")

	if projectConfig.Logging.NoColor || machineReadable {
		colors.DisableColor()
	}
	if projectConfig.Logging.LogDirectory != "" {
		file, err := utils.CreateFile(projectConfig.Logging.LogDirectory, "ariadne.log")
		if err != nil {
			return err
		}
		logging.GlobalLogger.AddWriter(file, logging.STRUCTURED)
	}
	return nil
}

// buildRegistry populates a contract registry from the project configuration: the mapping file first,
// then the debug-directory directives, so explicit directives override mapping entries for the same
// address. Per-directive metadata failures degrade that contract only.
func buildRegistry(projectConfig *config.ProjectConfig) (*contracts.Registry, error) {
	registry := contracts.NewRegistry()
	if projectConfig.Contracts.MappingFile != "" {
		if err := registry.LoadMappingFile(projectConfig.Contracts.MappingFile); err != nil {
			return nil, err
		}
	}
	for _, directive := range projectConfig.Contracts.DebugDirectories {
		if err := registry.AddDirective(directive); err != nil {
			cmdLogger.Warn("Skipping contract directive ", directive, ": ", err)
		}
	}
	if registry.Count() == 0 {
		cmdLogger.Warn("No contracts registered; the trace will carry bytecode-level facts only")
	}
	return registry, nil
}

// verifyRegisteredContracts compares each registered contract's metadata against the code deployed at its
// address. Mismatches warn rather than fail: symbolication against wrong metadata produces misleading but
// inspectable output, and the comparison itself needs a reachable node.
func verifyRegisteredContracts(ctx context.Context, client *node.Client, registry *contracts.Registry) {
	for _, contract := range registry.Contracts() {
		code, err := client.Code(ctx, contract.Address)
		if err != nil {
			cmdLogger.Debug("Could not fetch the code at ", contract.Address.String(), " for verification: ", err)
			continue
		}
		if len(code) == 0 {
			cmdLogger.Warn("No code is deployed at ", contract.Address.String(), ", registered as ", contract.Name)
			continue
		}
		if matched, determined := contract.MatchesDeployedCode(code); determined && !matched {
			cmdLogger.Warn("The code deployed at ", contract.Address.String(), " does not match the metadata registered for ", contract.Name)
		}
	}
}

// analyzeAndRender runs the shared back half of the trace and simulate commands: raw listing when
// requested, otherwise call-tree reconstruction followed by JSON or pretty rendering, and the
// interactive session when asked for.
func analyzeAndRender(cmd *cobra.Command, trace *tracing.TransactionTrace, registry *contracts.Registry) error {
	rawOutput, err := cmd.Flags().GetBool("raw")
	if err != nil {
		return err
	}
	if rawOutput {
		fmt.Print(tracing.RenderRawTrace(trace))
		return nil
	}

	root, err := tracing.Build(trace, registry)
	if err != nil {
		var truncated *tracing.TruncatedTraceError
		if !errors.As(err, &truncated) {
			return err
		}
		cmdLogger.Warn("Partial call tree: ", truncated.Error())
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if jsonOutput {
		document, err := tracing.RenderJSON(trace, root)
		if err != nil {
			return err
		}
		fmt.Println(document)
	} else {
		fmt.Println(tracing.RenderCallTree(root, colors.Enabled()))
		printTraceSummary(trace, root)
	}

	interactive, err := cmd.Flags().GetBool("interactive")
	if err != nil {
		return err
	}
	if interactive {
		return runInteractiveSession(trace, root)
	}
	return nil
}

// printTraceSummary prints the overall outcome line under a pretty call tree.
func printTraceSummary(trace *tracing.TransactionTrace, root *tracing.CallFrame) {
	status := colors.Green("success")
	if trace.Failed {
		status = colors.RedBold("reverted")
	}
	fmt.Printf("\nstatus: %v, gas used: %d\n", status, trace.GasUsed)
	if trace.Failed && root.RevertReason != "" {
		fmt.Printf("revert reason: %v\n", root.RevertReason)
	}
	if trace.Truncated {
		fmt.Println(colors.YellowBold("note: the trace was truncated; the tree is partial"))
	}
}
