package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ariadne-eth/ariadne/utils"
)

// ProjectConfig describes the configuration of one debugging project: where to reach the node, how to capture
// traces, and where the debug metadata of the involved contracts lives. It is read once at startup, optionally
// overridden by CLI flags, and threaded explicitly into the components that need it.
type ProjectConfig struct {
	// Node describes the configuration used to reach the blockchain node.
	Node NodeConfig `json:"node"`

	// Trace describes the configuration used when requesting instruction traces.
	Trace TraceConfig `json:"trace"`

	// Contracts describes where debug metadata is found and how addresses map onto it.
	Contracts ContractsConfig `json:"contracts"`

	// Logging describes the configuration used for logging.
	Logging LoggingConfig `json:"logging"`
}

// NodeConfig describes how to reach the node supplying transactions and traces.
type NodeConfig struct {
	// RPCEndpoint describes the URL of the node's JSON-RPC interface. The node must expose the debug tracing
	// namespace.
	RPCEndpoint string `json:"rpcEndpoint"`

	// DefaultSender describes the account address used as the caller for simulated calls when none is given
	// on the command line.
	DefaultSender string `json:"defaultSender"`
}

// TraceConfig describes the options forwarded to the node's struct-log tracer.
type TraceConfig struct {
	// MaxSteps describes a cap on the number of trace steps to analyze. Traces longer than this are cut off
	// and analyzed as truncated. A zero value indicates no cap.
	MaxSteps uint64 `json:"maxSteps"`

	// EnableMemory describes whether the node should capture memory contents per step. Disabling it shrinks
	// traces considerably but forfeits call input decoding and revert reasons.
	EnableMemory bool `json:"enableMemory"`

	// EnableStorage describes whether the node should capture storage writes per step.
	EnableStorage bool `json:"enableStorage"`

	// EnableReturnData describes whether the node should report the return data buffer per step.
	EnableReturnData bool `json:"enableReturnData"`
}

// ContractsConfig describes the debug metadata sources the contract registry is built from.
type ContractsConfig struct {
	// DebugDirectories describes directives of the form "dir", "address:dir" or "address:name:dir", each
	// registering the debug metadata found in a directory. Bare directories are associated through their
	// deployment records.
	DebugDirectories []string `json:"debugDirectories"`

	// MappingFile describes the path of a contract mapping file enumerating address/name/debug-directory
	// records. Entries registered later override earlier ones for the same address.
	MappingFile string `json:"mappingFile"`
}

// LoggingConfig describes the configuration options used for logging.
type LoggingConfig struct {
	// Level describes whether logging at the level of debug, info, warn, etc. is enabled.
	Level zerolog.Level `json:"level"`

	// LogDirectory describes the directory where structured log files should be written, if any. An empty
	// value disables file logging.
	LogDirectory string `json:"logDirectory"`

	// NoColor indicates whether log and trace output should be stripped of ANSI coloring.
	NoColor bool `json:"noColor"`
}

// ReadProjectConfigFromFile reads a JSON-serialized ProjectConfig from the given path, applying defaults for
// any omitted sections, and validates it before returning.
func ReadProjectConfigFromFile(path string) (*ProjectConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	projectConfig := GetDefaultProjectConfig()
	if err = json.Unmarshal(b, projectConfig); err != nil {
		return nil, errors.WithMessagef(err, "could not parse the config file at %v", path)
	}
	if err = projectConfig.Validate(); err != nil {
		return nil, err
	}
	return projectConfig, nil
}

// WriteToFile writes the ProjectConfig to the given path as indented JSON.
func (p *ProjectConfig) WriteToFile(path string) error {
	b, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, b, 0644))
}

// Validate examines the ProjectConfig and returns an error describing the first invalid setting found, if any.
func (p *ProjectConfig) Validate() error {
	if p.Node.RPCEndpoint == "" {
		return errors.New("project configuration must specify a node RPC endpoint")
	}
	if p.Contracts.MappingFile != "" && !utils.FileExists(p.Contracts.MappingFile) {
		return errors.Errorf("the contract mapping file at %v does not exist", p.Contracts.MappingFile)
	}
	if _, err := zerolog.ParseLevel(p.Logging.Level.String()); err != nil {
		return errors.WithMessage(err, "project configuration specifies an invalid log level")
	}
	return nil
}
