package config

import (
	"github.com/rs/zerolog"
)

// DefaultRPCEndpoint describes the node endpoint used when neither the config file nor the CLI names one.
const DefaultRPCEndpoint = "http://localhost:8545"

// GetDefaultProjectConfig obtains a default project configuration: a local node, full memory capture, and
// info-level logging. Values the config file or CLI set later replace these.
func GetDefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Node: NodeConfig{
			RPCEndpoint: DefaultRPCEndpoint,
		},
		Trace: TraceConfig{
			MaxSteps:         0,
			EnableMemory:     true,
			EnableStorage:    false,
			EnableReturnData: true,
		},
		Contracts: ContractsConfig{},
		Logging: LoggingConfig{
			Level: zerolog.InfoLevel,
		},
	}
}
