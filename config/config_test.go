package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConfigReadWriteRoundTrip ensures a written project config reads back identically.
func TestConfigReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ariadne.json")

	original := GetDefaultProjectConfig()
	original.Node.RPCEndpoint = "http://node.example:8545"
	original.Node.DefaultSender = "0x00000000000000000000000000000000000000aa"
	original.Trace.MaxSteps = 250000
	original.Contracts.DebugDirectories = []string{"out/debug", "0x1000000000000000000000000000000000000001:Counter:out/counter"}
	original.Logging.Level = zerolog.DebugLevel
	require.NoError(t, original.WriteToFile(path))

	read, err := ReadProjectConfigFromFile(path)
	require.NoError(t, err)
	assert.EqualValues(t, original, read)
}

// TestConfigPartialFileKeepsDefaults ensures omitted sections fall back to the defaults.
func TestConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ariadne.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"node": {"rpcEndpoint": "http://node.example:8545"}}`), 0644))

	read, err := ReadProjectConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://node.example:8545", read.Node.RPCEndpoint)
	assert.True(t, read.Trace.EnableMemory)
	assert.Equal(t, zerolog.InfoLevel, read.Logging.Level)
}

// TestConfigValidation covers the settings Validate rejects.
func TestConfigValidation(t *testing.T) {
	projectConfig := GetDefaultProjectConfig()
	require.NoError(t, projectConfig.Validate())

	projectConfig.Node.RPCEndpoint = ""
	assert.Error(t, projectConfig.Validate())

	projectConfig = GetDefaultProjectConfig()
	projectConfig.Contracts.MappingFile = filepath.Join(t.TempDir(), "missing.json")
	assert.Error(t, projectConfig.Validate())
}
