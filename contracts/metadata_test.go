package contracts

import (
	"bytes"
	"testing"

	"github.com/fxamacker/cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMetadataSuffix builds the CBOR metadata trailer solc appends to bytecode: the
// encoded map followed by its two-byte length.
func buildMetadataSuffix(t *testing.T, ipfsHash []byte, solcVersion []byte) []byte {
	encoded, err := cbor.Marshal(map[string][]byte{
		"ipfs": ipfsHash,
		"solc": solcVersion,
	}, cbor.EncOptions{Canonical: true})
	require.NoError(t, err)
	return append(encoded, byte(len(encoded)>>8), byte(len(encoded)))
}

// TestExtractContractMetadata verifies the CBOR metadata suffix is located and decoded
// from the end of bytecode.
func TestExtractContractMetadata(t *testing.T) {
	ipfsHash := bytes.Repeat([]byte{0xab}, 34)
	code := []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0x5b, 0xfe}
	bytecode := append(append([]byte{}, code...), buildMetadataSuffix(t, ipfsHash, []byte{0, 8, 29})...)

	metadata := ExtractContractMetadata(bytecode)
	require.NotNil(t, metadata)
	assert.EqualValues(t, ipfsHash, metadata.ExtractBytecodeHash())
	assert.EqualValues(t, "0.8.29", metadata.ExtractCompilerVersion())

	// Bytecode without a metadata suffix yields nothing.
	assert.Nil(t, ExtractContractMetadata(code))
}

// TestStripContractMetadata verifies the metadata suffix and its preceding INVALID marker
// are removed, and metadata-free bytecode passes through unchanged.
func TestStripContractMetadata(t *testing.T) {
	code := []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0x5b}
	withMarker := append(append([]byte{}, code...), 0xfe)
	bytecode := append(append([]byte{}, withMarker...), buildMetadataSuffix(t, bytes.Repeat([]byte{0x11}, 34), []byte{0, 8, 29})...)

	assert.EqualValues(t, code, StripContractMetadata(bytecode))
	assert.EqualValues(t, code, StripContractMetadata(code))
}

// TestMatchesDeployedCode verifies deployed code is matched against the reassembled
// runtime listing with the metadata suffix ignored.
func TestMatchesDeployedCode(t *testing.T) {
	dir := writeCounterFixture(t)
	registry := NewRegistry()
	contract, err := registry.AddContract(fixtureAddress, dir, "")
	require.NoError(t, err)

	// The fixture's runtime listing reassembles to PUSH1 0x80 PUSH1 0x40 MSTORE JUMPDEST.
	listed := []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0x5b}
	deployed := append(append([]byte{}, listed...), 0xfe)
	deployed = append(deployed, buildMetadataSuffix(t, bytes.Repeat([]byte{0x22}, 34), []byte{0, 8, 29})...)

	match, checked := contract.MatchesDeployedCode(deployed)
	require.True(t, checked)
	assert.True(t, match)

	// Different code must not match.
	other := append(append([]byte{}, []byte{0x60, 0x00, 0x60, 0x00, 0x01, 0x00}...), 0xfe)
	other = append(other, buildMetadataSuffix(t, bytes.Repeat([]byte{0x33}, 34), []byte{0, 8, 29})...)
	match, checked = contract.MatchesDeployedCode(other)
	require.True(t, checked)
	assert.False(t, match)

	// Empty deployed code cannot be checked.
	_, checked = contract.MatchesDeployedCode(nil)
	assert.False(t, checked)
}
