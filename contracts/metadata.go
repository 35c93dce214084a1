package contracts

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor"
)

// ContractMetadata is an CBOR-encoded structure describing contract information which is embedded within smart
// contract bytecode by the Solidity compiler (unless explicitly directed not to).
// Reference: https://docs.soliditylang.org/en/latest/metadata.html
type ContractMetadata map[string]any

// metadataHashPrefixes defines patterns to use in search for CBOR-encoded contract metadata appended to the end of
// bytecode.
var metadataHashPrefixes = [][]byte{
	{0xa1, 0x65, 98, 122, 122, 114, 48, 0x58, 0x20},  // a1 65 "bzzr0" 0x58 0x20 (solc <= 0.5.8)
	{0xa2, 0x65, 98, 122, 122, 114, 48, 0x58, 0x20},  // a2 65 "bzzr0" 0x58 0x20 (solc >= 0.5.9)
	{0xa2, 0x65, 98, 122, 122, 114, 49, 0x58, 0x20},  // a2 65 "bzzr1" 0x58 0x20 (solc >= 0.5.11)
	{0xa2, 0x64, 0x69, 0x70, 0x66, 0x73, 0x58, 0x22}, // a2 64 "ipfs" 0x58 0x22 (solc >= 0.6.0)
}

// byteCodeHashMetadataKeys defines the keys in the CBOR-encoded ContractMetadata which contain bytecode hashes.
var byteCodeHashMetadataKeys = [...]string{
	"bzzr0",
	"bzzr1",
	"ipfs",
}

// ExtractContractMetadata extracts contract metadata from provided bytecode and returns it. If contract metadata
// could not be extracted, nil is returned.
func ExtractContractMetadata(bytecode []byte) *ContractMetadata {
	// Try matching each metadata hash prefix in the code. Metadata is appended to the end of the code.
	for _, metadataHashPrefix := range metadataHashPrefixes {
		metadataOffset := bytes.LastIndex(bytecode, metadataHashPrefix)

		// If we found a match, decode the embedded metadata and return it.
		if metadataOffset != -1 {
			var metadata ContractMetadata
			err := cbor.Unmarshal(bytecode[metadataOffset:], &metadata)
			if err != nil {
				continue
			}
			return &metadata
		}
	}
	return nil
}

// StripContractMetadata takes bytecode and attempts to detect contract metadata within it, splitting it where the
// metadata is found. If contract metadata could be located, this function returns the bytecode solely (no contract
// metadata, and no constructor arguments, which tend to follow). Otherwise the provided input is returned as-is.
func StripContractMetadata(bytecode []byte) []byte {
	for _, metadataHashPrefix := range metadataHashPrefixes {
		metadataOffset := bytes.LastIndex(bytecode, metadataHashPrefix)

		// solc places an INVALID opcode immediately before the metadata; strip it along with the suffix.
		if metadataOffset > 0 {
			return bytecode[:metadataOffset-1]
		}
	}
	return bytecode
}

// ExtractBytecodeHash extracts the bytecode hash from given contract metadata and returns the bytes representing
// the hash. If it could not be detected or extracted, nil is returned.
func (m ContractMetadata) ExtractBytecodeHash() []byte {
	// Try every known metadata key to see if we can resolve the bytecode hash.
	for _, possibleMetadataKey := range byteCodeHashMetadataKeys {
		if bytecodeHashData, keyExists := m[possibleMetadataKey]; keyExists {
			if bytecodeHash, ok := bytecodeHashData.([]byte); ok {
				return bytecodeHash
			}
		}
	}
	return nil
}

// ExtractCompilerVersion extracts the compiler release embedded in the metadata's "solc" key, returned in
// "major.minor.patch" form. Release builds embed the version as three raw bytes; pre-releases embed a string,
// which is returned as-is. An empty string is returned when no version is embedded.
func (m ContractMetadata) ExtractCompilerVersion() string {
	versionData, keyExists := m["solc"]
	if !keyExists {
		return ""
	}
	switch version := versionData.(type) {
	case []byte:
		if len(version) == 3 {
			return fmt.Sprintf("%d.%d.%d", version[0], version[1], version[2])
		}
	case string:
		return version
	}
	return ""
}
