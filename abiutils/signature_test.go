package abiutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseSignature runs ParseSignature over a range of valid signatures and verifies the
// parsed method reproduces the canonical signature text.
func TestParseSignature(t *testing.T) {
	tests := []struct {
		signature string
		canonical string
		numInputs int
	}{
		{"increment(uint256)", "increment(uint256)", 1},
		{"transfer(address,uint256)", "transfer(address,uint256)", 2},
		{"noArgs()", "noArgs()", 0},
		{"setFlags(bool,bytes32,string)", "setFlags(bool,bytes32,string)", 3},
		{"sum(uint256[])", "sum(uint256[])", 1},
		{"fixed(uint8[3])", "fixed(uint8[3])", 1},
		{"submitPerson((string,uint256))", "submitPerson((string,uint256))", 1},
		{"submitCompany((string,(string,uint256)))", "submitCompany((string,(string,uint256)))", 1},
		{"aliased(uint,int,uint[])", "aliased(uint256,int256,uint256[])", 3},
		{"batch((address,uint256)[],bool)", "batch((address,uint256)[],bool)", 2},
		{"spaced( address , uint256 )", "spaced(address,uint256)", 2},
	}
	for _, test := range tests {
		method, err := ParseSignature(test.signature)
		require.NoError(t, err, "signature: %v", test.signature)
		assert.EqualValues(t, test.canonical, method.Sig)
		assert.EqualValues(t, test.numInputs, len(method.Inputs))

		// The method identifier must agree with an independently computed selector.
		assert.EqualValues(t, ComputeSelector(method.Sig), method.ID)
	}
}

// TestParseSignatureRejectsMalformed verifies malformed signature text is rejected with a
// MalformedLiteralError rather than producing a bogus method.
func TestParseSignatureRejectsMalformed(t *testing.T) {
	for _, signature := range []string{
		"",
		"justAName",
		"missingClose(uint256",
		"(uint256)",
		"unbalanced((uint256)",
	} {
		_, err := ParseSignature(signature)
		assert.Error(t, err, "signature: %v", signature)
	}
}

// TestComputeSelector verifies selector computation against the well-known identifiers of
// the compiler's revert payloads.
func TestComputeSelector(t *testing.T) {
	assert.EqualValues(t, []byte{0x08, 0xc3, 0x79, 0xa0}, ComputeSelector("Error(string)"))
	assert.EqualValues(t, []byte{0x4e, 0x48, 0x7b, 0x71}, ComputeSelector("Panic(uint256)"))
}
