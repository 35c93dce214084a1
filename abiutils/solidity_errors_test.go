package abiutils

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeErrorString is a test helper building the Error(string) revert payload the
// compiler emits for require messages.
func encodeErrorString(t *testing.T, message string) []byte {
	encoded, err := errorStringMethod.Inputs.Pack(message)
	require.NoError(t, err)
	return append(append([]byte{}, errorStringMethod.ID...), encoded...)
}

// TestGetSolidityRevertErrorString verifies require messages decode from their revert
// payload.
func TestGetSolidityRevertErrorString(t *testing.T) {
	payload := encodeErrorString(t, "Order value must be positive")

	// The Error(string) selector is a fixed, well-known constant.
	assert.EqualValues(t, []byte{0x08, 0xc3, 0x79, 0xa0}, payload[:4])

	message := GetSolidityRevertErrorString(payload)
	require.NotNil(t, message)
	assert.EqualValues(t, "Order value must be positive", *message)

	// Unrelated payloads must not decode.
	assert.Nil(t, GetSolidityRevertErrorString([]byte{0x01, 0x02, 0x03, 0x04, 0x05}))
	assert.Nil(t, GetSolidityRevertErrorString(nil))
}

// TestGetSolidityPanicCode verifies panic codes decode from their revert payload and map
// to readable reasons.
func TestGetSolidityPanicCode(t *testing.T) {
	encoded, err := panicCodeMethod.Inputs.Pack(big.NewInt(PanicCodeAssertFailed))
	require.NoError(t, err)
	payload := append(append([]byte{}, panicCodeMethod.ID...), encoded...)

	assert.EqualValues(t, []byte{0x4e, 0x48, 0x7b, 0x71}, payload[:4])

	code := GetSolidityPanicCode(payload)
	require.NotNil(t, code)
	assert.EqualValues(t, PanicCodeAssertFailed, code.Uint64())
	assert.EqualValues(t, "assertion failed", GetPanicReason(code.Uint64()))

	// A truncated panic payload must not decode.
	assert.Nil(t, GetSolidityPanicCode(payload[:20]))
}

// TestGetSolidityCustomRevertError verifies custom errors resolve against a contract ABI
// and unpack their arguments.
func TestGetSolidityCustomRevertError(t *testing.T) {
	contractAbi, err := abi.JSON(strings.NewReader(`[
		{"type": "error", "name": "InsufficientBalance", "inputs": [
			{"name": "available", "type": "uint256"},
			{"name": "required", "type": "uint256"}
		]}
	]`))
	require.NoError(t, err)

	customError := contractAbi.Errors["InsufficientBalance"]
	encoded, err := customError.Inputs.Pack(big.NewInt(5), big.NewInt(10))
	require.NoError(t, err)
	payload := append(append([]byte{}, customError.ID.Bytes()[:4]...), encoded...)

	matched, values := GetSolidityCustomRevertError(&contractAbi, payload)
	require.NotNil(t, matched)
	assert.EqualValues(t, "InsufficientBalance", matched.Name)
	require.EqualValues(t, 2, len(values))
	assert.EqualValues(t, 0, big.NewInt(5).Cmp(values[0].(*big.Int)))
	assert.EqualValues(t, 0, big.NewInt(10).Cmp(values[1].(*big.Int)))

	// No ABI means no resolution.
	matched, _ = GetSolidityCustomRevertError(nil, payload)
	assert.Nil(t, matched)
}

// TestFormatRevertReason verifies the layered formatting of revert payloads.
func TestFormatRevertReason(t *testing.T) {
	// A require message renders as the message itself.
	assert.EqualValues(t, "Order value must be positive", FormatRevertReason(nil, encodeErrorString(t, "Order value must be positive")))

	// A panic renders its reason.
	encoded, err := panicCodeMethod.Inputs.Pack(big.NewInt(PanicCodeDivideByZero))
	require.NoError(t, err)
	panicPayload := append(append([]byte{}, panicCodeMethod.ID...), encoded...)
	assert.EqualValues(t, "panic: division by zero", FormatRevertReason(nil, panicPayload))

	// Unrecognized payloads render as raw hex, and empty payloads as nothing.
	assert.EqualValues(t, "0x01020304", FormatRevertReason(nil, []byte{0x01, 0x02, 0x03, 0x04}))
	assert.EqualValues(t, "", FormatRevertReason(nil, nil))
}
