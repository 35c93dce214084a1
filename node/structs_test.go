package node

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// traceFixture is a trimmed debug_traceTransaction result: a PUSH, a CALL carrying stack and memory, and
// the callee's first step one level deeper.
const traceFixture = `{
	"gas": 32412,
	"failed": false,
	"returnValue": "0000000000000000000000000000000000000000000000000000000000000004",
	"structLogs": [
		{"pc": 0, "op": "PUSH1", "gas": 50000, "gasCost": 3, "depth": 1},
		{"pc": 2, "op": "CALL", "gas": 49997, "gasCost": 100, "depth": 1,
		 "stack": ["0x24", "0x0", "0x0", "0x24", "0x0", "0x1000000000000000000000000000000000000001", "0xc350"],
		 "memory": ["00000000000000000000000000000000aabbccdd0000000000000000000000ff",
		            "0000000000000000000000000000000000000000000000000000000000000000"]},
		{"pc": 0, "op": "PUSH1", "gas": 48000, "gasCost": 3, "depth": 2,
		 "returnData": "0xdeadbeef"}
	]
}`

func parseFixture(t *testing.T) txTraceResult {
	var result txTraceResult
	require.NoError(t, json.Unmarshal([]byte(traceFixture), &result))
	return result
}

// TestParseSteps covers the normalization of the tracer's wire format: hex stacks into words, memory
// chunks into one byte sequence, and return data into bytes.
func TestParseSteps(t *testing.T) {
	result := parseFixture(t)
	steps, truncated, err := parseSteps(result.StructLogs, 0)
	require.NoError(t, err)
	assert.False(t, truncated)
	require.Len(t, steps, 3)

	call := steps[1]
	assert.Equal(t, 1, call.Index)
	assert.Equal(t, uint64(2), call.PC)
	assert.Equal(t, "CALL", call.Opcode)
	assert.Equal(t, 1, call.Depth)
	require.Len(t, call.Stack, 7)
	assert.Equal(t, uint64(0xc350), call.StackBack(0).Uint64())
	assert.Equal(t, uint64(0x24), call.StackBack(3).Uint64())
	require.Len(t, call.Memory, 64)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd}, call.Memory[16:20])

	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, steps[2].ReturnData)
}

// TestParseStepsMaxStepsCap ensures the configured step cap cuts the stream and reports truncation.
func TestParseStepsMaxStepsCap(t *testing.T) {
	result := parseFixture(t)
	steps, truncated, err := parseSteps(result.StructLogs, 2)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Len(t, steps, 2)
}

// TestParseStepsRejectsMalformedStack ensures a garbage stack word fails loudly instead of decoding into
// a wrong address later.
func TestParseStepsRejectsMalformedStack(t *testing.T) {
	logs := []structLogEntry{{PC: 0, Op: "CALL", Depth: 1, Stack: []string{"0xnope"}}}
	_, _, err := parseSteps(logs, 0)
	assert.Error(t, err)
}

// TestParseStepsUnprefixedStackWords covers nodes that omit the 0x prefix on stack words.
func TestParseStepsUnprefixedStackWords(t *testing.T) {
	logs := []structLogEntry{{PC: 0, Op: "PUSH1", Depth: 1, Stack: []string{"c350"}}}
	steps, _, err := parseSteps(logs, 0)
	require.NoError(t, err)
	require.Len(t, steps[0].Stack, 1)
	assert.Equal(t, uint64(0xc350), steps[0].StackBack(0).Uint64())
}
