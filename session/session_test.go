package session

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariadne-eth/ariadne/contracts"
	"github.com/ariadne-eth/ariadne/tracing"
)

// The session tests drive a real call tree built from a synthetic trace over an on-disk metadata
// fixture, so stepping granularity, breakpoints and inspection run against the same plumbing the CLI
// uses.

// sessionSource puts the call site and the return statement on distinct lines so line-granular
// stepping has lines to move between.
const sessionSource = `contract Counter {
    function increment(uint256 amount) public returns (uint256) {
        emitLog();
        return amount + 1;
    }
}
`

const sessionABI = `[{"type":"function","name":"increment","inputs":[{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"nonpayable"}]`

var (
	counterAddress = common.HexToAddress("0x1000000000000000000000000000000000000001")
	loggerAddress  = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

// word wraps a small value into a stack word.
func word(v uint64) uint256.Int {
	return *uint256.NewInt(v)
}

func addressWord(address common.Address) uint256.Int {
	var w uint256.Int
	w.SetBytes(address.Bytes())
	return w
}

// labelMemory lays out the string "abc" at memory offset 0 the way the compiler stores a memory
// string: a length word followed by the padded contents.
func labelMemory() []byte {
	memory := make([]byte, 64)
	memory[31] = 3
	copy(memory[32:], "abc")
	return memory
}

// writeSessionFixture writes the Counter debug directory: a runtime listing whose instruction spans
// land on the declaration, call and return lines, plus variable hints covering all three data
// locations.
func writeSessionFixture(t *testing.T, registry *contracts.Registry) *contracts.Contract {
	dir := t.TempDir()
	declOffset := strings.Index(sessionSource, "function increment")
	callOffset := strings.Index(sessionSource, "emitLog")
	returnOffset := strings.Index(sessionSource, "return amount")
	require.Greater(t, declOffset, 0)
	require.Greater(t, callOffset, 0)
	require.Greater(t, returnOffset, 0)

	context := func(offset int, length int) string {
		return fmt.Sprintf(`"context": {"code": {"source": {"id": 0}, "range": {"offset": %d, "length": %d}}}`, offset, length)
	}
	runtime := fmt.Sprintf(`{
		"instructions": [
			{"offset": 0, "mnemonic": "PUSH1", "arguments": ["0x80"]},
			{"offset": 10, "mnemonic": "JUMPDEST", %v},
			{"offset": 12, "mnemonic": "CALL", %v},
			{"offset": 13, "mnemonic": "PUSH1", "arguments": ["0x01"], %v},
			{"offset": 40, "mnemonic": "RETURN", %v}
		],
		"variables": [
			{"name": "amount", "type": "uint256", "location": "stack", "offset": 0, "range": {"from": 10, "to": 40}},
			{"name": "label", "type": "string", "location": "memory", "offset": 0, "range": {"from": 10, "to": 40}},
			{"name": "total", "type": "uint256", "location": "storage", "offset": 0, "range": {"from": 10, "to": 40}}
		]
	}`,
		context(declOffset, len("function increment(")),
		context(callOffset, len("emitLog()")),
		context(returnOffset, len("return amount + 1")),
		context(returnOffset, len("return amount + 1")),
	)

	files := map[string]string{
		"Counter.sol":                   sessionSource,
		"ethdebug.json":                 `{"sources": [{"id": 0, "path": "Counter.sol"}]}`,
		"Counter_ethdebug.json":         `[{"offset": 0, "mnemonic": "PUSH1", "arguments": ["0x80"]}]`,
		"Counter_ethdebug-runtime.json": runtime,
		"Counter.abi":                   sessionABI,
	}
	for name, contents := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644))
	}

	contract, err := registry.AddContract(counterAddress, dir, "Counter")
	require.NoError(t, err)
	return contract
}

// newSessionFixture builds the canonical session under test: increment(4) reaching its declaration,
// making one external call, then returning on a later source line.
func newSessionFixture(t *testing.T) *Session {
	registry := contracts.NewRegistry()
	contract := writeSessionFixture(t, registry)

	method, ok := contract.Info.ABI.Methods["increment"]
	require.True(t, ok)
	encoded, err := method.Inputs.Pack(big.NewInt(4))
	require.NoError(t, err)
	input := append(append([]byte{}, method.ID...), encoded...)

	steps := []*tracing.ExecutionStep{
		{Index: 0, PC: 0, Opcode: "PUSH1", Depth: 1, Gas: 50000},
		{Index: 1, PC: 10, Opcode: "JUMPDEST", Depth: 1, Gas: 49900, Stack: []uint256.Int{word(4)}, Memory: labelMemory()},
		{Index: 2, PC: 12, Opcode: "CALL", Depth: 1, Gas: 49800, Stack: []uint256.Int{word(0), word(0), word(0), word(0), word(0), addressWord(loggerAddress), word(5000)}},
		{Index: 3, PC: 0, Opcode: "PUSH1", Depth: 2, Gas: 49000},
		{Index: 4, PC: 5, Opcode: "RETURN", Depth: 2, Gas: 48800, Stack: []uint256.Int{word(0), word(0)}},
		{Index: 5, PC: 13, Opcode: "PUSH1", Depth: 1, Gas: 48500, Stack: []uint256.Int{word(4)}, Memory: labelMemory()},
		{Index: 6, PC: 40, Opcode: "RETURN", Depth: 1, Gas: 48000, Stack: []uint256.Int{word(0), word(0)}},
	}

	to := counterAddress
	trace := &tracing.TransactionTrace{
		From:    common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		To:      &to,
		Input:   input,
		GasUsed: 2000,
		Steps:   steps,
	}

	root, err := tracing.Build(trace, registry)
	require.NoError(t, err)
	s, err := New(trace, root)
	require.NoError(t, err)
	return s
}

// TestSessionStepInto checks line-granular stepping: each StepInto lands on the next distinct source
// line, entering frames as they open.
func TestSessionStepInto(t *testing.T) {
	s := newSessionFixture(t)
	assert.Equal(t, StatusRunning, s.Status())
	assert.Equal(t, 0, s.Cursor())

	assert.Equal(t, StatusRunning, s.StepInto())
	assert.Equal(t, 1, s.Cursor())
	require.NotNil(t, s.CurrentLocation())
	assert.Equal(t, 2, s.CurrentLocation().Line)
	assert.Equal(t, "increment", s.CurrentFrame().Function)

	assert.Equal(t, StatusRunning, s.StepInto())
	assert.Equal(t, 2, s.Cursor())
	assert.Equal(t, 3, s.CurrentLocation().Line)
}

// TestSessionStepOver checks that StepOver skips the interior of a call made on the current line and
// stops on the next line of the same frame.
func TestSessionStepOver(t *testing.T) {
	s := newSessionFixture(t)
	s.StepInto()
	s.StepInto()
	require.Equal(t, 2, s.Cursor())

	assert.Equal(t, StatusRunning, s.StepOver())
	assert.Equal(t, 5, s.Cursor())
	assert.Equal(t, 4, s.CurrentLocation().Line)
	assert.Equal(t, "increment", s.CurrentFrame().Function)
}

// TestSessionStepInstructionAndFinish checks raw stepping and the terminal state.
func TestSessionStepInstructionAndFinish(t *testing.T) {
	s := newSessionFixture(t)
	for i := 1; i <= 5; i++ {
		s.StepInstruction()
		assert.Equal(t, i, s.Cursor())
	}
	assert.Equal(t, StatusFinished, s.StepInstruction())
	assert.Equal(t, 6, s.Cursor())
	assert.Equal(t, "success", s.FinalStatus())

	// The cursor is monotonic; a finished session does not move further.
	assert.Equal(t, StatusFinished, s.StepInstruction())
	assert.Equal(t, 6, s.Cursor())
}

// TestSessionBreakpoints covers pc and file:line breakpoints, clearing, and the hit report.
func TestSessionBreakpoints(t *testing.T) {
	s := newSessionFixture(t)
	pcBreak := s.SetBreakpointAtPC(12)
	lineBreak := s.SetBreakpointAtLine("Counter.sol", 4)
	require.Len(t, s.Breakpoints(), 2)

	assert.Equal(t, StatusAtBreakpoint, s.Continue())
	assert.Equal(t, 2, s.Cursor())
	require.NotNil(t, s.HitBreakpoint())
	assert.Equal(t, pcBreak.ID, s.HitBreakpoint().ID)

	assert.Equal(t, StatusAtBreakpoint, s.Continue())
	assert.Equal(t, 5, s.Cursor())
	assert.Equal(t, lineBreak.ID, s.HitBreakpoint().ID)

	assert.True(t, s.ClearBreakpoint(lineBreak.ID))
	assert.False(t, s.ClearBreakpoint(99))
	assert.Equal(t, StatusFinished, s.Continue())
	assert.Nil(t, s.HitBreakpoint())
}

// TestSessionBacktrace checks the frame chain at a step inside the external call.
func TestSessionBacktrace(t *testing.T) {
	s := newSessionFixture(t)
	s.SetBreakpointAtPC(12)
	s.Continue()
	s.StepInstruction()
	require.Equal(t, 3, s.Cursor())

	backtrace := s.Backtrace()
	require.Len(t, backtrace, 3)
	assert.Equal(t, tracing.FrameCall, backtrace[0].Kind)
	assert.Equal(t, loggerAddress, backtrace[0].ContractAddress)
	assert.Equal(t, "increment", backtrace[1].Function)
	assert.Equal(t, tracing.FrameEntry, backtrace[2].Kind)
}

// TestSessionInspect covers stack and memory reads plus the unavailability cases.
func TestSessionInspect(t *testing.T) {
	s := newSessionFixture(t)
	s.StepInto()
	require.Equal(t, 1, s.Cursor())

	amount, err := s.Inspect("amount")
	require.NoError(t, err)
	assert.Equal(t, "uint256", amount.TypeName)
	assert.Equal(t, big.NewInt(4), amount.Value)

	label, err := s.Inspect("label")
	require.NoError(t, err)
	assert.Equal(t, "abc", label.Value)

	var unavailable *VariableUnavailableError
	_, err = s.Inspect("total")
	require.ErrorAs(t, err, &unavailable)
	assert.Contains(t, unavailable.Reason, "storage")

	_, err = s.Inspect("nonexistent")
	require.ErrorAs(t, err, &unavailable)

	variables, err := s.Variables()
	require.NoError(t, err)
	assert.Len(t, variables, 3)
}

// TestSessionInspectOutsideHintRange ensures hints stop applying once the pc leaves their range.
func TestSessionInspectOutsideHintRange(t *testing.T) {
	s := newSessionFixture(t)
	var unavailable *VariableUnavailableError
	_, err := s.Inspect("amount")
	require.ErrorAs(t, err, &unavailable)
}

// TestSessionSourceContext checks the listing around the cursor.
func TestSessionSourceContext(t *testing.T) {
	s := newSessionFixture(t)
	s.StepInto()

	file, lines, err := s.SourceContext(1)
	require.NoError(t, err)
	assert.Equal(t, "Counter.sol", file)
	require.Len(t, lines, 3)
	assert.Equal(t, 1, lines[0].Number)
	assert.True(t, lines[1].Current)
	assert.Contains(t, lines[1].Text, "function increment")
}
