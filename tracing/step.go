package tracing

import (
	"github.com/holiman/uint256"
)

// ExecutionStep describes one executed instruction of a transaction trace, as reported by the
// node's struct-log tracer. Steps are immutable once parsed; the call stack builder and the
// interactive session only ever read them.
type ExecutionStep struct {
	// Index describes the position of the step within the trace.
	Index int

	// PC describes the program counter of the executed instruction.
	PC uint64

	// Opcode describes the mnemonic of the executed instruction (e.g. CALL, JUMPDEST).
	Opcode string

	// Depth describes the node-reported call nesting of the step. The top-level transaction
	// executes at depth 1; only relative changes matter to the analysis.
	Depth int

	// Gas describes the gas remaining before the instruction executes.
	Gas uint64

	// GasCost describes the gas charged for the instruction.
	GasCost uint64

	// Stack describes the operand stack before the instruction executes. The top of the
	// stack is the last element.
	Stack []uint256.Int

	// Memory describes the memory contents before the instruction executes. It may be nil
	// when memory capture was disabled on the node.
	Memory []byte

	// ReturnData describes the return data buffer of the most recent completed call, when
	// the node reports it.
	ReturnData []byte

	// Error describes a per-step failure reported by the node (e.g. out of gas). Empty on
	// ordinary steps.
	Error string
}

// StackBack returns the stack word n positions from the top (0 = topmost), or nil when the
// stack is shorter than that.
func (s *ExecutionStep) StackBack(n int) *uint256.Int {
	if n < 0 || n >= len(s.Stack) {
		return nil
	}
	return &s.Stack[len(s.Stack)-1-n]
}

// MemorySlice reads size bytes of memory starting at offset. Reads past the captured memory
// are zero-filled, matching EVM semantics where memory expands as zeroes.
func (s *ExecutionStep) MemorySlice(offset uint64, size uint64) []byte {
	if size == 0 {
		return nil
	}
	// Cap unreasonable sizes so a garbage stack word cannot allocate gigabytes.
	if size > maxMemoryRead {
		size = maxMemoryRead
	}
	out := make([]byte, size)
	if offset < uint64(len(s.Memory)) {
		copy(out, s.Memory[offset:])
	}
	return out
}

// maxMemoryRead bounds a single memory read during analysis. Real call inputs and revert
// payloads are far smaller; anything beyond this is a mis-decoded stack word.
const maxMemoryRead = 1 << 24
