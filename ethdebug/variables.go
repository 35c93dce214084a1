package ethdebug

// VariableLocationKind describes which data location a variable hint points into.
type VariableLocationKind string

const (
	// VariableOnStack indicates the variable lives at an absolute stack index, counted from the bottom of the
	// operand stack.
	VariableOnStack VariableLocationKind = "stack"

	// VariableInMemory indicates the variable lives at a byte offset into EVM memory.
	VariableInMemory VariableLocationKind = "memory"

	// VariableInStorage indicates the variable lives in the given storage slot.
	VariableInStorage VariableLocationKind = "storage"
)

// VariableHint describes compiler-emitted location information for one named variable, valid across a range of
// program counters. Hints are optional metadata: their absence degrades variable inspection, nothing else.
type VariableHint struct {
	// Name describes the source-level variable name.
	Name string

	// TypeName describes the canonical ABI type of the variable (e.g. uint256), used to decode the raw value.
	TypeName string

	// Location describes which data location Offset indexes into.
	Location VariableLocationKind

	// Offset describes the stack index, memory byte offset, or storage slot the variable occupies.
	Offset uint64

	// FirstPC and LastPC describe the inclusive program counter range across which the hint is valid.
	FirstPC uint64
	LastPC  uint64
}

// ValidAt reports whether the hint applies at the given program counter.
func (v *VariableHint) ValidAt(pc uint64) bool {
	return pc >= v.FirstPC && pc <= v.LastPC
}
