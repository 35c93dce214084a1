package tracing

// OpcodeCategory buckets opcodes by how the call stack builder reacts to them. The analysis
// switches on the category; opcode identity only matters within a category where the operand
// layouts differ.
type OpcodeCategory int

const (
	// CategoryOther describes every opcode the builder does not react to.
	CategoryOther OpcodeCategory = iota

	// CategoryCall describes message-call opcodes which may enter another account's code.
	CategoryCall

	// CategoryCreate describes contract-creation opcodes.
	CategoryCreate

	// CategoryReturn describes opcodes which terminate the current call scope.
	CategoryReturn

	// CategoryJumpDest describes the JUMPDEST marker, the candidate site for internal
	// function entry.
	CategoryJumpDest
)

// CategorizeOpcode returns the builder-relevant category of an opcode mnemonic.
func CategorizeOpcode(opcode string) OpcodeCategory {
	switch opcode {
	case "CALL", "CALLCODE", "DELEGATECALL", "STATICCALL":
		return CategoryCall
	case "CREATE", "CREATE2":
		return CategoryCreate
	case "RETURN", "STOP", "REVERT", "SELFDESTRUCT", "INVALID":
		return CategoryReturn
	case "JUMPDEST":
		return CategoryJumpDest
	}
	return CategoryOther
}

// callOperands describes where a message-call opcode keeps its operands, counted from the
// top of the stack.
type callOperands struct {
	// arity describes the number of stack words the opcode consumes.
	arity int

	// target describes the stack position of the callee address.
	target int

	// value describes the stack position of the transferred value, or -1 when the opcode
	// carries none.
	value int

	// argsOffset and argsSize describe the stack positions of the input memory range.
	argsOffset int
	argsSize   int

	// retOffset and retSize describe the stack positions of the return memory range.
	retOffset int
	retSize   int
}

// callOperandLayout returns the operand layout for a message-call opcode, or false for
// anything else. CALL and CALLCODE carry a value word; DELEGATECALL inherits the caller's
// and STATICCALL forbids one, shifting their memory operands up a slot.
func callOperandLayout(opcode string) (callOperands, bool) {
	switch opcode {
	case "CALL", "CALLCODE":
		return callOperands{arity: 7, target: 1, value: 2, argsOffset: 3, argsSize: 4, retOffset: 5, retSize: 6}, true
	case "DELEGATECALL", "STATICCALL":
		return callOperands{arity: 6, target: 1, value: -1, argsOffset: 2, argsSize: 3, retOffset: 4, retSize: 5}, true
	}
	return callOperands{}, false
}

// createOperandLayout returns the operand layout for a creation opcode: value on top, then
// the init-code memory range. CREATE2 additionally consumes a salt below them.
func createOperandLayout(opcode string) (callOperands, bool) {
	switch opcode {
	case "CREATE":
		return callOperands{arity: 3, target: -1, value: 0, argsOffset: 1, argsSize: 2, retOffset: -1, retSize: -1}, true
	case "CREATE2":
		return callOperands{arity: 4, target: -1, value: 0, argsOffset: 1, argsSize: 2, retOffset: -1, retSize: -1}, true
	}
	return callOperands{}, false
}
