package ethdebug

import (
	"fmt"
)

// Environment describes which of a contract's two instruction sets an instruction or lookup refers to.
type Environment string

const (
	// EnvironmentCreation refers to the constructor bytecode executed when a contract is deployed.
	EnvironmentCreation Environment = "creation"

	// EnvironmentRuntime refers to the deployed bytecode executed by calls into the contract.
	EnvironmentRuntime Environment = "runtime"
)

// SourceSpan describes a byte range within a declared source file, as referenced by an instruction's source context.
type SourceSpan struct {
	// SourceID describes the identifier of the source file the span refers to.
	SourceID int

	// Offset describes the byte offset at which the span starts.
	Offset int

	// Length describes the length of the span in bytes.
	Length int
}

// SourceLocation describes a source span resolved against its source file, carrying the 1-based line and column of
// the span start. Resolution happens eagerly at metadata load time.
type SourceLocation struct {
	// File describes the resolved source file.
	File *SourceFile

	// Span describes the raw byte range within File.
	Span SourceSpan

	// Line describes the 1-based line number of the span start.
	Line int

	// Column describes the 1-based column number of the span start.
	Column int
}

// String returns a compact path:line:column representation of the location.
func (l *SourceLocation) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File.Path, l.Line, l.Column)
}

// Instruction describes one static instruction of a contract's creation or runtime bytecode, as listed by the debug
// metadata. Instructions are immutable once parsed.
type Instruction struct {
	// PC describes the program counter (byte offset into the bytecode) of the instruction.
	PC uint64

	// Opcode describes the instruction mnemonic, e.g. PUSH1 or JUMPDEST.
	Opcode string

	// Operand describes the immediate bytes following a push instruction, or nil for all other instructions.
	Operand []byte

	// GasCost describes the static base gas cost of the instruction. Dynamic costs (memory expansion, cold account
	// access) are only known at execution time and come from the trace instead.
	GasCost uint64

	// Location describes the resolved source location of the instruction, or nil when the instruction has no
	// source context (compiler-generated dispatch code) or its source reference could not be resolved.
	Location *SourceLocation
}

// String returns a disassembly-style rendering of the instruction.
func (i *Instruction) String() string {
	if len(i.Operand) > 0 {
		return fmt.Sprintf("%05x: %s 0x%x", i.PC, i.Opcode, i.Operand)
	}
	return fmt.Sprintf("%05x: %s", i.PC, i.Opcode)
}

// staticGasCosts maps instruction mnemonics to their static base gas cost. Opcodes with purely dynamic pricing are
// listed at their minimum charge.
var staticGasCosts = map[string]uint64{
	"STOP": 0, "ADD": 3, "MUL": 5, "SUB": 3, "DIV": 5, "SDIV": 5, "MOD": 5, "SMOD": 5,
	"ADDMOD": 8, "MULMOD": 8, "EXP": 10, "SIGNEXTEND": 5,
	"LT": 3, "GT": 3, "SLT": 3, "SGT": 3, "EQ": 3, "ISZERO": 3,
	"AND": 3, "OR": 3, "XOR": 3, "NOT": 3, "BYTE": 3, "SHL": 3, "SHR": 3, "SAR": 3,
	"KECCAK256": 30, "ADDRESS": 2, "BALANCE": 100, "ORIGIN": 2, "CALLER": 2, "CALLVALUE": 2,
	"CALLDATALOAD": 3, "CALLDATASIZE": 2, "CALLDATACOPY": 3, "CODESIZE": 2, "CODECOPY": 3,
	"GASPRICE": 2, "EXTCODESIZE": 100, "EXTCODECOPY": 100, "RETURNDATASIZE": 2, "RETURNDATACOPY": 3,
	"EXTCODEHASH": 100, "BLOCKHASH": 20, "COINBASE": 2, "TIMESTAMP": 2, "NUMBER": 2,
	"PREVRANDAO": 2, "GASLIMIT": 2, "CHAINID": 2, "SELFBALANCE": 5, "BASEFEE": 2,
	"POP": 2, "MLOAD": 3, "MSTORE": 3, "MSTORE8": 3, "SLOAD": 100, "SSTORE": 100,
	"JUMP": 8, "JUMPI": 10, "PC": 2, "MSIZE": 2, "GAS": 2, "JUMPDEST": 1,
	"TLOAD": 100, "TSTORE": 100, "MCOPY": 3, "PUSH0": 2,
	"LOG0": 375, "LOG1": 750, "LOG2": 1125, "LOG3": 1500, "LOG4": 1875,
	"CREATE": 32000, "CALL": 100, "CALLCODE": 100, "RETURN": 0, "DELEGATECALL": 100,
	"CREATE2": 32000, "STATICCALL": 100, "REVERT": 0, "INVALID": 0, "SELFDESTRUCT": 5000,
}

// staticGasCost returns the static base gas cost for the given mnemonic. PUSH/DUP/SWAP families share one cost and
// are matched by prefix; unknown mnemonics cost zero.
func staticGasCost(opcode string) uint64 {
	if cost, ok := staticGasCosts[opcode]; ok {
		return cost
	}
	switch {
	case hasNumericSuffix(opcode, "PUSH"), hasNumericSuffix(opcode, "DUP"), hasNumericSuffix(opcode, "SWAP"):
		return 3
	}
	return 0
}

// hasNumericSuffix reports whether s consists of the given prefix followed only by decimal digits.
func hasNumericSuffix(s string, prefix string) bool {
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return false
	}
	for _, c := range s[len(prefix):] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
