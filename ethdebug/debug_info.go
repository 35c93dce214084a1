package ethdebug

import (
	"github.com/Masterminds/semver"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/vm"
)

// ContractDebugInfo describes the fully loaded debug metadata for one contract: its instruction listings for both
// environments, the source files they reference, and the contract ABI when one was found alongside the metadata.
// The structure is built once by Load and is read-only afterward, so lookups are safe from concurrent readers.
type ContractDebugInfo struct {
	// Name describes the contract name the metadata belongs to.
	Name string

	// DebugDir describes the directory the metadata was loaded from.
	DebugDir string

	// CompilerVersion describes the declared compiler version, or nil when the metadata does not declare one.
	CompilerVersion *semver.Version

	// Sources maps declared source identifiers to their parsed source files.
	Sources map[int]*SourceFile

	// Creation describes the instruction listing of the constructor bytecode.
	Creation *Program

	// Runtime describes the instruction listing of the deployed bytecode.
	Runtime *Program

	// ABI describes the contract ABI, or nil when no ABI artifact was found. Without it, selector resolution and
	// argument decoding degrade to raw bytes.
	ABI *abi.ABI
}

// Program describes the instruction listing of one environment, indexed by program counter.
type Program struct {
	// Environment describes whether this is the creation or runtime listing.
	Environment Environment

	// Instructions describes every listed instruction, ordered by program counter.
	Instructions []*Instruction

	// byPC indexes instructions by their program counter for O(1) lookups.
	byPC map[uint64]*Instruction

	// variables describes the variable location hints declared for this environment.
	variables []*VariableHint
}

// InstructionAt returns the instruction at the given program counter, or nil if the listing has none.
func (p *Program) InstructionAt(pc uint64) *Instruction {
	if p == nil {
		return nil
	}
	return p.byPC[pc]
}

// VariablesAt returns every variable hint valid at the given program counter.
func (p *Program) VariablesAt(pc uint64) []*VariableHint {
	if p == nil {
		return nil
	}
	var valid []*VariableHint
	for _, hint := range p.variables {
		if hint.ValidAt(pc) {
			valid = append(valid, hint)
		}
	}
	return valid
}

// Bytecode reassembles the environment's bytecode from its instruction listing, placing each opcode and its push
// immediates at the listed offset. Returns nil when any mnemonic is unknown, since a partial reassembly would
// produce false mismatches when compared against deployed code.
func (p *Program) Bytecode() []byte {
	if p == nil || len(p.Instructions) == 0 {
		return nil
	}
	last := p.Instructions[len(p.Instructions)-1]
	bytecode := make([]byte, last.PC+1+uint64(len(last.Operand)))
	for _, instruction := range p.Instructions {
		op := vm.StringToOp(instruction.Opcode)
		if op == vm.STOP && instruction.Opcode != "STOP" {
			return nil
		}
		bytecode[instruction.PC] = byte(op)
		copy(bytecode[instruction.PC+1:], instruction.Operand)
	}
	return bytecode
}

// Program returns the instruction listing for the given environment.
func (c *ContractDebugInfo) Program(environment Environment) *Program {
	if environment == EnvironmentCreation {
		return c.Creation
	}
	return c.Runtime
}

// InstructionAt returns the instruction at the given program counter within the given environment, or nil when the
// listing has no entry there.
func (c *ContractDebugInfo) InstructionAt(environment Environment, pc uint64) *Instruction {
	return c.Program(environment).InstructionAt(pc)
}

// SourceLocationAt returns the resolved source location of the instruction at the given program counter, or nil
// when the instruction is unknown or carries no source context.
func (c *ContractDebugInfo) SourceLocationAt(environment Environment, pc uint64) *SourceLocation {
	instruction := c.InstructionAt(environment, pc)
	if instruction == nil {
		return nil
	}
	return instruction.Location
}

// DeclaredFunctionAt reports whether the instruction at the given program counter maps to a source range which
// declares a function, returning the declared name when it does. This is how jump destinations are classified as
// function entry points rather than arbitrary jump targets.
func (c *ContractDebugInfo) DeclaredFunctionAt(environment Environment, pc uint64) (string, bool) {
	location := c.SourceLocationAt(environment, pc)
	if location == nil || location.File == nil || location.File.Contents == nil {
		return "", false
	}
	return location.File.declaredFunctionIn(location.Span.Offset, location.Span.Length)
}

// VariablesAt returns every variable hint valid at the given program counter within the given environment.
func (c *ContractDebugInfo) VariablesAt(environment Environment, pc uint64) []*VariableHint {
	return c.Program(environment).VariablesAt(pc)
}

// MethodBySelector resolves a 4-byte function selector against the contract ABI. Returns nil when the contract has
// no ABI or the selector matches none of its methods.
func (c *ContractDebugInfo) MethodBySelector(selector []byte) *abi.Method {
	if c.ABI == nil || len(selector) < 4 {
		return nil
	}
	method, err := c.ABI.MethodById(selector[:4])
	if err != nil {
		return nil
	}
	return method
}

// Source returns the declared source file with the given identifier, or nil when it was not declared.
func (c *ContractDebugInfo) Source(id int) *SourceFile {
	return c.Sources[id]
}
