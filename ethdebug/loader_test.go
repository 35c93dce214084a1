package ethdebug

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariadne-eth/ariadne/abiutils"
)

// storeTestSource backs the loader fixtures. Offsets into it are computed rather than
// hard-coded so the fixture survives edits.
const storeTestSource = `pragma solidity ^0.8.29;

contract Store {
    uint256 public value;

    function set(uint256 newValue) public {
        value = newValue;
    }
}
`

// writeFixture writes one file into dir, creating parents as needed.
func writeFixture(t *testing.T, dir string, name string, contents string) {
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

// writeStoreFixture writes a complete debug directory for the Store fixture contract and
// returns its path together with the byte offset of the set() declaration.
func writeStoreFixture(t *testing.T) (string, int) {
	dir := t.TempDir()
	setOffset := strings.Index(storeTestSource, "function set")
	require.GreaterOrEqual(t, setOffset, 0)

	writeFixture(t, dir, "Store.sol", storeTestSource)
	writeFixture(t, dir, "ethdebug.json", `{
		"sources": [{"id": 0, "path": "Store.sol"}],
		"compiler": {"name": "solc", "version": "0.8.29+commit.ab55807c"}
	}`)
	writeFixture(t, dir, "Store_ethdebug.json", `{
		"environment": "create",
		"instructions": [
			{"offset": 0, "operation": {"mnemonic": "PUSH1", "arguments": ["0x80"]}},
			{"offset": 2, "operation": {"mnemonic": "PUSH1", "arguments": ["0x40"]}},
			{"offset": 4, "operation": {"mnemonic": "MSTORE"}}
		]
	}`)
	writeFixture(t, dir, "Store_ethdebug-runtime.json", fmt.Sprintf(`{
		"environment": "runtime",
		"instructions": [
			{"offset": 0, "operation": {"mnemonic": "PUSH1", "arguments": ["0x80"]}},
			{"offset": 2, "operation": {"mnemonic": "PUSH1", "arguments": ["0x40"]}},
			{"offset": 4, "operation": {"mnemonic": "MSTORE"}},
			{"offset": 5, "operation": {"mnemonic": "JUMPDEST"},
			 "context": {"code": {"source": {"id": 0}, "range": {"offset": %d, "length": 40}}}},
			{"offset": 6, "operation": {"mnemonic": "PUSH1", "arguments": ["0x2a"]}}
		],
		"variables": [
			{"name": "newValue", "type": "uint256", "location": "stack", "offset": 2, "range": {"from": 5, "to": 6}},
			{"name": "value", "type": "uint256", "location": "storage", "offset": 0}
		]
	}`, setOffset))
	writeFixture(t, dir, "Store.abi", `[{"type":"function","name":"set","inputs":[{"name":"newValue","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}]`)
	return dir, setOffset
}

// TestLoadResolvesMetadata verifies a complete debug directory loads with eager source
// resolution, variable hints, and the ABI artifact.
func TestLoadResolvesMetadata(t *testing.T) {
	dir, setOffset := writeStoreFixture(t)

	info, err := Load(dir)
	require.NoError(t, err)
	assert.EqualValues(t, "Store", info.Name)
	require.NotNil(t, info.CompilerVersion)
	assert.EqualValues(t, "0.8.29", fmt.Sprintf("%d.%d.%d", info.CompilerVersion.Major(), info.CompilerVersion.Minor(), info.CompilerVersion.Patch()))

	// Both environments parsed.
	require.NotNil(t, info.Creation)
	require.NotNil(t, info.Runtime)
	assert.EqualValues(t, 3, len(info.Creation.Instructions))
	assert.EqualValues(t, 5, len(info.Runtime.Instructions))

	// The jumpdest resolves to the set() declaration's line.
	location := info.SourceLocationAt(EnvironmentRuntime, 5)
	require.NotNil(t, location)
	expectedLine, expectedColumn := info.Source(0).Position(setOffset)
	assert.EqualValues(t, expectedLine, location.Line)
	assert.EqualValues(t, expectedColumn, location.Column)
	assert.EqualValues(t, setOffset, location.Span.Offset)

	// The declaration is recognized as a function entry.
	name, ok := info.DeclaredFunctionAt(EnvironmentRuntime, 5)
	require.True(t, ok)
	assert.EqualValues(t, "set", name)

	// Instructions without source context resolve to nothing.
	assert.Nil(t, info.SourceLocationAt(EnvironmentRuntime, 0))
	_, ok = info.DeclaredFunctionAt(EnvironmentRuntime, 0)
	assert.False(t, ok)

	// Push immediates decode onto the instruction.
	instruction := info.InstructionAt(EnvironmentRuntime, 6)
	require.NotNil(t, instruction)
	assert.EqualValues(t, "PUSH1", instruction.Opcode)
	assert.EqualValues(t, []byte{0x2a}, instruction.Operand)

	// The ABI resolves selectors.
	require.NotNil(t, info.ABI)
	method := info.MethodBySelector(abiutils.ComputeSelector("set(uint256)"))
	require.NotNil(t, method)
	assert.EqualValues(t, "set", method.Name)
}

// TestLoadVariableHints verifies hint validity ranges filter lookups by program counter.
func TestLoadVariableHints(t *testing.T) {
	dir, _ := writeStoreFixture(t)
	info, err := Load(dir)
	require.NoError(t, err)

	// At pc=5 both the ranged stack hint and the unranged storage hint apply.
	hints := info.VariablesAt(EnvironmentRuntime, 5)
	require.EqualValues(t, 2, len(hints))

	named := map[string]*VariableHint{}
	for _, hint := range hints {
		named[hint.Name] = hint
	}
	require.Contains(t, named, "newValue")
	assert.EqualValues(t, VariableOnStack, named["newValue"].Location)
	assert.EqualValues(t, 2, named["newValue"].Offset)
	require.Contains(t, named, "value")
	assert.EqualValues(t, VariableInStorage, named["value"].Location)

	// Outside the stack hint's range only the unranged hint remains.
	hints = info.VariablesAt(EnvironmentRuntime, 7)
	require.EqualValues(t, 1, len(hints))
	assert.EqualValues(t, "value", hints[0].Name)
}

// TestLoadFlatInstructionShape verifies the flattened mnemonic form and bare-array
// listings parse identically to the nested operation form.
func TestLoadFlatInstructionShape(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "Flat.sol", "contract Flat {}\n")
	writeFixture(t, dir, "ethdebug.json", `{"sources": [{"id": 0, "path": "Flat.sol"}]}`)
	writeFixture(t, dir, "Flat_ethdebug.json", `[
		{"offset": 0, "mnemonic": "PUSH1", "arguments": ["0x80"]}
	]`)
	writeFixture(t, dir, "Flat_ethdebug-runtime.json", `[
		{"offset": 0, "mnemonic": "PUSH1", "arguments": ["0x80"]},
		{"offset": 2, "mnemonic": "JUMPDEST",
		 "context": {"code": {"source": {"id": 0}, "range": {"offset": 0, "length": 8}}}}
	]`)

	info, err := Load(dir)
	require.NoError(t, err)
	assert.EqualValues(t, "Flat", info.Name)
	require.EqualValues(t, 2, len(info.Runtime.Instructions))
	assert.EqualValues(t, []byte{0x80}, info.Runtime.InstructionAt(0).Operand)

	location := info.SourceLocationAt(EnvironmentRuntime, 2)
	require.NotNil(t, location)
	assert.EqualValues(t, 1, location.Line)
}

// TestLoadKeepsInnermostSpan verifies duplicate program counter entries keep the entry
// with the narrowest source span.
func TestLoadKeepsInnermostSpan(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "Inline.sol", "contract Inline { function f() public {} }\n")
	writeFixture(t, dir, "ethdebug.json", `{"sources": [{"id": 0, "path": "Inline.sol"}]}`)
	writeFixture(t, dir, "Inline_ethdebug.json", `[{"offset": 0, "mnemonic": "STOP"}]`)
	writeFixture(t, dir, "Inline_ethdebug-runtime.json", `[
		{"offset": 0, "mnemonic": "JUMPDEST",
		 "context": {"code": {"source": {"id": 0}, "range": {"offset": 0, "length": 42}}}},
		{"offset": 0, "mnemonic": "JUMPDEST",
		 "context": {"code": {"source": {"id": 0}, "range": {"offset": 18, "length": 22}}}},
		{"offset": 0, "mnemonic": "JUMPDEST",
		 "context": {"code": {"source": {"id": 0}, "range": {"offset": 0, "length": 42}}}}
	]`)

	info, err := Load(dir)
	require.NoError(t, err)
	require.EqualValues(t, 1, len(info.Runtime.Instructions))

	location := info.SourceLocationAt(EnvironmentRuntime, 0)
	require.NotNil(t, location)
	assert.EqualValues(t, 18, location.Span.Offset)
	assert.EqualValues(t, 22, location.Span.Length)
}

// TestLoadUndeclaredSourceIsSoft verifies instructions referencing undeclared sources
// keep their position but lose their span.
func TestLoadUndeclaredSourceIsSoft(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "Soft.sol", "contract Soft {}\n")
	writeFixture(t, dir, "ethdebug.json", `{"sources": [{"id": 0, "path": "Soft.sol"}]}`)
	writeFixture(t, dir, "Soft_ethdebug.json", `[{"offset": 0, "mnemonic": "STOP"}]`)
	writeFixture(t, dir, "Soft_ethdebug-runtime.json", `[
		{"offset": 0, "mnemonic": "JUMPDEST",
		 "context": {"code": {"source": {"id": 9}, "range": {"offset": 0, "length": 4}}}}
	]`)

	info, err := Load(dir)
	require.NoError(t, err)
	instruction := info.InstructionAt(EnvironmentRuntime, 0)
	require.NotNil(t, instruction)
	assert.Nil(t, instruction.Location)
}

// TestLoadRejectsOldCompiler verifies the metadata format version gate.
func TestLoadRejectsOldCompiler(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "Old.sol", "contract Old {}\n")
	writeFixture(t, dir, "ethdebug.json", `{
		"sources": [{"id": 0, "path": "Old.sol"}],
		"compiler": {"name": "solc", "version": "0.8.28"}
	}`)
	writeFixture(t, dir, "Old_ethdebug.json", `[{"offset": 0, "mnemonic": "STOP"}]`)
	writeFixture(t, dir, "Old_ethdebug-runtime.json", `[{"offset": 0, "mnemonic": "STOP"}]`)

	_, err := Load(dir)
	require.Error(t, err)
	var formatErr *MetadataFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "0.8.29")
}

// TestLoadMissingPieces verifies the required files each fail with a MetadataFormatError.
func TestLoadMissingPieces(t *testing.T) {
	// No compilation index at all.
	_, err := Load(t.TempDir())
	var formatErr *MetadataFormatError
	require.ErrorAs(t, err, &formatErr)

	// An index declaring no sources.
	dir := t.TempDir()
	writeFixture(t, dir, "ethdebug.json", `{"sources": []}`)
	_, err = Load(dir)
	require.ErrorAs(t, err, &formatErr)

	// An index present but no instruction listings.
	dir = t.TempDir()
	writeFixture(t, dir, "None.sol", "contract None {}\n")
	writeFixture(t, dir, "ethdebug.json", `{"sources": [{"id": 0, "path": "None.sol"}]}`)
	_, err = Load(dir)
	require.ErrorAs(t, err, &formatErr)

	// A runtime listing without its creation counterpart.
	writeFixture(t, dir, "None_ethdebug-runtime.json", `[{"offset": 0, "mnemonic": "STOP"}]`)
	_, err = Load(dir)
	require.ErrorAs(t, err, &formatErr)
}

// TestLoadContractSelection verifies multi-contract directories discover the
// alphabetically first contract and honor explicit selection.
func TestLoadContractSelection(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "Pair.sol", "contract Alpha {}\ncontract Beta {}\n")
	writeFixture(t, dir, "ethdebug.json", `{"sources": [{"id": 0, "path": "Pair.sol"}]}`)
	for _, name := range []string{"Alpha", "Beta"} {
		writeFixture(t, dir, name+"_ethdebug.json", `[{"offset": 0, "mnemonic": "STOP"}]`)
		writeFixture(t, dir, name+"_ethdebug-runtime.json", `[{"offset": 0, "mnemonic": "STOP"}]`)
	}

	info, err := Load(dir)
	require.NoError(t, err)
	assert.EqualValues(t, "Alpha", info.Name)

	info, err = LoadContract(dir, "Beta")
	require.NoError(t, err)
	assert.EqualValues(t, "Beta", info.Name)
}

// TestProgramBytecodeReassembly verifies instruction listings reassemble into bytecode
// and unknown mnemonics disable reassembly.
func TestProgramBytecodeReassembly(t *testing.T) {
	dir, _ := writeStoreFixture(t)
	info, err := Load(dir)
	require.NoError(t, err)

	assert.EqualValues(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0x5b, 0x60, 0x2a}, info.Runtime.Bytecode())

	bogus := &Program{Instructions: []*Instruction{{PC: 0, Opcode: "NOTANOP"}}}
	assert.Nil(t, bogus.Bytecode())
}
