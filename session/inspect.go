package session

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pkg/errors"

	"github.com/ariadne-eth/ariadne/abiutils"
	"github.com/ariadne-eth/ariadne/ethdebug"
	"github.com/ariadne-eth/ariadne/tracing"
)

// Variable describes one inspected variable: its declared name and type, the data location the
// metadata placed it in, and its decoded value at the cursor.
type Variable struct {
	// Name describes the source-level variable name.
	Name string

	// TypeName describes the canonical ABI type of the variable.
	TypeName string

	// Location describes the data location the value was read from.
	Location ethdebug.VariableLocationKind

	// Value describes the decoded value, or nil when it could not be recovered.
	Value any
}

// Inspect resolves a variable name against the frame active at the cursor, using the metadata's
// variable-location hints valid at the current program counter. Positions without a hint for the name
// yield a VariableUnavailableError.
func (s *Session) Inspect(name string) (*Variable, error) {
	step := s.CurrentStep()
	hints, err := s.currentHints()
	if err != nil {
		return nil, err
	}

	// Later hints shadow earlier ones, matching how nested scopes redeclare names.
	var hint *ethdebug.VariableHint
	for _, candidate := range hints {
		if candidate.Name == name {
			hint = candidate
		}
	}
	if hint == nil {
		return nil, &VariableUnavailableError{Name: name, PC: step.PC, Reason: "no location hint exists for this program position"}
	}

	value, err := s.readHint(hint, step)
	if err != nil {
		return nil, err
	}
	return &Variable{Name: hint.Name, TypeName: hint.TypeName, Location: hint.Location, Value: value}, nil
}

// Variables returns every variable with a valid location hint at the cursor, with values decoded where
// the trace captured the underlying data. Variables whose data is unavailable keep a nil value rather
// than failing the whole listing.
func (s *Session) Variables() ([]*Variable, error) {
	step := s.CurrentStep()
	hints, err := s.currentHints()
	if err != nil {
		return nil, err
	}

	variables := make([]*Variable, 0, len(hints))
	for _, hint := range hints {
		variable := &Variable{Name: hint.Name, TypeName: hint.TypeName, Location: hint.Location}
		if value, err := s.readHint(hint, step); err == nil {
			variable.Value = value
		}
		variables = append(variables, variable)
	}
	return variables, nil
}

// currentHints returns the variable hints valid at the cursor's frame and program counter.
func (s *Session) currentHints() ([]*ethdebug.VariableHint, error) {
	step := s.CurrentStep()
	frame := s.CurrentFrame()
	if frame.Contract == nil || frame.Contract.Info == nil {
		return nil, &VariableUnavailableError{PC: step.PC, Reason: "the executing contract has no debug metadata"}
	}
	return frame.Contract.Info.VariablesAt(frame.Environment, step.PC), nil
}

// readHint reads and decodes a variable's value from the data location its hint names.
func (s *Session) readHint(hint *ethdebug.VariableHint, step *tracing.ExecutionStep) (any, error) {
	argType, err := parseVariableType(hint.TypeName)
	if err != nil {
		return nil, err
	}

	switch hint.Location {
	case ethdebug.VariableOnStack:
		// Stack hints index from the bottom of the operand stack.
		if hint.Offset >= uint64(len(step.Stack)) {
			return nil, &VariableUnavailableError{Name: hint.Name, PC: step.PC, Reason: "the operand stack is shorter than the hinted slot"}
		}
		raw := step.Stack[hint.Offset].Bytes32()
		return decodeSlot(argType, raw[:])

	case ethdebug.VariableInMemory:
		if step.Memory == nil {
			return nil, &VariableUnavailableError{Name: hint.Name, PC: step.PC, Reason: "memory capture is disabled for this trace"}
		}
		return decodeMemoryValue(argType, step, hint.Offset)

	case ethdebug.VariableInStorage:
		return nil, &VariableUnavailableError{Name: hint.Name, PC: step.PC, Reason: "storage is not captured by the trace"}
	}
	return nil, &VariableUnavailableError{Name: hint.Name, PC: step.PC, Reason: "unrecognized data location " + string(hint.Location)}
}

// parseVariableType parses a canonical ABI type name into its abi.Type by wrapping it in a synthetic
// one-parameter signature.
func parseVariableType(typeName string) (*abi.Type, error) {
	method, err := abiutils.ParseSignature("inspect(" + typeName + ")")
	if err != nil || len(method.Inputs) != 1 {
		return nil, errors.Errorf("variable hint declares an unparseable type %v", typeName)
	}
	return &method.Inputs[0].Type, nil
}

// decodeSlot decodes a single 32-byte slot as a static ABI type.
func decodeSlot(argType *abi.Type, slot []byte) (any, error) {
	values, err := abi.Arguments{{Type: *argType}}.Unpack(slot)
	if err != nil || len(values) != 1 {
		return nil, errors.WithMessagef(err, "could not decode a %v from its slot", argType.String())
	}
	return values[0], nil
}

// decodeMemoryValue decodes a variable held in memory at the given byte offset. Value types occupy one
// word; strings and byte arrays follow the memory layout of a length word with the contents behind it.
func decodeMemoryValue(argType *abi.Type, step *tracing.ExecutionStep, offset uint64) (any, error) {
	if argType.T != abi.StringTy && argType.T != abi.BytesTy {
		return decodeSlot(argType, step.MemorySlice(offset, 32))
	}

	lengthWord := step.MemorySlice(offset, 32)
	length := binary.BigEndian.Uint64(lengthWord[24:])
	padded := (length + 31) / 32 * 32

	// Re-encode as head/tail ABI data so the standard decoder applies.
	encoded := make([]byte, 32, 32+32+padded)
	encoded[31] = 32
	encoded = append(encoded, step.MemorySlice(offset, 32+padded)...)
	values, err := abi.Arguments{{Type: *argType}}.Unpack(encoded)
	if err != nil || len(values) != 1 {
		return nil, errors.WithMessagef(err, "could not decode a %v from memory", argType.String())
	}
	return values[0], nil
}
