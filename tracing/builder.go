package tracing

import (
	"math/big"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/ariadne-eth/ariadne/abiutils"
	"github.com/ariadne-eth/ariadne/contracts"
	"github.com/ariadne-eth/ariadne/ethdebug"
	"github.com/ariadne-eth/ariadne/logging"
)

// fallbackContractName labels frames of contracts without a registry entry when a name is
// unavoidable, such as the synthetic root.
const fallbackContractName = "Contract"

// Build reconstructs the hierarchical call tree of a transaction from its flat instruction
// trace, resolving contracts through the registry and decoding call arguments where the
// metadata allows. The registry may be nil, in which case every frame keeps bytecode-level
// facts only.
//
// When the trace ends with frames still open, the returned tree is complete up to the
// truncation point and the returned error is a *TruncatedTraceError; the tree remains
// usable alongside it.
func Build(trace *TransactionTrace, registry *contracts.Registry) (*CallFrame, error) {
	if trace == nil || len(trace.Steps) == 0 {
		return nil, errors.New("cannot reconstruct a call tree from a trace with no steps")
	}

	b := &builder{
		trace:    trace,
		registry: registry,
		logger:   logging.GlobalLogger.NewSubLogger("module", "tracing"),
	}

	root := b.seedRoot()
	for i := range trace.Steps {
		b.processStep(i)
	}
	openFrames := b.closeTruncated()
	b.finalize(root)

	if openFrames > 0 {
		return root, &TruncatedTraceError{Steps: len(trace.Steps), OpenFrames: openFrames}
	}
	return root, nil
}

// builder carries the walking state of one Build invocation.
type builder struct {
	trace    *TransactionTrace
	registry *contracts.Registry
	logger   *logging.Logger

	// open describes the currently open frames, innermost last. The synthetic root sits at
	// the bottom for the whole walk.
	open []*CallFrame

	// entryFunction, entrySelector and entryArgs describe the transaction's entry call as
	// resolved from its calldata selector. They attach to the first internal frame which
	// enters that function under the root dispatcher.
	entryFunction string
	entrySelector []byte
	entryArgs     []DecodedArgument
}

// seedRoot creates and opens the synthetic root frame for the transaction's entry contract:
// the runtime dispatcher for calls, the constructor for creations.
func (b *builder) seedRoot() *CallFrame {
	first := b.trace.Steps[0]
	address := b.trace.EntryAddress()
	contract := b.resolveContract(address)

	root := &CallFrame{
		Kind:            FrameEntry,
		ContractAddress: address,
		Contract:        contract,
		ContractName:    fallbackContractName,
		Environment:     ethdebug.EnvironmentRuntime,
		Function:        "runtime_dispatcher",
		EntryStep:       0,
		ExitStep:        -1,
		Depth:           first.Depth,
		GasAtEntry:      first.Gas,
		CallValue:       b.trace.Value,
		Input:           b.trace.Input,
	}
	if contract != nil {
		root.ContractName = contract.Name
	}
	if b.trace.IsCreation() {
		root.Environment = ethdebug.EnvironmentCreation
		root.Function = "constructor"
	} else if len(b.trace.Input) >= 4 && contract != nil && contract.Info != nil {
		if method := contract.Info.MethodBySelector(b.trace.Input[:4]); method != nil {
			b.entryFunction = method.Name
			b.entrySelector = b.trace.Input[:4]
			root.Selector = b.entrySelector
			if values, err := abiutils.DecodeArguments(method.Inputs, b.trace.Input[4:]); err == nil {
				b.entryArgs = argumentsFromValues(method.Inputs, values)
			} else {
				b.logger.Debug("Could not decode entry calldata for ", method.Name, ": ", err)
			}
		}
	}

	b.open = []*CallFrame{root}
	return root
}

// processStep advances the frame stack across one step of the trace.
func (b *builder) processStep(i int) {
	step := b.trace.Steps[i]

	// A depth drop not consumed by the previous step's return handling means the scope
	// aborted without a return-class instruction (out of gas, stack violation). Close
	// everything deeper than the current depth at the aborting step.
	if i > 0 && step.Depth < b.trace.Steps[i-1].Depth {
		b.closeAbortedScopes(i-1, step.Depth)
	}

	switch CategorizeOpcode(step.Opcode) {
	case CategoryCall:
		b.handleCall(i)
	case CategoryCreate:
		b.handleCreate(i)
	case CategoryReturn:
		b.handleReturn(i)
	case CategoryJumpDest:
		b.handleJumpDest(i)
	}
}

// handleCall reacts to a message-call opcode: it either opens a new scope frame when the
// node reports the depth rising on the next step, or records a stub frame for calls which
// never enter a scope of their own (precompiles, failures before callee entry).
func (b *builder) handleCall(i int) {
	step := b.trace.Steps[i]
	layout, ok := callOperandLayout(step.Opcode)
	if !ok || len(step.Stack) < layout.arity {
		b.logger.Debug("Skipping ", step.Opcode, " at step ", i, " with short stack")
		return
	}

	target := common.Address(step.StackBack(layout.target).Bytes20())
	frame := &CallFrame{
		Kind:            FrameKindForOpcode(step.Opcode),
		ContractAddress: target,
		Environment:     ethdebug.EnvironmentRuntime,
		EntryStep:       i,
		ExitStep:        -1,
		Source:          b.callSiteLocation(step),
		Input: step.MemorySlice(
			step.StackBack(layout.argsOffset).Uint64(),
			step.StackBack(layout.argsSize).Uint64(),
		),
	}
	if layout.value >= 0 {
		frame.CallValue = step.StackBack(layout.value).ToBig()
	}
	b.resolveCallTarget(frame)

	if b.scopeOpensAfter(i) {
		next := b.trace.Steps[i+1]
		frame.Depth = next.Depth
		frame.GasAtEntry = next.Gas
		b.pushFrame(frame)
		return
	}
	b.closeStub(frame, i, layout)
}

// handleCreate reacts to a contract-creation opcode. The created address only surfaces on
// the creator's stack after the scope returns, so it is peeked ahead of time so the init
// code symbolicates against the creation listing of the right contract.
func (b *builder) handleCreate(i int) {
	step := b.trace.Steps[i]
	layout, ok := createOperandLayout(step.Opcode)
	if !ok || len(step.Stack) < layout.arity {
		b.logger.Debug("Skipping ", step.Opcode, " at step ", i, " with short stack")
		return
	}

	frame := &CallFrame{
		Kind:        FrameKindForOpcode(step.Opcode),
		Environment: ethdebug.EnvironmentCreation,
		EntryStep:   i,
		ExitStep:    -1,
		Source:      b.callSiteLocation(step),
		CallValue:   step.StackBack(layout.value).ToBig(),
		Input: step.MemorySlice(
			step.StackBack(layout.argsOffset).Uint64(),
			step.StackBack(layout.argsSize).Uint64(),
		),
	}

	if address, found := b.createdAddressAfter(i); found {
		frame.ContractAddress = address
		frame.Contract = b.resolveContract(address)
		if frame.Contract != nil {
			frame.ContractName = frame.Contract.Name
			frame.Function = "constructor"
		}
	}

	if b.scopeOpensAfter(i) {
		next := b.trace.Steps[i+1]
		frame.Depth = next.Depth
		frame.GasAtEntry = next.Gas
		b.pushFrame(frame)
		return
	}
	b.closeStub(frame, i, layout)
}

// handleReturn reacts to a scope-terminating opcode: it marks reverts on the deepest open
// frame, closes the open internal frames of the current scope, and closes the scope frame
// itself when the node-reported depth drops afterward (or the trace ends here, which also
// ends every outer scope).
func (b *builder) handleReturn(i int) {
	step := b.trace.Steps[i]

	var returned []byte
	if (step.Opcode == "RETURN" || step.Opcode == "REVERT") && len(step.Stack) >= 2 {
		returned = step.MemorySlice(step.StackBack(0).Uint64(), step.StackBack(1).Uint64())
	}

	if step.Opcode == "REVERT" || step.Opcode == "INVALID" {
		if frame := b.top(); frame != nil && !frame.RevertObserved {
			frame.Reverted = true
			frame.RevertObserved = true
			frame.RevertData = returned
		}
	}

	lastStep := i+1 >= len(b.trace.Steps)
	scopeEnds := lastStep || b.trace.Steps[i+1].Depth < step.Depth

	closedScope := false
	for b.top() != nil {
		frame := b.top()
		if frame.Kind.IsExternal() {
			if !scopeEnds {
				return
			}
			b.close(frame, i, step.Gas)
			if !closedScope {
				frame.Output = returned
				closedScope = true
			}
			if !lastStep {
				// Outer scopes keep running after this step.
				return
			}
			continue
		}
		b.close(frame, i, step.Gas)
	}
}

// handleJumpDest reacts to a JUMPDEST: when its source span declares a function and the
// innermost open frame is not already that function, a same-scope internal frame opens.
func (b *builder) handleJumpDest(i int) {
	step := b.trace.Steps[i]
	scope := b.currentScope()
	if scope == nil || scope.Contract == nil || scope.Contract.Info == nil {
		return
	}

	name, ok := scope.Contract.Info.DeclaredFunctionAt(scope.Environment, step.PC)
	if !ok {
		return
	}
	if top := b.top(); top != nil && top.Function == name {
		return
	}

	frame := &CallFrame{
		Kind:            FrameInternal,
		ContractAddress: scope.ContractAddress,
		Contract:        scope.Contract,
		ContractName:    scope.ContractName,
		Environment:     scope.Environment,
		Function:        name,
		EntryStep:       i,
		ExitStep:        -1,
		Depth:           step.Depth,
		GasAtEntry:      step.Gas,
		Source:          scope.Contract.Info.SourceLocationAt(scope.Environment, step.PC),
	}
	b.resolveInternalArgs(frame, scope, step)
	b.pushFrame(frame)
}

// scopeOpensAfter indicates whether the step after a call-class instruction enters a new
// scope, i.e. the node reports a deeper nesting on it.
func (b *builder) scopeOpensAfter(i int) bool {
	return i+1 < len(b.trace.Steps) && b.trace.Steps[i+1].Depth > b.trace.Steps[i].Depth
}

// createdAddressAfter scans past the creation scope opened at step i and returns the
// created contract's address from the creator's stack once the scope completes. Reverted
// creations leave a zero word, reported as not found.
func (b *builder) createdAddressAfter(i int) (common.Address, bool) {
	depth := b.trace.Steps[i].Depth
	for j := i + 1; j < len(b.trace.Steps); j++ {
		if b.trace.Steps[j].Depth > depth {
			continue
		}
		word := b.trace.Steps[j].StackBack(0)
		if word == nil || word.IsZero() {
			return common.Address{}, false
		}
		return common.Address(word.Bytes20()), true
	}
	return common.Address{}, false
}

// closeStub records a call which opened no scope of its own: a precompile, an empty-code
// target, or a call that failed before callee entry. The frame opens and closes on the
// spot, with its outcome read from the caller's next step.
func (b *builder) closeStub(frame *CallFrame, i int, layout callOperands) {
	step := b.trace.Steps[i]
	frame.Depth = step.Depth + 1
	frame.GasAtEntry = step.Gas
	b.attachChild(frame)

	if i+1 >= len(b.trace.Steps) {
		frame.Truncated = true
		return
	}

	next := b.trace.Steps[i+1]
	frame.ExitStep = i + 1
	if step.Gas >= next.Gas {
		frame.GasUsed = step.Gas - next.Gas
	}

	// The result word replaces the operands on the caller's stack: nonzero for success
	// (or the created address), zero for failure.
	result := next.StackBack(0)
	if result == nil {
		return
	}
	if result.IsZero() {
		frame.Reverted = true
		frame.RevertObserved = true
		return
	}
	if frame.Kind.IsCreation() {
		frame.ContractAddress = common.Address(result.Bytes20())
		frame.Contract = b.resolveContract(frame.ContractAddress)
		if frame.Contract != nil {
			frame.ContractName = frame.Contract.Name
			frame.Function = "constructor"
		}
		return
	}
	if len(next.ReturnData) > 0 {
		frame.Output = next.ReturnData
	} else if layout.retOffset >= 0 {
		frame.Output = next.MemorySlice(
			step.StackBack(layout.retOffset).Uint64(),
			step.StackBack(layout.retSize).Uint64(),
		)
	}
}

// closeAbortedScopes closes every frame deeper than targetDepth at the given step, marking
// scope frames with the node-reported error when one was given.
func (b *builder) closeAbortedScopes(lastStep int, targetDepth int) {
	step := b.trace.Steps[lastStep]
	for b.top() != nil && b.top().Depth > targetDepth {
		frame := b.top()
		b.close(frame, lastStep, step.Gas)
		if frame.Kind.IsExternal() && step.Error != "" {
			frame.VMError = step.Error
		}
	}
}

// closeTruncated marks the frames still open when the trace ends without closing them,
// returning how many there were. Their exit step stays absent.
func (b *builder) closeTruncated() int {
	count := len(b.open)
	for _, frame := range b.open {
		frame.Truncated = true
	}
	b.open = nil
	return count
}

// close terminates a frame at the given step and pops it off the open stack.
func (b *builder) close(frame *CallFrame, exitStep int, exitGas uint64) {
	frame.ExitStep = exitStep
	if frame.GasAtEntry >= exitGas {
		frame.GasUsed = frame.GasAtEntry - exitGas
	}
	b.open = b.open[:len(b.open)-1]
}

// top returns the innermost open frame, or nil when none remain.
func (b *builder) top() *CallFrame {
	if len(b.open) == 0 {
		return nil
	}
	return b.open[len(b.open)-1]
}

// currentScope returns the innermost open frame owning an EVM call scope.
func (b *builder) currentScope() *CallFrame {
	for i := len(b.open) - 1; i >= 0; i-- {
		if b.open[i].Kind.IsExternal() {
			return b.open[i]
		}
	}
	return nil
}

// pushFrame attaches the frame to the innermost open frame and opens it.
func (b *builder) pushFrame(frame *CallFrame) {
	parent := b.top()
	if parent == nil {
		b.logger.Debug("Dropping orphaned frame ", frame.DisplayName(), " at step ", frame.EntryStep)
		return
	}
	frame.Parent = parent
	parent.Children = append(parent.Children, frame)
	b.open = append(b.open, frame)
}

// attachChild attaches an already-closed frame to the innermost open frame without opening
// it.
func (b *builder) attachChild(frame *CallFrame) {
	parent := b.top()
	if parent == nil {
		return
	}
	frame.Parent = parent
	parent.Children = append(parent.Children, frame)
}

// resolveContract looks an address up in the registry, tolerating both a missing registry
// and an unregistered address.
func (b *builder) resolveContract(address common.Address) *contracts.Contract {
	if b.registry == nil {
		return nil
	}
	return b.registry.ContractAt(address)
}

// callSiteLocation resolves the source location of the instruction at the given step
// against the currently executing contract.
func (b *builder) callSiteLocation(step *ExecutionStep) *ethdebug.SourceLocation {
	scope := b.currentScope()
	if scope == nil || scope.Contract == nil || scope.Contract.Info == nil {
		return nil
	}
	return scope.Contract.Info.SourceLocationAt(scope.Environment, step.PC)
}

// resolveCallTarget resolves a call frame's target through the registry and, when the
// target's ABI knows the input selector, the called function and its decoded arguments.
// Unknown targets and selectors keep the raw input.
func (b *builder) resolveCallTarget(frame *CallFrame) {
	frame.Contract = b.resolveContract(frame.ContractAddress)
	if frame.Contract == nil {
		return
	}
	frame.ContractName = frame.Contract.Name
	if len(frame.Input) < 4 || frame.Contract.Info == nil {
		return
	}
	method := frame.Contract.Info.MethodBySelector(frame.Input[:4])
	if method == nil {
		return
	}
	frame.Function = method.Name
	frame.Selector = frame.Input[:4]
	values, err := abiutils.DecodeArguments(method.Inputs, frame.Input[4:])
	if err != nil {
		b.logger.Debug("Could not decode arguments of ", frame.DisplayName(), ": ", err)
		frame.Args = argumentsFromValues(method.Inputs, nil)
		return
	}
	frame.Args = argumentsFromValues(method.Inputs, values)
}

// resolveInternalArgs fills an internal frame's arguments. When the enclosing scope already
// decoded calldata for the same function, those values carry over; otherwise value-typed
// parameters are read off the stack tail, where the compiler places them with the last
// parameter on top.
func (b *builder) resolveInternalArgs(frame *CallFrame, scope *CallFrame, step *ExecutionStep) {
	if scope.Kind == FrameEntry {
		if frame.Function == b.entryFunction && hasDecodedValues(b.entryArgs) {
			frame.Args = slices.Clone(b.entryArgs)
			frame.Selector = b.entrySelector
			return
		}
	} else if scope.Function == frame.Function && hasDecodedValues(scope.Args) {
		frame.Args = slices.Clone(scope.Args)
		frame.Selector = scope.Selector
		return
	}

	method := methodByName(scope.Contract.Info.ABI, frame.Function)
	if method == nil {
		return
	}
	args := argumentsFromValues(method.Inputs, nil)
	frame.Args = args
	count := len(method.Inputs)
	if count == 0 || len(step.Stack) < count {
		return
	}
	for _, input := range method.Inputs {
		if !stackReadable(&input.Type) {
			// Reference-typed parameters pass as pointers into memory or calldata; a
			// stack read would decode garbage, so every argument stays unknown.
			return
		}
	}
	for k := range method.Inputs {
		word := step.Stack[len(step.Stack)-count+k]
		args[k].Value = valueFromWord(&method.Inputs[k].Type, &word)
	}
}

// finalize decodes captured revert payloads and propagates the transaction's failure up
// the ancestor chain of the frame where it originated.
func (b *builder) finalize(root *CallFrame) {
	root.Visit(func(frame *CallFrame) {
		if len(frame.RevertData) > 0 {
			frame.RevertReason = abiutils.FormatRevertReason(contractABIOf(frame), frame.RevertData)
		}
	})

	if !b.trace.Failed {
		return
	}

	// The failure origin is the last frame whose failure was directly observed; absent
	// one (truncation, malformed trace) the root itself.
	origin := root
	var lastError *CallFrame
	root.Visit(func(frame *CallFrame) {
		if frame.RevertObserved {
			origin = frame
		}
		if frame.VMError != "" {
			lastError = frame
		}
	})
	if !origin.RevertObserved && lastError != nil {
		origin = lastError
	}

	for frame := origin; frame != nil; frame = frame.Parent {
		frame.Reverted = true
	}

	if root.RevertReason == "" {
		if len(b.trace.Output) > 0 {
			root.RevertReason = abiutils.FormatRevertReason(contractABIOf(root), b.trace.Output)
		} else {
			root.RevertReason = origin.RevertReason
		}
	}
}

// contractABIOf returns the ABI of the frame's resolved contract, or nil.
func contractABIOf(frame *CallFrame) *abi.ABI {
	if frame.Contract == nil || frame.Contract.Info == nil {
		return nil
	}
	return frame.Contract.Info.ABI
}

// argumentsFromValues pairs ABI inputs with their decoded values in declaration order.
// values may be nil (or short) when decoding failed; the affected arguments keep a nil
// value and display as unknown.
func argumentsFromValues(inputs abi.Arguments, values []any) []DecodedArgument {
	args := make([]DecodedArgument, len(inputs))
	for i, input := range inputs {
		args[i].Name = input.Name
		if args[i].Name == "" {
			args[i].Name = "arg" + strconv.Itoa(i)
		}
		args[i].TypeName = input.Type.String()
		if i < len(values) {
			args[i].Value = values[i]
		}
	}
	return args
}

// hasDecodedValues indicates whether at least one argument carries a decoded value, which
// makes the set worth inheriting over a fresh stack read.
func hasDecodedValues(args []DecodedArgument) bool {
	for _, arg := range args {
		if arg.Value != nil {
			return true
		}
	}
	return false
}

// methodByName resolves a method by its source-level name. ABI method keys carry overload
// suffixes, so a direct hit is tried first and raw names second, in sorted key order so
// overload resolution stays deterministic.
func methodByName(contractABI *abi.ABI, name string) *abi.Method {
	if contractABI == nil {
		return nil
	}
	if method, ok := contractABI.Methods[name]; ok {
		return &method
	}
	keys := maps.Keys(contractABI.Methods)
	slices.Sort(keys)
	for _, key := range keys {
		if contractABI.Methods[key].RawName == name {
			method := contractABI.Methods[key]
			return &method
		}
	}
	return nil
}

// stackReadable indicates whether a parameter of the given ABI type occupies a single
// stack word when passed to an internal function.
func stackReadable(argType *abi.Type) bool {
	switch argType.T {
	case abi.UintTy, abi.IntTy, abi.AddressTy, abi.BoolTy, abi.FixedBytesTy:
		return true
	}
	return false
}

// twoTo256 converts unsigned stack words into two's complement signed values.
var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// valueFromWord decodes a single stack word into the Go value for its ABI type, or nil
// when the type cannot be represented by one word.
func valueFromWord(argType *abi.Type, word *uint256.Int) any {
	switch argType.T {
	case abi.AddressTy:
		return common.Address(word.Bytes20())
	case abi.BoolTy:
		return !word.IsZero()
	case abi.UintTy:
		return word.ToBig()
	case abi.IntTy:
		value := word.ToBig()
		if word.Sign() < 0 {
			value.Sub(value, twoTo256)
		}
		return value
	case abi.FixedBytesTy:
		raw := word.Bytes32()
		value := reflect.New(argType.GetType()).Elem()
		for i := 0; i < argType.Size && i < len(raw); i++ {
			value.Index(i).SetUint(uint64(raw[i]))
		}
		return value.Interface()
	}
	return nil
}
