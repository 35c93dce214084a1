package tracing

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ariadne-eth/ariadne/contracts"
	"github.com/ariadne-eth/ariadne/ethdebug"
)

// FrameKind describes how a call frame was entered.
type FrameKind int

const (
	// FrameEntry describes the synthetic root frame seeded for the transaction's entry
	// contract (the runtime dispatcher, or the constructor for creations).
	FrameEntry FrameKind = iota

	// FrameCall describes a frame entered through CALL or CALLCODE.
	FrameCall

	// FrameDelegateCall describes a frame entered through DELEGATECALL.
	FrameDelegateCall

	// FrameStaticCall describes a frame entered through STATICCALL.
	FrameStaticCall

	// FrameCreate describes a frame executing init code entered through CREATE.
	FrameCreate

	// FrameCreate2 describes a frame executing init code entered through CREATE2.
	FrameCreate2

	// FrameInternal describes a source-level function call within the same contract,
	// detected at a JUMPDEST whose source span declares a function.
	FrameInternal
)

// String returns the display name of the frame kind.
func (k FrameKind) String() string {
	switch k {
	case FrameEntry:
		return "entry"
	case FrameCall:
		return "call"
	case FrameDelegateCall:
		return "delegatecall"
	case FrameStaticCall:
		return "staticcall"
	case FrameCreate:
		return "create"
	case FrameCreate2:
		return "create2"
	case FrameInternal:
		return "internal"
	}
	return "unknown"
}

// IsExternal indicates whether the frame represents an EVM call scope of its own (a message
// call, a creation, or the transaction entry), as opposed to a source-level internal call
// executing within its parent's scope.
func (k FrameKind) IsExternal() bool {
	return k != FrameInternal
}

// IsCreation indicates whether the frame executes init code, meaning symbolication must use
// the creation instruction listing instead of the runtime one.
func (k FrameKind) IsCreation() bool {
	return k == FrameCreate || k == FrameCreate2
}

// FrameKindForOpcode maps a call-class or create-class opcode to its frame kind. CALLCODE
// behaves as CALL for display purposes.
func FrameKindForOpcode(opcode string) FrameKind {
	switch opcode {
	case "DELEGATECALL":
		return FrameDelegateCall
	case "STATICCALL":
		return FrameStaticCall
	case "CREATE":
		return FrameCreate
	case "CREATE2":
		return FrameCreate2
	}
	return FrameCall
}

// DecodedArgument describes one decoded call argument in declaration order.
type DecodedArgument struct {
	// Name describes the parameter name, or a positional placeholder when the ABI does not
	// name it.
	Name string

	// TypeName describes the canonical ABI type of the parameter.
	TypeName string

	// Value describes the decoded Go value, or nil when the value could not be recovered
	// (it then displays as "?").
	Value any
}

// CallFrame describes one node of the reconstructed call tree. Frames are identified by
// their position in the tree and their step interval, never by contract address, so
// reentrant calls to the same contract produce distinct frames.
type CallFrame struct {
	// Kind describes how the frame was entered.
	Kind FrameKind

	// ContractAddress describes the address whose code executes in this frame. For
	// delegatecalls this is the code contract, not the storage context.
	ContractAddress common.Address

	// Contract describes the resolved registry entry for ContractAddress, or nil when the
	// address is not registered. Unresolved frames keep bytecode-level facts only.
	Contract *contracts.Contract

	// ContractName describes the display name of the executing contract. Empty when the
	// address is unresolved.
	ContractName string

	// Environment describes which instruction listing symbolicates this frame's steps.
	Environment ethdebug.Environment

	// Function describes the resolved function name, when one was resolved from a selector
	// or a declaration site. Empty otherwise.
	Function string

	// Selector describes the 4-byte function selector, when known.
	Selector []byte

	// EntryStep describes the index of the first step executed within the frame.
	EntryStep int

	// ExitStep describes the index of the step which terminated the frame, or -1 when the
	// trace ended before the frame closed.
	ExitStep int

	// Depth describes the node-reported call depth of the frame's scope. Internal frames
	// share their enclosing scope's depth.
	Depth int

	// GasAtEntry describes the gas available when the frame was entered.
	GasAtEntry uint64

	// GasUsed describes the gas consumed by the frame, valid once it has terminated.
	GasUsed uint64

	// Source describes the resolved source location of the frame's significant site: the
	// declaration site for internal frames, the call site for external frames. Nil when
	// unresolved.
	Source *ethdebug.SourceLocation

	// CallValue describes the ether value transferred into the frame, when the entering
	// opcode carries one.
	CallValue *big.Int

	// Input describes the raw input of the frame: calldata for calls, init code for
	// creations. Nil for internal frames, whose arguments pass on the stack.
	Input []byte

	// Output describes the raw data returned by the frame. Nil until it returns.
	Output []byte

	// Args describes the decoded arguments in declaration order. Empty when nothing could
	// be decoded; individual values may be nil when only some were recoverable.
	Args []DecodedArgument

	// Children describes the frames entered directly from this frame, in call order.
	Children []*CallFrame

	// Parent describes the frame this one was entered from. Nil on the root.
	Parent *CallFrame

	// Reverted indicates the frame failed, either observed directly or inferred from the
	// transaction outcome.
	Reverted bool

	// RevertObserved indicates this frame itself executed the reverting instruction.
	// Ancestors unwound by that revert have Reverted set with RevertObserved false.
	RevertObserved bool

	// RevertData describes the raw revert payload captured at the reverting instruction.
	RevertData []byte

	// RevertReason describes the decoded revert reason, when the payload decoded to one.
	RevertReason string

	// VMError describes a node-reported failure (e.g. out of gas) that terminated the
	// frame without a return-class instruction.
	VMError string

	// Truncated indicates the trace ended while this frame was still open.
	Truncated bool
}

// Terminated indicates whether the frame was closed by the trace, as opposed to being cut
// off by truncation.
func (f *CallFrame) Terminated() bool {
	return f.ExitStep >= 0
}

// RevertInferred indicates the frame is marked reverted only because the transaction failed
// and the failure unwound through it, without this frame executing a revert itself.
func (f *CallFrame) RevertInferred() bool {
	return f.Reverted && !f.RevertObserved
}

// DisplayName returns the frame's qualified name for rendering: Contract::function, falling
// back to the contract address when unresolved.
func (f *CallFrame) DisplayName() string {
	name := f.ContractName
	if name == "" {
		name = f.ContractAddress.String()
	}
	if f.Function == "" {
		return name
	}
	return name + "::" + f.Function
}

// Visit walks the frame and its descendants in pre-order.
func (f *CallFrame) Visit(visit func(*CallFrame)) {
	visit(f)
	for _, child := range f.Children {
		child.Visit(visit)
	}
}

// contains indicates whether the step index falls within the frame's interval. Open frames
// extend to the end of the trace.
func (f *CallFrame) contains(step int) bool {
	if step < f.EntryStep {
		return false
	}
	return f.ExitStep < 0 || step <= f.ExitStep
}

// PathAt returns the chain of frames active at the given step index, from this frame down
// to the innermost, or nil when the step falls outside this frame. Sibling intervals are
// disjoint, so at most one child continues the chain.
func (f *CallFrame) PathAt(step int) []*CallFrame {
	if !f.contains(step) {
		return nil
	}
	path := []*CallFrame{f}
	for _, child := range f.Children {
		if childPath := child.PathAt(step); childPath != nil {
			return append(path, childPath...)
		}
	}
	return path
}

// FrameAt returns the innermost frame active at the given step index, or nil when the step
// falls outside this frame.
func (f *CallFrame) FrameAt(step int) *CallFrame {
	path := f.PathAt(step)
	if len(path) == 0 {
		return nil
	}
	return path[len(path)-1]
}
