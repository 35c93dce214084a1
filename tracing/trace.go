package tracing

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionTrace bundles the flat instruction trace of one transaction together with the
// transaction facts needed to seed and finalize the call tree. It is assembled by the node
// layer (or synthesized by tests) and read-only afterward.
type TransactionTrace struct {
	// TxHash describes the traced transaction's hash. Zero for simulated calls.
	TxHash common.Hash

	// From describes the transaction sender.
	From common.Address

	// To describes the called contract, or nil for contract-creation transactions.
	To *common.Address

	// ContractAddress describes the address of the contract created by the transaction,
	// when it created one.
	ContractAddress *common.Address

	// Input describes the transaction calldata, or the init code for creations.
	Input []byte

	// Output describes the final return data of the transaction: return values on success,
	// the revert payload on failure.
	Output []byte

	// Value describes the ether value sent with the transaction.
	Value *big.Int

	// Failed indicates whether the transaction reverted or otherwise failed overall.
	Failed bool

	// GasUsed describes the receipt-reported gas consumption of the transaction.
	GasUsed uint64

	// Steps describes the ordered executed instructions.
	Steps []*ExecutionStep

	// Truncated indicates the node or a step cap cut the trace short of the transaction's
	// natural end.
	Truncated bool
}

// IsCreation indicates whether the trace describes a contract-creation transaction, which
// executes the creation environment of its bytecode.
func (t *TransactionTrace) IsCreation() bool {
	return t.To == nil || *t.To == (common.Address{})
}

// EntryAddress returns the address whose code the trace entered first: the called contract,
// or the created contract's address for creations when known.
func (t *TransactionTrace) EntryAddress() common.Address {
	if !t.IsCreation() {
		return *t.To
	}
	if t.ContractAddress != nil {
		return *t.ContractAddress
	}
	return common.Address{}
}
