package contracts

import (
	"bytes"
	"fmt"

	"github.com/ariadne-eth/ariadne/ethdebug"
	"github.com/ethereum/go-ethereum/common"
)

// Contract ties a deployed address to its loaded debug metadata.
type Contract struct {
	// Address is the deployed address the metadata was registered for.
	Address common.Address

	// Name is the contract name, either given explicitly or discovered from the metadata.
	Name string

	// DebugDir is the directory the debug metadata was loaded from.
	DebugDir string

	// Info holds the loaded debug metadata. It is shared and read-only; several addresses
	// may point at the same metadata when the same contract is deployed more than once.
	Info *ethdebug.ContractDebugInfo
}

func (c *Contract) String() string {
	return fmt.Sprintf("%v@%v", c.Name, c.Address.String())
}

// MatchesDeployedCode compares code fetched from a node against the contract's runtime
// instruction listing, ignoring the CBOR metadata suffix the compiler appends. The second
// return reports whether a comparison could be made at all; an unknown mnemonic in the
// listing or empty deployed code leaves the match undetermined.
func (c *Contract) MatchesDeployedCode(deployedCode []byte) (bool, bool) {
	if c.Info == nil {
		return false, false
	}
	reassembled := c.Info.Runtime.Bytecode()
	stripped := StripContractMetadata(deployedCode)
	if len(reassembled) == 0 || len(stripped) == 0 {
		return false, false
	}
	// The reassembled listing stops where the metadata suffix begins while the stripped
	// deployed code may retain a few trailing data bytes, so a prefix match either way
	// counts as agreement.
	return bytes.HasPrefix(stripped, reassembled) || bytes.HasPrefix(reassembled, stripped), true
}
