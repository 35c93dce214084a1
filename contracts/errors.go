package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// UnresolvedAddressError indicates a call target has no registered debug metadata. It is
// soft: frames for the address render with bytecode-level facts only, never a guess.
type UnresolvedAddressError struct {
	// Address is the contract address that could not be resolved.
	Address common.Address
}

func (e *UnresolvedAddressError) Error() string {
	return fmt.Sprintf("no debug metadata registered for address %v", e.Address.String())
}
