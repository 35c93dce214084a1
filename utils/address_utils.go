package utils

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// HexStringToAddress converts a hex string (with or without the "0x" prefix) to a common.Address. Returns the parsed
// address, or an error if one occurs during conversion.
func HexStringToAddress(s string) (*common.Address, error) {
	// Remove the 0x prefix and decode the hex string into a byte array
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, err
	}

	// Parse the bytes as an address and return them.
	address := common.Address{}
	address.SetBytes(b)
	return &address, nil
}

// HexStringsToAddresses converts hex strings (with or without the "0x" prefix) to common.Address objects. Returns the
// parsed addresses, or an error if one occurs during conversion.
func HexStringsToAddresses(strAddresses []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(strAddresses))
	for _, strAddress := range strAddresses {
		address, err := HexStringToAddress(strAddress)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, *address)
	}
	return addresses, nil
}
