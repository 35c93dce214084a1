package abiutils

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// An enum is defined below providing all `Panic(uint)` error codes returned in return data
// when the VM encounters an error in some cases.
// Reference: https://docs.soliditylang.org/en/latest/control-structures.html#panic-via-assert-and-error-via-require
const (
	PanicCodeCompilerInserted              = 0x00
	PanicCodeAssertFailed                  = 0x01
	PanicCodeArithmeticUnderOverflow       = 0x11
	PanicCodeDivideByZero                  = 0x12
	PanicCodeEnumTypeConversionOutOfBounds = 0x21
	PanicCodeIncorrectStorageAccess        = 0x22
	PanicCodePopEmptyArray                 = 0x31
	PanicCodeOutOfBoundsArrayAccess        = 0x32
	PanicCodeAllocateTooMuchMemory         = 0x41
	PanicCodeCallUninitializedVariable     = 0x51
)

// The two revert payload shapes the compiler itself emits are Error(string) for require
// messages and Panic(uint256) for checked failures. Their method stubs are built once so
// selector matching and unpacking reuse the ABI machinery.
var (
	errorStringMethod = newRevertMethod("Error", "string")
	panicCodeMethod   = newRevertMethod("Panic", "uint256")
)

func newRevertMethod(name string, argTypeName string) abi.Method {
	argType, _ := abi.NewType(argTypeName, "", nil)
	return abi.NewMethod(name, name, abi.Function, "", false, false, []abi.Argument{
		{Name: "", Type: argType, Indexed: false},
	}, abi.Arguments{})
}

// GetSolidityPanicCode obtains a panic code from revert return data, if possible.
// If the return data is not representative of a Panic, then nil is returned.
func GetSolidityPanicCode(returnData []byte) *big.Int {
	// Verify our return data fits exactly the selector + uint256.
	if len(returnData) != 4+32 || !bytes.Equal(returnData[:4], panicCodeMethod.ID) {
		return nil
	}
	values, err := panicCodeMethod.Inputs.Unpack(returnData[4:])
	if err != nil || len(values) == 0 {
		return nil
	}
	return values[0].(*big.Int)
}

// GetSolidityRevertErrorString obtains an error message from revert return data, if
// possible. If the return data is not representative of an Error(string), then nil is
// returned.
func GetSolidityRevertErrorString(returnData []byte) *string {
	// Verify our return data fits the selector + additional data.
	if len(returnData) <= 4 || !bytes.Equal(returnData[:4], errorStringMethod.ID) {
		return nil
	}
	values, err := errorStringMethod.Inputs.Unpack(returnData[4:])
	if err != nil || len(values) == 0 {
		return nil
	}
	errorMessage := values[0].(string)
	return &errorMessage
}

// GetSolidityCustomRevertError obtains a custom Solidity error from revert return data, if
// one was emitted and could be resolved against the contract's ABI. Returns the ABI error
// definition as well as its unpacked values, or nil outputs when no custom error matched.
func GetSolidityCustomRevertError(contractAbi *abi.ABI, returnData []byte) (*abi.Error, []any) {
	if contractAbi == nil || len(returnData) < 4 {
		return nil, nil
	}
	for _, abiError := range contractAbi.Errors {
		// If the data's leading selector value matches the ID of the error, return it.
		if bytes.Equal(abiError.ID.Bytes()[:4], returnData[:4]) {
			// Make a local copy to avoid taking a pointer of a loop variable.
			matchedCustomError := &abiError
			unpackedCustomErrorArgs, err := matchedCustomError.Inputs.Unpack(returnData[4:])
			if err == nil {
				return matchedCustomError, unpackedCustomErrorArgs
			}
		}
	}
	return nil, nil
}

// GetPanicReason will take in a panic code as an uint64 and will return the string reason
// behind that panic code. For example, if panic code is PanicCodeAssertFailed, then
// "assertion failed" is returned.
func GetPanicReason(panicCode uint64) string {
	switch panicCode {
	case PanicCodeCompilerInserted:
		return "compiler inserted panic"
	case PanicCodeAssertFailed:
		return "assertion failed"
	case PanicCodeArithmeticUnderOverflow:
		return "arithmetic underflow/overflow"
	case PanicCodeDivideByZero:
		return "division by zero"
	case PanicCodeEnumTypeConversionOutOfBounds:
		return "enum access out of bounds"
	case PanicCodeIncorrectStorageAccess:
		return "incorrect storage access"
	case PanicCodePopEmptyArray:
		return "pop on empty array"
	case PanicCodeOutOfBoundsArrayAccess:
		return "out of bounds array access"
	case PanicCodeAllocateTooMuchMemory:
		return "overallocation of memory"
	case PanicCodeCallUninitializedVariable:
		return "call on uninitialized variable"
	default:
		return fmt.Sprintf("unknown panic code(%v)", panicCode)
	}
}

// FormatRevertReason renders the most specific description available for a revert
// payload: a require message, a panic reason, a resolved custom error with its arguments,
// or the raw bytes when nothing matches.
func FormatRevertReason(contractAbi *abi.ABI, returnData []byte) string {
	if errorMessage := GetSolidityRevertErrorString(returnData); errorMessage != nil {
		return *errorMessage
	}
	if panicCode := GetSolidityPanicCode(returnData); panicCode != nil {
		return "panic: " + GetPanicReason(panicCode.Uint64())
	}
	if matchedCustomError, unpackedArgs := GetSolidityCustomRevertError(contractAbi, returnData); matchedCustomError != nil {
		argsText, err := EncodeABIArgumentsToString(matchedCustomError.Inputs, unpackedArgs)
		if err == nil {
			return fmt.Sprintf("%v(%v)", matchedCustomError.Name, argsText)
		}
		return matchedCustomError.Name
	}
	if len(returnData) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(returnData)
}
