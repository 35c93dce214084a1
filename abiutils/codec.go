package abiutils

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pkg/errors"
)

// EncodeArguments ABI-encodes parsed argument values against their argument list,
// producing the head/tail layout the standard encoding defines.
func EncodeArguments(inputs abi.Arguments, values []any) ([]byte, error) {
	encoded, err := inputs.Pack(values...)
	if err != nil {
		return nil, errors.WithMessage(err, "could not encode arguments")
	}
	return encoded, nil
}

// DecodeArguments decodes ABI-encoded data against an argument list. Data that ends
// before all described values are read yields a TruncatedDataError.
func DecodeArguments(inputs abi.Arguments, data []byte) ([]any, error) {
	values, err := inputs.Unpack(data)
	if err != nil {
		return nil, &TruncatedDataError{ExpectedType: typeListString(inputs), Length: len(data), Err: err}
	}
	return values, nil
}

// EncodeCallData builds complete calldata for a method invocation: the 4-byte selector
// followed by the encoded arguments.
func EncodeCallData(method *abi.Method, values []any) ([]byte, error) {
	encoded, err := EncodeArguments(method.Inputs, values)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, method.ID...), encoded...), nil
}

// typeListString renders an argument list's types as a parenthesized signature fragment.
func typeListString(inputs abi.Arguments) string {
	typeNames := make([]string, len(inputs))
	for i := range inputs {
		typeNames[i] = inputs[i].Type.String()
	}
	return "(" + strings.Join(typeNames, ",") + ")"
}
