package abiutils

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// EncodeABIArgumentsToString renders decoded argument values in the same literal syntax
// the parser accepts: strings quoted, tuples parenthesized, arrays bracketed. The result
// is used when displaying call frames and decoded return data.
func EncodeABIArgumentsToString(inputs abi.Arguments, values []any) (string, error) {
	if len(values) != len(inputs) {
		return "", errors.Errorf("expected %d value(s) to render, got %d", len(inputs), len(values))
	}
	displayed := make([]string, len(values))
	for i := range values {
		text, err := EncodeABIArgumentToString(&inputs[i].Type, values[i])
		if err != nil {
			return "", err
		}
		displayed[i] = text
	}
	return strings.Join(displayed, ", "), nil
}

// EncodeABIArgumentToString renders a single decoded value for its ABI type.
func EncodeABIArgumentToString(argType *abi.Type, value any) (string, error) {
	switch argType.T {
	case abi.AddressTy:
		address, ok := value.(common.Address)
		if !ok {
			return "", errors.Errorf("expected an address value, got %T", value)
		}
		return address.String(), nil
	case abi.UintTy, abi.IntTy:
		return integerToString(value)
	case abi.BoolTy:
		return fmt.Sprintf("%v", value), nil
	case abi.StringTy:
		text, ok := value.(string)
		if !ok {
			return "", errors.Errorf("expected a string value, got %T", value)
		}
		return fmt.Sprintf("%q", text), nil
	case abi.BytesTy:
		data, ok := value.([]byte)
		if !ok {
			return "", errors.Errorf("expected a bytes value, got %T", value)
		}
		return "0x" + hex.EncodeToString(data), nil
	case abi.FixedBytesTy:
		reflected := reflect.ValueOf(value)
		if reflected.Kind() != reflect.Array {
			return "", errors.Errorf("expected a fixed bytes value, got %T", value)
		}
		data := make([]byte, reflected.Len())
		for i := 0; i < reflected.Len(); i++ {
			data[i] = byte(reflected.Index(i).Uint())
		}
		return "0x" + hex.EncodeToString(data), nil
	case abi.SliceTy, abi.ArrayTy:
		reflected := reflect.ValueOf(value)
		if reflected.Kind() != reflect.Slice && reflected.Kind() != reflect.Array {
			return "", errors.Errorf("expected an array value, got %T", value)
		}
		elements := make([]string, reflected.Len())
		for i := 0; i < reflected.Len(); i++ {
			text, err := EncodeABIArgumentToString(argType.Elem, reflected.Index(i).Interface())
			if err != nil {
				return "", err
			}
			elements[i] = text
		}
		return "[" + strings.Join(elements, ", ") + "]", nil
	case abi.TupleTy:
		// Decoded tuples surface as generated struct values, so components are read back
		// out through reflection in declaration order.
		reflected := reflect.ValueOf(value)
		if reflected.Kind() != reflect.Struct || reflected.NumField() < len(argType.TupleElems) {
			return "", errors.Errorf("expected a tuple value, got %T", value)
		}
		components := make([]string, len(argType.TupleElems))
		for i, elemType := range argType.TupleElems {
			text, err := EncodeABIArgumentToString(elemType, reflected.Field(i).Interface())
			if err != nil {
				return "", err
			}
			components[i] = text
		}
		return "(" + strings.Join(components, ", ") + ")", nil
	}
	return "", errors.Errorf("cannot render value of type %v", argType.String())
}

// integerToString renders any of the integer representations the decoder produces.
func integerToString(value any) (string, error) {
	switch v := value.(type) {
	case *big.Int:
		return v.String(), nil
	case uint8, uint16, uint32, uint64, int8, int16, int32, int64:
		return fmt.Sprintf("%d", v), nil
	}
	return "", errors.Errorf("expected an integer value, got %T", value)
}
