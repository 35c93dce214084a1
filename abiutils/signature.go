package abiutils

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// ParseSignature parses a human-readable function signature such as
// "transfer(address,uint256)" or "submitCompany((string,(string,uint256)))" into an
// abi.Method whose inputs mirror the signature's type list. Tuple types are written as
// parenthesized type lists and may nest arbitrarily.
func ParseSignature(signature string) (*abi.Method, error) {
	signature = strings.TrimSpace(signature)
	openIndex := strings.Index(signature, "(")
	if openIndex <= 0 || !strings.HasSuffix(signature, ")") {
		return nil, &MalformedLiteralError{Literal: signature, Reason: "expected a signature of the form name(type,...)"}
	}
	name := signature[:openIndex]
	typeList := signature[openIndex+1 : len(signature)-1]

	// Build the input argument list from the comma-separated types.
	var inputs abi.Arguments
	for i, typeName := range splitTypeList(typeList) {
		argType, err := parseType(typeName)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, abi.Argument{Name: fmt.Sprintf("arg%d", i), Type: argType})
	}

	method := abi.NewMethod(name, name, abi.Function, "", false, false, inputs, nil)
	return &method, nil
}

// ComputeSelector returns the 4-byte function selector for a canonical signature string.
func ComputeSelector(canonicalSignature string) []byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(canonicalSignature))
	return hash.Sum(nil)[:4]
}

// parseType resolves a single signature type name into an abi.Type. Tuples are translated
// into component lists the underlying ABI package understands.
func parseType(typeName string) (abi.Type, error) {
	marshaling, err := typeToMarshaling(typeName, "")
	if err != nil {
		return abi.Type{}, err
	}
	argType, err := abi.NewType(marshaling.Type, "", marshaling.Components)
	if err != nil {
		return abi.Type{}, errors.WithMessagef(err, "could not resolve type %q", typeName)
	}
	return argType, nil
}

// typeToMarshaling recursively converts a signature type name into the marshaling structure
// used to construct tuple types. Scalar types pass through unchanged.
func typeToMarshaling(typeName string, fieldName string) (abi.ArgumentMarshaling, error) {
	typeName = strings.TrimSpace(typeName)
	if fieldName == "" {
		fieldName = "value"
	}
	if typeName == "" {
		return abi.ArgumentMarshaling{}, &MalformedLiteralError{Literal: typeName, Reason: "empty type name"}
	}

	// Tuples are written as parenthesized type lists, optionally suffixed with array
	// brackets, e.g. "(string,uint256)[]".
	if strings.HasPrefix(typeName, "(") {
		closeIndex := matchingParen(typeName)
		if closeIndex < 0 {
			return abi.ArgumentMarshaling{}, &MalformedLiteralError{Literal: typeName, Reason: "unbalanced parentheses in tuple type"}
		}
		arraySuffix := typeName[closeIndex+1:]
		if arraySuffix != "" && !strings.HasPrefix(arraySuffix, "[") {
			return abi.ArgumentMarshaling{}, &MalformedLiteralError{Literal: typeName, Reason: "unexpected text after tuple type"}
		}

		var components []abi.ArgumentMarshaling
		for i, componentType := range splitTypeList(typeName[1:closeIndex]) {
			component, err := typeToMarshaling(componentType, fmt.Sprintf("field%d", i))
			if err != nil {
				return abi.ArgumentMarshaling{}, err
			}
			components = append(components, component)
		}
		if len(components) == 0 {
			return abi.ArgumentMarshaling{}, &MalformedLiteralError{Literal: typeName, Reason: "tuple type has no components"}
		}
		return abi.ArgumentMarshaling{Name: fieldName, Type: "tuple" + arraySuffix, Components: components}, nil
	}

	return abi.ArgumentMarshaling{Name: fieldName, Type: canonicalScalarType(typeName)}, nil
}

// canonicalScalarType expands the unsized "uint" and "int" aliases to their canonical
// 256-bit forms, including in array suffixes, so selectors hash the canonical signature.
func canonicalScalarType(typeName string) string {
	base, suffix := typeName, ""
	if bracket := strings.Index(typeName, "["); bracket >= 0 {
		base, suffix = typeName[:bracket], typeName[bracket:]
	}
	switch base {
	case "uint":
		base = "uint256"
	case "int":
		base = "int256"
	}
	return base + suffix
}

// splitTypeList splits a comma-separated type list at depth zero, so nested tuple and
// array types survive intact.
func splitTypeList(typeList string) []string {
	var (
		split   []string
		depth   int
		current strings.Builder
	)
	for _, c := range typeList {
		switch c {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				split = append(split, strings.TrimSpace(current.String()))
				current.Reset()
				continue
			}
		}
		current.WriteRune(c)
	}
	if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
		split = append(split, trimmed)
	}
	return split
}

// matchingParen returns the index of the parenthesis closing the one opening at index 0,
// or -1 when unbalanced.
func matchingParen(s string) int {
	depth := 0
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
