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

// The literal syntax mirrors how arguments are written at the call site: scalars as bare
// atoms ("100", "0xabc...", "true"), strings quoted, tuples parenthesized and arrays
// bracketed, e.g. `("Alice", 30)` or `[1, 2, 3]`. Parsing is driven by the expected ABI
// type, so the same literal text can produce different Go values for different signatures.

type tokenKind int

const (
	tokenAtom tokenKind = iota
	tokenString
	tokenOpenParen
	tokenCloseParen
	tokenOpenBracket
	tokenCloseBracket
	tokenComma
	tokenEnd
)

// token is one lexical element of a literal, with its starting offset for error reporting.
type token struct {
	kind   tokenKind
	text   string
	offset int
}

// tokenStream is a cursor over the tokens of a single literal.
type tokenStream struct {
	literal string
	tokens  []token
	pos     int
}

func (s *tokenStream) peek() token {
	if s.pos >= len(s.tokens) {
		return token{kind: tokenEnd, offset: len(s.literal)}
	}
	return s.tokens[s.pos]
}

func (s *tokenStream) next() token {
	t := s.peek()
	s.pos++
	return t
}

// tokenize splits a literal into tokens, resolving string escapes as it goes.
func tokenize(literal string) (*tokenStream, error) {
	var tokens []token
	for i := 0; i < len(literal); {
		c := literal[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokenOpenParen, text: "(", offset: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenCloseParen, text: ")", offset: i})
			i++
		case c == '[':
			tokens = append(tokens, token{kind: tokenOpenBracket, text: "[", offset: i})
			i++
		case c == ']':
			tokens = append(tokens, token{kind: tokenCloseBracket, text: "]", offset: i})
			i++
		case c == ',':
			tokens = append(tokens, token{kind: tokenComma, text: ",", offset: i})
			i++
		case c == '"' || c == '\'':
			text, end, err := scanString(literal, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString, text: text, offset: i})
			i = end
		default:
			start := i
			for i < len(literal) && !strings.ContainsRune(" \t\n\r()[],\"'", rune(literal[i])) {
				i++
			}
			tokens = append(tokens, token{kind: tokenAtom, text: literal[start:i], offset: start})
		}
	}
	return &tokenStream{literal: literal, tokens: tokens}, nil
}

// scanString reads a quoted string starting at index start, returning the unescaped
// contents and the index one past the closing quote.
func scanString(literal string, start int) (string, int, error) {
	quote := literal[start]
	var text strings.Builder
	for i := start + 1; i < len(literal); i++ {
		c := literal[i]
		switch c {
		case quote:
			return text.String(), i + 1, nil
		case '\\':
			if i+1 >= len(literal) {
				return "", 0, &MalformedLiteralError{Literal: literal, Offset: i, Reason: "dangling escape at end of string"}
			}
			i++
			switch literal[i] {
			case 'n':
				text.WriteByte('\n')
			case 't':
				text.WriteByte('\t')
			case 'r':
				text.WriteByte('\r')
			case '\\', '"', '\'':
				text.WriteByte(literal[i])
			default:
				return "", 0, &MalformedLiteralError{Literal: literal, Offset: i, Reason: fmt.Sprintf("unknown escape '\\%c'", literal[i])}
			}
		default:
			text.WriteByte(c)
		}
	}
	return "", 0, &MalformedLiteralError{Literal: literal, Offset: start, Reason: "unterminated string"}
}

// ParseLiteral parses one argument literal against its expected ABI type, returning a Go
// value suitable for ABI encoding.
func ParseLiteral(argType *abi.Type, literal string) (any, error) {
	// A bare top-level string argument is taken verbatim, so the shell word "Alice" works
	// without extra quoting. Quoting is still required inside tuples and arrays.
	if argType.T == abi.StringTy && !strings.HasPrefix(literal, "\"") && !strings.HasPrefix(literal, "'") {
		return literal, nil
	}

	stream, err := tokenize(literal)
	if err != nil {
		return nil, err
	}
	value, err := parseValue(literal, argType, stream)
	if err != nil {
		return nil, err
	}
	if trailing := stream.peek(); trailing.kind != tokenEnd {
		return nil, &MalformedLiteralError{Literal: literal, Offset: trailing.offset, Reason: "unexpected trailing text"}
	}
	return value, nil
}

// ParseLiterals parses one literal per method input, in order.
func ParseLiterals(inputs abi.Arguments, literals []string) ([]any, error) {
	if len(literals) != len(inputs) {
		return nil, errors.Errorf("expected %d argument(s), got %d", len(inputs), len(literals))
	}
	values := make([]any, len(literals))
	for i := range literals {
		value, err := ParseLiteral(&inputs[i].Type, literals[i])
		if err != nil {
			return nil, err
		}
		values[i] = value
	}
	return values, nil
}

// parseValue parses the next value from the stream according to the expected ABI type.
// Composite types recurse into their element and component types.
func parseValue(literal string, argType *abi.Type, stream *tokenStream) (any, error) {
	switch argType.T {
	case abi.TupleTy:
		return parseTuple(literal, argType, stream)
	case abi.SliceTy:
		return parseSlice(literal, argType, stream)
	case abi.ArrayTy:
		return parseArray(literal, argType, stream)
	}

	t := stream.next()
	switch t.kind {
	case tokenString:
		if argType.T != abi.StringTy {
			return nil, &TypeMismatchError{Literal: t.text, ExpectedType: argType.String(), Reason: "got a string literal"}
		}
		return t.text, nil
	case tokenAtom:
		return parseScalarAtom(t.text, argType)
	case tokenEnd:
		return nil, &MalformedLiteralError{Literal: literal, Offset: t.offset, Reason: fmt.Sprintf("expected a %v value", argType.String())}
	default:
		return nil, &TypeMismatchError{Literal: literal, ExpectedType: argType.String(), Reason: fmt.Sprintf("unexpected %q", t.text)}
	}
}

// parseScalarAtom converts a bare atom into the Go representation of a scalar ABI type.
func parseScalarAtom(atom string, argType *abi.Type) (any, error) {
	switch argType.T {
	case abi.AddressTy:
		if !common.IsHexAddress(atom) {
			return nil, &TypeMismatchError{Literal: atom, ExpectedType: argType.String(), Reason: "not a 20-byte hex address"}
		}
		return common.HexToAddress(atom), nil
	case abi.UintTy:
		return parseIntegerAtom(atom, argType, false)
	case abi.IntTy:
		return parseIntegerAtom(atom, argType, true)
	case abi.BoolTy:
		switch atom {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, &TypeMismatchError{Literal: atom, ExpectedType: argType.String(), Reason: "expected true or false"}
	case abi.StringTy:
		return nil, &TypeMismatchError{Literal: atom, ExpectedType: argType.String(), Reason: "string values must be quoted here"}
	case abi.BytesTy:
		b, err := decodeHexAtom(atom)
		if err != nil {
			return nil, &TypeMismatchError{Literal: atom, ExpectedType: argType.String(), Reason: err.Error()}
		}
		return b, nil
	case abi.FixedBytesTy:
		b, err := decodeHexAtom(atom)
		if err != nil {
			return nil, &TypeMismatchError{Literal: atom, ExpectedType: argType.String(), Reason: err.Error()}
		}
		if len(b) != argType.Size {
			return nil, &TypeMismatchError{Literal: atom, ExpectedType: argType.String(), Reason: fmt.Sprintf("expected %d bytes, got %d", argType.Size, len(b))}
		}
		// Fixed bytes encode as a Go array, which has to be built through reflection.
		array := reflect.Indirect(reflect.New(argType.GetType()))
		for i := 0; i < len(b); i++ {
			array.Index(i).Set(reflect.ValueOf(b[i]))
		}
		return array.Interface(), nil
	}
	return nil, &TypeMismatchError{Literal: atom, ExpectedType: argType.String(), Reason: "unsupported parameter type"}
}

// parseIntegerAtom parses a decimal or 0x-prefixed integer atom, range-checks it against
// the type's bit size and converts it to the Go type the ABI encoder expects.
func parseIntegerAtom(atom string, argType *abi.Type, signed bool) (any, error) {
	value, ok := new(big.Int).SetString(atom, 0)
	if !ok {
		return nil, &TypeMismatchError{Literal: atom, ExpectedType: argType.String(), Reason: "not an integer"}
	}
	if !signed && value.Sign() < 0 {
		return nil, &TypeMismatchError{Literal: atom, ExpectedType: argType.String(), Reason: "negative value for unsigned type"}
	}
	if !fitsBitSize(value, argType.Size, signed) {
		return nil, &TypeMismatchError{Literal: atom, ExpectedType: argType.String(), Reason: fmt.Sprintf("out of range for %d-bit type", argType.Size)}
	}

	// The ABI encoder wants sized native integers for <=64-bit types and *big.Int above.
	if signed {
		switch argType.Size {
		case 8:
			return int8(value.Int64()), nil
		case 16:
			return int16(value.Int64()), nil
		case 32:
			return int32(value.Int64()), nil
		case 64:
			return value.Int64(), nil
		}
	} else {
		switch argType.Size {
		case 8:
			return uint8(value.Uint64()), nil
		case 16:
			return uint16(value.Uint64()), nil
		case 32:
			return uint32(value.Uint64()), nil
		case 64:
			return value.Uint64(), nil
		}
	}
	return value, nil
}

// fitsBitSize reports whether value is representable in a bits-wide integer type.
func fitsBitSize(value *big.Int, bits int, signed bool) bool {
	if !signed {
		return value.BitLen() <= bits
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	if value.Sign() < 0 {
		return value.CmpAbs(limit) <= 0
	}
	return value.Cmp(limit) < 0
}

// decodeHexAtom decodes a hex atom with or without a 0x prefix.
func decodeHexAtom(atom string) ([]byte, error) {
	trimmed := strings.TrimPrefix(atom, "0x")
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("not valid hex data")
	}
	return b, nil
}

// parseTuple parses a parenthesized component list into the struct type backing a tuple.
func parseTuple(literal string, argType *abi.Type, stream *tokenStream) (any, error) {
	if t := stream.next(); t.kind != tokenOpenParen {
		return nil, &TypeMismatchError{Literal: literal, ExpectedType: argType.String(), Reason: "expected a parenthesized tuple"}
	}

	// Tuples map onto generated struct types, populated field by field through reflection.
	tuple := reflect.Indirect(reflect.New(argType.GetType()))
	for i, elemType := range argType.TupleElems {
		if i > 0 {
			if t := stream.next(); t.kind != tokenComma {
				return nil, &TypeMismatchError{Literal: literal, ExpectedType: argType.String(), Reason: fmt.Sprintf("expected %d components", len(argType.TupleElems))}
			}
		}
		value, err := parseValue(literal, elemType, stream)
		if err != nil {
			return nil, err
		}
		tuple.Field(i).Set(reflect.ValueOf(value))
	}
	if t := stream.next(); t.kind != tokenCloseParen {
		return nil, &TypeMismatchError{Literal: literal, ExpectedType: argType.String(), Reason: fmt.Sprintf("expected %d components", len(argType.TupleElems))}
	}
	return tuple.Interface(), nil
}

// parseSlice parses a bracketed element list into a dynamically sized array.
func parseSlice(literal string, argType *abi.Type, stream *tokenStream) (any, error) {
	elements, err := parseElementList(literal, argType, stream)
	if err != nil {
		return nil, err
	}
	slice := reflect.MakeSlice(argType.GetType(), len(elements), len(elements))
	for i, element := range elements {
		slice.Index(i).Set(reflect.ValueOf(element))
	}
	return slice.Interface(), nil
}

// parseArray parses a bracketed element list into a fixed-size array, enforcing the
// declared length.
func parseArray(literal string, argType *abi.Type, stream *tokenStream) (any, error) {
	elements, err := parseElementList(literal, argType, stream)
	if err != nil {
		return nil, err
	}
	if len(elements) != argType.Size {
		return nil, &TypeMismatchError{Literal: literal, ExpectedType: argType.String(), Reason: fmt.Sprintf("expected %d elements, got %d", argType.Size, len(elements))}
	}
	array := reflect.Indirect(reflect.New(argType.GetType()))
	for i, element := range elements {
		array.Index(i).Set(reflect.ValueOf(element))
	}
	return array.Interface(), nil
}

// parseElementList parses "[a, b, c]" against the array's element type.
func parseElementList(literal string, argType *abi.Type, stream *tokenStream) ([]any, error) {
	if t := stream.next(); t.kind != tokenOpenBracket {
		return nil, &TypeMismatchError{Literal: literal, ExpectedType: argType.String(), Reason: "expected a bracketed array"}
	}
	var elements []any
	for {
		if stream.peek().kind == tokenCloseBracket {
			stream.next()
			return elements, nil
		}
		if len(elements) > 0 {
			if t := stream.next(); t.kind != tokenComma {
				return nil, &MalformedLiteralError{Literal: literal, Offset: t.offset, Reason: "expected ',' or ']' in array"}
			}
		}
		element, err := parseValue(literal, argType.Elem, stream)
		if err != nil {
			return nil, err
		}
		elements = append(elements, element)
	}
}
