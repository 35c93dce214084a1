package abiutils

import "fmt"

// TypeMismatchError indicates a literal parsed into a shape that cannot be encoded as the
// expected ABI type, such as a number supplied for an address parameter or a tuple with the
// wrong number of components.
type TypeMismatchError struct {
	// Literal is the offending input text.
	Literal string
	// ExpectedType is the canonical ABI type name the literal was parsed against.
	ExpectedType string
	// Reason describes the mismatch.
	Reason string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("value %q cannot be encoded as %v: %v", e.Literal, e.ExpectedType, e.Reason)
}

// MalformedLiteralError indicates the literal text itself could not be tokenized or parsed,
// independent of any target type, such as an unterminated string or an unbalanced bracket.
type MalformedLiteralError struct {
	// Literal is the offending input text.
	Literal string
	// Offset is the byte offset within Literal where parsing failed.
	Offset int
	// Reason describes the parse failure.
	Reason string
}

func (e *MalformedLiteralError) Error() string {
	return fmt.Sprintf("malformed literal %q at offset %d: %v", e.Literal, e.Offset, e.Reason)
}

// TruncatedDataError indicates ABI-encoded data ended before the values described by the
// type signature could be fully decoded.
type TruncatedDataError struct {
	// ExpectedType is the ABI type list the data was decoded against.
	ExpectedType string
	// Length is the number of bytes that were available.
	Length int
	// Err is the underlying decode error.
	Err error
}

func (e *TruncatedDataError) Error() string {
	return fmt.Sprintf("data truncated while decoding %v: %d bytes available: %v", e.ExpectedType, e.Length, e.Err)
}

func (e *TruncatedDataError) Unwrap() error {
	return e.Err
}
