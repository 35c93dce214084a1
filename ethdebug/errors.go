package ethdebug

import "fmt"

// MetadataFormatError indicates that a contract's debug metadata was missing a required file or did not match the
// schema the parser understands. It is fatal for the affected contract's symbolication only, never for the whole
// trace analysis.
type MetadataFormatError struct {
	// Path describes the file or directory which failed to parse.
	Path string

	// Reason describes why the metadata could not be parsed.
	Reason string

	// Err describes the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *MetadataFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid debug metadata at %v: %v: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid debug metadata at %v: %v", e.Path, e.Reason)
}

// Unwrap returns the underlying error, if any.
func (e *MetadataFormatError) Unwrap() error {
	return e.Err
}

// MissingSourceError indicates that an instruction referenced a source identifier which was not declared in the
// compilation's source list. This is a soft error: the instruction keeps its position but loses its source span,
// since optimizer output may reference synthetic sources.
type MissingSourceError struct {
	// SourceID describes the undeclared source identifier.
	SourceID int

	// PC describes the program counter of the instruction carrying the reference.
	PC uint64
}

// Error implements the error interface.
func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("instruction at pc=%d references undeclared source id %d", e.PC, e.SourceID)
}
