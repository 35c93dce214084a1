package session

import (
	"fmt"
	"strings"

	"github.com/ariadne-eth/ariadne/ethdebug"
)

// Breakpoint describes one registered stop condition: either a program counter within the entry
// contract's code, or a source file position resolved against the metadata of whichever contract is
// executing.
type Breakpoint struct {
	// ID describes the session-unique identifier used to clear the breakpoint.
	ID int

	// PC describes the program counter to stop at. Only meaningful when HasPC is set.
	PC    uint64
	HasPC bool

	// File and Line describe the source position to stop at. File matches by path suffix, so
	// "Counter.sol:12" hits regardless of how the metadata qualifies the path.
	File string
	Line int
}

// String returns the display form of the breakpoint's condition.
func (b *Breakpoint) String() string {
	if b.HasPC {
		return fmt.Sprintf("pc %d", b.PC)
	}
	return fmt.Sprintf("%v:%d", b.File, b.Line)
}

// matches reports whether the breakpoint fires at the given program counter and resolved source
// location. The location may be nil for unsymbolicated positions, which only pc breakpoints can hit.
func (b *Breakpoint) matches(pc uint64, location *ethdebug.SourceLocation) bool {
	if b.HasPC {
		return pc == b.PC
	}
	if location == nil || location.File == nil {
		return false
	}
	if location.Line != b.Line {
		return false
	}
	return location.File.Path == b.File || strings.HasSuffix(location.File.Path, "/"+b.File) || strings.HasSuffix(location.File.Path, b.File)
}
