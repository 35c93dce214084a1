package ethdebug

import (
	"bytes"
	"regexp"
	"sort"
)

// SourceFile describes a single source file referenced by a contract's debug metadata, along with the line index
// used to resolve byte offsets into line/column positions.
type SourceFile struct {
	// ID describes the source identifier used by instruction source contexts to reference this file.
	ID int

	// Path describes the file path of the source file, as declared by the compilation metadata.
	Path string

	// Contents describes the raw contents of the source file.
	Contents []byte

	// Lines describes the parsed lines of the source file, in order of appearance.
	Lines []*SourceLine

	// CumulativeOffsetByLine describes the byte offset at which each line starts. It is used to resolve a byte
	// offset into a line number with a binary search.
	CumulativeOffsetByLine []int

	// functionDecls describes every function or constructor declaration found in the file, ordered by offset.
	functionDecls []functionDecl
}

// SourceLine describes a single line of a source file and its byte offset extent.
type SourceLine struct {
	// Start describes the byte offset at which the line starts, inclusive.
	Start int

	// End describes the byte offset at which the line ends, exclusive. This includes the trailing newline.
	End int

	// Contents describes the raw contents of the line, without the trailing newline.
	Contents []byte
}

// functionDecl describes one function declaration discovered in a source file.
type functionDecl struct {
	// name describes the declared function name. Constructors use the conventional "constructor" name.
	name string

	// offset describes the byte offset of the declaration keyword within the file.
	offset int
}

// functionDeclPattern matches solidity function and constructor declarations. Capture group 1 holds the function
// name when the declaration is a regular function.
var functionDeclPattern = regexp.MustCompile(`\b(?:function\s+([A-Za-z_$][A-Za-z0-9_$]*)|constructor)\s*\(`)

// NewSourceFile parses the provided file contents into a SourceFile, building the line index and the function
// declaration index up front so that later lookups do not rescan the text.
func NewSourceFile(id int, path string, contents []byte) *SourceFile {
	lines, cumulativeOffset := parseSourceLines(contents)
	sourceFile := &SourceFile{
		ID:                     id,
		Path:                   path,
		Contents:               contents,
		Lines:                  lines,
		CumulativeOffsetByLine: cumulativeOffset,
	}

	// Index every function declaration in the file.
	for _, match := range functionDeclPattern.FindAllSubmatchIndex(contents, -1) {
		name := "constructor"
		if match[2] != -1 {
			name = string(contents[match[2]:match[3]])
		}
		sourceFile.functionDecls = append(sourceFile.functionDecls, functionDecl{name: name, offset: match[0]})
	}
	return sourceFile
}

// parseSourceLines splits the given source code on new line characters and records each line's start/end offsets.
// Returns the parsed lines and the cumulative start offset of each line.
func parseSourceLines(sourceCode []byte) ([]*SourceLine, []int) {
	// Create our lines and a variable to track where our current line start offset is.
	var lines []*SourceLine
	var lineStart int
	var cumulativeOffset []int

	// Split the source code on new line characters
	sourceCodeLinesBytes := bytes.Split(sourceCode, []byte("\n"))

	// For each source code line, initialize a struct that defines its start/end offsets and contents.
	for i := 0; i < len(sourceCodeLinesBytes); i++ {
		lineEnd := lineStart + len(sourceCodeLinesBytes[i]) + 1
		lines = append(lines, &SourceLine{
			Start:    lineStart,
			End:      lineEnd,
			Contents: sourceCodeLinesBytes[i],
		})
		cumulativeOffset = append(cumulativeOffset, lineStart)
		lineStart = lineEnd
	}

	// Return the resulting lines
	return lines, cumulativeOffset
}

// Position resolves a byte offset into a 1-based line and column pair. Offsets past the end of the file resolve to
// the final line.
func (s *SourceFile) Position(offset int) (int, int) {
	if len(s.Lines) == 0 {
		return 1, 1
	}

	// Search for the first line which starts beyond the offset. The search result is the 1-based line number since
	// line indices are zero based.
	line := sort.Search(len(s.CumulativeOffsetByLine), func(i int) bool {
		return s.CumulativeOffsetByLine[i] > offset
	})
	if line == 0 {
		line = 1
	}
	column := offset - s.Lines[line-1].Start + 1
	if column < 1 {
		column = 1
	}
	return line, column
}

// LineContents returns the contents of the given 1-based line number, or nil if the line does not exist.
func (s *SourceFile) LineContents(line int) []byte {
	if line < 1 || line > len(s.Lines) {
		return nil
	}
	return s.Lines[line-1].Contents
}

// LineCount returns the number of lines in the file.
func (s *SourceFile) LineCount() int {
	return len(s.Lines)
}

// declaredFunctionIn returns the name of the function declared at the start of the [offset, offset+length) range,
// if any. A declaration "starts" the range when only whitespace separates the range start from the declaration
// keyword, which is how compiler-emitted spans reference function definitions.
func (s *SourceFile) declaredFunctionIn(offset int, length int) (string, bool) {
	end := offset + length
	if end > len(s.Contents) {
		end = len(s.Contents)
	}
	if offset < 0 || offset >= end {
		return "", false
	}
	for _, decl := range s.functionDecls {
		if decl.offset < offset {
			continue
		}
		if decl.offset >= end {
			break
		}
		// Reject declarations preceded by anything beyond whitespace; those spans merely contain a nested
		// declaration rather than denoting one.
		if len(bytes.TrimSpace(s.Contents[offset:decl.offset])) == 0 {
			return decl.name, true
		}
		break
	}
	return "", false
}
