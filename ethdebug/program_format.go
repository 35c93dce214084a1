package ethdebug

import (
	"encoding/hex"
	"encoding/json"
	"strings"
)

// The on-disk debug metadata for a contract consists of a compilation index (ethdebug.json) naming the compiler and
// the source files, plus one instruction listing per environment (<Name>_ethdebug.json for creation code,
// <Name>_ethdebug-runtime.json for runtime code). The structures below describe those files as the compiler emits
// them; parsing is deliberately lenient about optional sections so that older emitters remain loadable.

// compilationFile describes the top-level compilation index of a debug directory.
type compilationFile struct {
	// Compilation optionally nests the same fields one level down; some emitters wrap the index this way.
	Compilation *compilationFile `json:"compilation,omitempty"`

	// Sources describes the declared source files of the compilation.
	Sources []sourceDecl `json:"sources"`

	// Compiler optionally describes the emitting compiler.
	Compiler *compilerDecl `json:"compiler,omitempty"`
}

// sourceDecl describes one declared source file.
type sourceDecl struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// compilerDecl describes the compiler which produced the metadata.
type compilerDecl struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// programFile describes one instruction listing file.
type programFile struct {
	// Contract optionally names the contract the listing belongs to.
	Contract *struct {
		Name string `json:"name,omitempty"`
	} `json:"contract,omitempty"`

	// Environment optionally labels the listing as creation or runtime code.
	Environment string `json:"environment,omitempty"`

	// Instructions describes the ordered instruction entries of the listing.
	Instructions []instructionEntry `json:"instructions"`

	// Variables optionally describes variable location hints for the listing's environment.
	Variables []variableEntry `json:"variables,omitempty"`
}

// instructionEntry describes one instruction of a listing.
type instructionEntry struct {
	// Offset describes the program counter of the instruction.
	Offset uint64 `json:"offset"`

	// Operation describes the mnemonic and any push immediates.
	Operation *operationEntry `json:"operation,omitempty"`

	// Mnemonic is the flattened form some emitters use in place of Operation.
	Mnemonic  string   `json:"mnemonic,omitempty"`
	Arguments []string `json:"arguments,omitempty"`

	// Context optionally ties the instruction to a source range.
	Context *contextEntry `json:"context,omitempty"`
}

// operationEntry describes an instruction's mnemonic and immediate arguments.
type operationEntry struct {
	Mnemonic  string   `json:"mnemonic"`
	Arguments []string `json:"arguments,omitempty"`
}

// contextEntry describes an instruction's source context.
type contextEntry struct {
	Code *struct {
		Source *struct {
			ID int `json:"id"`
		} `json:"source,omitempty"`
		Range *rangeEntry `json:"range,omitempty"`
	} `json:"code,omitempty"`
	Range *rangeEntry `json:"range,omitempty"`
}

// rangeEntry describes a byte range within a source file.
type rangeEntry struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// variableEntry describes one variable location hint.
type variableEntry struct {
	Name     string      `json:"name"`
	Type     string      `json:"type,omitempty"`
	Location string      `json:"location"`
	Offset   uint64      `json:"offset"`
	Range    *pcRangeDef `json:"range,omitempty"`
}

// pcRangeDef describes the program counter validity range of a variable hint.
type pcRangeDef struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// mnemonic returns the instruction's mnemonic, preferring the nested operation form over the flattened one.
func (e *instructionEntry) mnemonic() string {
	if e.Operation != nil && e.Operation.Mnemonic != "" {
		return e.Operation.Mnemonic
	}
	return e.Mnemonic
}

// arguments returns the instruction's immediate arguments, preferring the nested operation form.
func (e *instructionEntry) arguments() []string {
	if e.Operation != nil && len(e.Operation.Arguments) > 0 {
		return e.Operation.Arguments
	}
	return e.Arguments
}

// sourceRef resolves the instruction's source reference, returning the source id and byte range. The range may
// appear either directly under the context or nested under the code section, depending on the emitter.
func (e *instructionEntry) sourceRef() (int, *rangeEntry, bool) {
	if e.Context == nil || e.Context.Code == nil || e.Context.Code.Source == nil {
		return 0, nil, false
	}
	r := e.Context.Range
	if r == nil {
		r = e.Context.Code.Range
	}
	if r == nil {
		return 0, nil, false
	}
	return e.Context.Code.Source.ID, r, true
}

// operandBytes decodes an instruction entry's immediate arguments into a single byte slice, or nil when the
// instruction carries no immediates.
func (e *instructionEntry) operandBytes() []byte {
	args := e.arguments()
	if len(args) == 0 {
		return nil
	}
	var operand []byte
	for _, arg := range args {
		trimmed := strings.TrimPrefix(arg, "0x")
		if len(trimmed)%2 == 1 {
			trimmed = "0" + trimmed
		}
		decoded, err := hex.DecodeString(trimmed)
		if err != nil {
			return nil
		}
		operand = append(operand, decoded...)
	}
	return operand
}

// parseCompilationFile unmarshals and flattens a compilation index file.
func parseCompilationFile(data []byte) (*compilationFile, error) {
	var parsed compilationFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	// Some emitters nest the index under a "compilation" key; flatten it.
	if len(parsed.Sources) == 0 && parsed.Compilation != nil {
		parsed.Compilation.Compilation = nil
		return parsed.Compilation, nil
	}
	return &parsed, nil
}

// parseProgramFile unmarshals an instruction listing file. Listings may either be a JSON object with an
// "instructions" key or a bare JSON array of instruction entries.
func parseProgramFile(data []byte) (*programFile, error) {
	var parsed programFile
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Instructions != nil {
		return &parsed, nil
	}

	var entries []instructionEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return &programFile{Instructions: entries}, nil
}
