package ethdebug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/ariadne-eth/ariadne/logging"
	"github.com/ariadne-eth/ariadne/utils"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"golang.org/x/exp/slices"
)

// CompilationIndexFilename describes the name of the compilation index file within a debug directory.
const CompilationIndexFilename = "ethdebug.json"

// minimumCompilerVersion describes the oldest solc release able to emit this metadata format.
var minimumCompilerVersion = semver.MustParse("0.8.29")

// Load reads the debug metadata directory and returns the debug info of the contract it describes. When the
// directory holds listings for several contracts, the alphabetically first one is loaded; use LoadContract to
// select one by name.
func Load(debugDir string) (*ContractDebugInfo, error) {
	return LoadContract(debugDir, "")
}

// LoadContract reads the debug metadata directory and returns the debug info for the named contract. An empty name
// selects the alphabetically first contract found. The returned structure is immutable; all source contexts are
// resolved eagerly here since repeated per-step lookups dominate the cost of a trace analysis.
func LoadContract(debugDir string, contractName string) (*ContractDebugInfo, error) {
	logger := logging.GlobalLogger.NewSubLogger("module", "ethdebug")

	// Parse the compilation index first; without it there is nothing to resolve sources against.
	indexPath := filepath.Join(debugDir, CompilationIndexFilename)
	indexData, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, &MetadataFormatError{Path: indexPath, Reason: "missing compilation index", Err: err}
	}
	index, err := parseCompilationFile(indexData)
	if err != nil {
		return nil, &MetadataFormatError{Path: indexPath, Reason: "unparseable compilation index", Err: err}
	}
	if len(index.Sources) == 0 {
		return nil, &MetadataFormatError{Path: indexPath, Reason: "compilation index declares no sources"}
	}

	// Gate on the declared compiler version when there is one. Older compilers emit a different format whose
	// listings would silently resolve to garbage positions.
	var compilerVersion *semver.Version
	if index.Compiler != nil && index.Compiler.Version != "" {
		compilerVersion, err = semver.NewVersion(normalizeVersion(index.Compiler.Version))
		if err != nil {
			logger.Warn("Could not parse the declared compiler version ", index.Compiler.Version)
		} else if compilerVersion.LessThan(minimumCompilerVersion) {
			return nil, &MetadataFormatError{
				Path:   indexPath,
				Reason: fmt.Sprintf("compiler %v is older than %v, which introduced this metadata format", compilerVersion, minimumCompilerVersion),
			}
		}
	}

	// Discover the contract name from the runtime listing filename if the caller did not pin one.
	if contractName == "" {
		contractName, err = discoverContractName(debugDir)
		if err != nil {
			return nil, err
		}
	}

	// Read every declared source file. Files which cannot be read degrade to span-less symbolication for the
	// instructions referencing them rather than failing the whole contract.
	sources := make(map[int]*SourceFile, len(index.Sources))
	for _, decl := range index.Sources {
		contents, readErr := readSourceFile(debugDir, decl.Path)
		if readErr != nil {
			logger.Warn("Could not read source file ", decl.Path, " referenced by ", contractName, readErr)
		}
		sources[decl.ID] = NewSourceFile(decl.ID, decl.Path, contents)
	}

	info := &ContractDebugInfo{
		Name:            contractName,
		DebugDir:        debugDir,
		CompilerVersion: compilerVersion,
		Sources:         sources,
	}

	// Parse both instruction listings. Both environments are part of the required metadata set.
	info.Creation, err = loadProgram(filepath.Join(debugDir, contractName+"_ethdebug.json"), EnvironmentCreation, sources, logger)
	if err != nil {
		return nil, err
	}
	info.Runtime, err = loadProgram(filepath.Join(debugDir, contractName+"_ethdebug-runtime.json"), EnvironmentRuntime, sources, logger)
	if err != nil {
		return nil, err
	}

	// An ABI artifact next to the metadata enables selector resolution and argument decoding. Its absence is not
	// an error; symbolication simply degrades to raw calldata.
	info.ABI = loadContractABI(debugDir, contractName)
	if info.ABI == nil {
		logger.Debug("No ABI artifact found for ", contractName, "; call arguments will stay raw")
	}

	return info, nil
}

// discoverContractName scans the debug directory for runtime instruction listings and returns the contract name of
// the alphabetically first one.
func discoverContractName(debugDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(debugDir, "*_ethdebug-runtime.json"))
	if err != nil || len(matches) == 0 {
		return "", &MetadataFormatError{Path: debugDir, Reason: "no runtime instruction listing found", Err: err}
	}
	sort.Strings(matches)
	base := filepath.Base(matches[0])
	return strings.TrimSuffix(base, "_ethdebug-runtime.json"), nil
}

// readSourceFile reads a declared source path, trying it as given first and then relative to the debug directory.
func readSourceFile(debugDir string, path string) ([]byte, error) {
	if contents, err := os.ReadFile(path); err == nil {
		return contents, nil
	}
	contents, err := os.ReadFile(filepath.Join(debugDir, path))
	if err != nil {
		return nil, err
	}
	return contents, nil
}

// loadProgram parses one instruction listing file into a Program, resolving each instruction's source context
// eagerly. Instructions referencing undeclared sources keep their position but lose their span.
func loadProgram(path string, environment Environment, sources map[int]*SourceFile, logger *logging.Logger) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &MetadataFormatError{Path: path, Reason: fmt.Sprintf("missing %v instruction listing", environment), Err: err}
	}
	file, err := parseProgramFile(data)
	if err != nil {
		return nil, &MetadataFormatError{Path: path, Reason: "unparseable instruction listing", Err: err}
	}

	program := &Program{
		Environment: environment,
		byPC:        make(map[uint64]*Instruction, len(file.Instructions)),
	}

	for i := range file.Instructions {
		entry := &file.Instructions[i]
		mnemonic := entry.mnemonic()
		if mnemonic == "" {
			continue
		}

		instruction := &Instruction{
			PC:      entry.Offset,
			Opcode:  mnemonic,
			Operand: entry.operandBytes(),
			GasCost: staticGasCost(mnemonic),
		}

		// Resolve the source context now rather than at lookup time.
		if sourceID, span, ok := entry.sourceRef(); ok {
			source := sources[sourceID]
			if source == nil {
				softErr := &MissingSourceError{SourceID: sourceID, PC: entry.Offset}
				logger.Debug("Dropping source span: ", softErr.Error())
			} else if source.Contents != nil {
				line, column := source.Position(span.Offset)
				instruction.Location = &SourceLocation{
					File:   source,
					Span:   SourceSpan{SourceID: sourceID, Offset: span.Offset, Length: span.Length},
					Line:   line,
					Column: column,
				}
			}
		}

		// A program counter may be listed more than once when expanded code shares a position. Keep the entry
		// with the innermost (shortest) span, as that one describes the position most precisely.
		if existing := program.byPC[instruction.PC]; existing != nil {
			if !spanNarrower(instruction, existing) {
				continue
			}
			for j, candidate := range program.Instructions {
				if candidate.PC == instruction.PC {
					program.Instructions[j] = instruction
					break
				}
			}
			program.byPC[instruction.PC] = instruction
			continue
		}

		program.Instructions = append(program.Instructions, instruction)
		program.byPC[instruction.PC] = instruction
	}

	// Listings are expected in program order, but sort defensively so downstream binary searches hold.
	slices.SortFunc(program.Instructions, func(a *Instruction, b *Instruction) int {
		return int(a.PC) - int(b.PC)
	})

	// Convert the listing's variable hints.
	for _, entry := range file.Variables {
		hint := &VariableHint{
			Name:     entry.Name,
			TypeName: entry.Type,
			Location: VariableLocationKind(entry.Location),
			Offset:   entry.Offset,
			FirstPC:  0,
			LastPC:   ^uint64(0),
		}
		if entry.Range != nil {
			hint.FirstPC = entry.Range.From
			hint.LastPC = entry.Range.To
		}
		program.variables = append(program.variables, hint)
	}

	return program, nil
}

// spanNarrower reports whether candidate carries a narrower source span than existing, which makes it the better
// entry to keep for a shared program counter.
func spanNarrower(candidate *Instruction, existing *Instruction) bool {
	if candidate.Location == nil {
		return false
	}
	if existing.Location == nil {
		return true
	}
	return candidate.Location.Span.Length < existing.Location.Span.Length
}

// loadContractABI looks for an ABI artifact alongside the metadata and parses it. Both bare ABI arrays
// (<Name>.abi) and full compiler artifacts with an "abi" key (<Name>.json) are accepted.
func loadContractABI(debugDir string, contractName string) *abi.ABI {
	candidates := []string{
		filepath.Join(debugDir, contractName+".abi"),
		filepath.Join(debugDir, contractName+".abi.json"),
		filepath.Join(debugDir, contractName+".json"),
	}
	for _, path := range candidates {
		if !utils.FileExists(path) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if parsed := parseABIData(data); parsed != nil {
			return parsed
		}
	}
	return nil
}

// parseABIData parses ABI JSON which is either a bare array or an artifact object holding an "abi" key.
func parseABIData(data []byte) *abi.ABI {
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") {
		// Reduce a full artifact to its ABI section.
		type artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		var parsed artifact
		if err := json.Unmarshal([]byte(text), &parsed); err != nil || len(parsed.ABI) == 0 {
			return nil
		}
		text = string(parsed.ABI)
	}
	contractABI, err := abi.JSON(strings.NewReader(text))
	if err != nil {
		return nil
	}
	return &contractABI
}

// normalizeVersion strips commit metadata from a compiler version string, e.g. "0.8.29+commit.ab55807c" parses as
// "0.8.29+commit.ab55807c" under semver but "v0.8.29" needs its prefix removed.
func normalizeVersion(version string) string {
	return strings.TrimPrefix(strings.TrimSpace(version), "v")
}
