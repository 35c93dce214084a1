package contracts

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ariadne-eth/ariadne/ethdebug"
	"github.com/ariadne-eth/ariadne/logging"
	"github.com/ariadne-eth/ariadne/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DeploymentFilename describes the name of the deployment record a debug directory may carry.
const DeploymentFilename = "deployment.json"

// Registry maps deployed contract addresses to their debug metadata. It is populated once from directives,
// deployment records and mapping files before analysis begins, and is read-only afterward. The last registration
// for an address wins, so an explicit directive overrides earlier auto-discovery.
type Registry struct {
	contracts map[common.Address]*Contract
	logger    *logging.Logger
}

// NewRegistry returns an empty contract registry.
func NewRegistry() *Registry {
	return &Registry{
		contracts: make(map[common.Address]*Contract),
		logger:    logging.GlobalLogger.NewSubLogger("module", "contracts"),
	}
}

// AddContract loads debug metadata from the given directory and registers it for the address. An empty contract
// name selects the first contract the directory describes.
func (r *Registry) AddContract(address common.Address, debugDir string, contractName string) (*Contract, error) {
	info, err := ethdebug.LoadContract(debugDir, contractName)
	if err != nil {
		return nil, err
	}

	contract := &Contract{Address: address, Name: info.Name, DebugDir: debugDir, Info: info}
	if _, exists := r.contracts[address]; exists {
		r.logger.Debug("Replacing debug metadata registered for ", address.String())
	}
	r.contracts[address] = contract
	r.logger.Debug("Registered ", contract.Name, " at ", address.String())
	return contract, nil
}

// AddDirective registers contracts from a command-line directive of the form "address:name:path",
// "address:path", or a bare debug directory path. A bare path is scanned for a deployment record to associate
// an address; without one the directive is skipped with a warning, since a debug directory alone names no
// deployment.
func (r *Registry) AddDirective(directive string) error {
	parts := strings.SplitN(directive, ":", 3)
	switch {
	case len(parts) == 3 && common.IsHexAddress(parts[0]):
		_, err := r.AddContract(common.HexToAddress(parts[0]), parts[2], parts[1])
		return err
	case len(parts) == 2 && common.IsHexAddress(parts[0]):
		_, err := r.AddContract(common.HexToAddress(parts[0]), parts[1], "")
		return err
	case len(parts) == 1:
		if !utils.DirExists(directive) {
			return errors.Errorf("debug directory %v does not exist", directive)
		}
		deploymentPath := filepath.Join(directive, DeploymentFilename)
		if !utils.FileExists(deploymentPath) {
			r.logger.Warn("No ", DeploymentFilename, " found in ", directive, ", skipping")
			return nil
		}
		return r.LoadDeploymentFile(deploymentPath)
	default:
		return errors.Errorf("malformed contract directive %q, want [address:[name:]]path", directive)
	}
}

// deploymentFile describes a deployment record. Two shapes are accepted: a single-contract record carrying the
// address and contract name at the top level, and a multi-contract record keyed by contract name.
type deploymentFile struct {
	Address  string `json:"address,omitempty"`
	Contract string `json:"contract,omitempty"`
	ETHDebug *struct {
		Enabled bool `json:"enabled"`
	} `json:"ethdebug,omitempty"`
	Contracts map[string]deploymentEntry `json:"contracts,omitempty"`
}

// deploymentEntry describes one contract of a multi-contract deployment record.
type deploymentEntry struct {
	Address string `json:"address"`
}

// LoadDeploymentFile registers contracts described by a deployment record. Per-contract load failures are logged
// and skipped so one broken artifact does not hide the others.
func (r *Registry) LoadDeploymentFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WithStack(err)
	}
	var deployment deploymentFile
	if err = json.Unmarshal(data, &deployment); err != nil {
		return errors.WithMessagef(err, "could not parse deployment record %v", path)
	}
	baseDir := filepath.Dir(path)

	// Single-contract shape: the debug files live next to the deployment record.
	if deployment.Address != "" && deployment.Contract != "" {
		if !common.IsHexAddress(deployment.Address) {
			return errors.Errorf("deployment record %v carries malformed address %q", path, deployment.Address)
		}
		if deployment.ETHDebug == nil || !deployment.ETHDebug.Enabled {
			r.logger.Warn("Debug metadata not enabled for ", deployment.Contract, " in ", path)
			return nil
		}
		if _, err = r.AddContract(common.HexToAddress(deployment.Address), baseDir, deployment.Contract); err != nil {
			r.logger.Warn("Could not load debug metadata for ", deployment.Contract, ": ", err)
		}
		return nil
	}

	// Multi-contract shape: probe the conventional debug directory locations per contract.
	names := maps.Keys(deployment.Contracts)
	sort.Strings(names)
	for _, name := range names {
		entry := deployment.Contracts[name]
		if !common.IsHexAddress(entry.Address) {
			r.logger.Warn("Skipping contract ", name, " with malformed address ", entry.Address)
			continue
		}
		debugDir := findDebugDir(baseDir, name)
		if debugDir == "" {
			r.logger.Warn("No debug directory found for ", name)
			continue
		}
		if _, err = r.AddContract(common.HexToAddress(entry.Address), debugDir, name); err != nil {
			r.logger.Warn("Could not load debug metadata for ", name, ": ", err)
		}
	}
	return nil
}

// findDebugDir probes the conventional locations of a contract's debug directory relative to a deployment record.
func findDebugDir(baseDir string, contractName string) string {
	candidates := []string{
		filepath.Join(baseDir, "debug_"+strings.ToLower(contractName)),
		filepath.Join(baseDir, "debug", contractName),
		filepath.Join(baseDir, contractName, "debug"),
		baseDir,
	}
	for _, candidate := range candidates {
		if utils.FileExists(filepath.Join(candidate, ethdebug.CompilationIndexFilename)) {
			return candidate
		}
	}
	return ""
}

// mappingFile describes an explicit contract mapping file.
type mappingFile struct {
	Contracts []mappingEntry `json:"contracts"`
}

// mappingEntry describes one contract of a mapping file.
type mappingEntry struct {
	Address  string `json:"address"`
	Name     string `json:"name,omitempty"`
	DebugDir string `json:"debug_dir"`
}

// LoadMappingFile registers contracts from a mapping file of the form
// {"contracts": [{"address", "name", "debug_dir"}]}. Relative debug directories resolve against the mapping
// file's own directory. Per-contract load failures are logged and skipped.
func (r *Registry) LoadMappingFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WithStack(err)
	}
	var mapping mappingFile
	if err = json.Unmarshal(data, &mapping); err != nil {
		return errors.WithMessagef(err, "could not parse contract mapping %v", path)
	}

	for _, entry := range mapping.Contracts {
		if !common.IsHexAddress(entry.Address) {
			r.logger.Warn("Skipping mapping entry with malformed address ", entry.Address)
			continue
		}
		debugDir := entry.DebugDir
		if !filepath.IsAbs(debugDir) {
			debugDir = filepath.Join(filepath.Dir(path), debugDir)
		}
		if _, err = r.AddContract(common.HexToAddress(entry.Address), debugDir, entry.Name); err != nil {
			r.logger.Warn("Could not load contract ", entry.Name, " at ", entry.Address, ": ", err)
		}
	}
	return nil
}

// ContractAt returns the contract registered for the address, or nil when the address is unknown.
func (r *Registry) ContractAt(address common.Address) *Contract {
	return r.contracts[address]
}

// Resolve returns the contract registered for the address, or an UnresolvedAddressError when the address is
// unknown. Callers which treat missing metadata as a degraded-but-valid state should prefer ContractAt.
func (r *Registry) Resolve(address common.Address) (*Contract, error) {
	if contract := r.contracts[address]; contract != nil {
		return contract, nil
	}
	return nil, &UnresolvedAddressError{Address: address}
}

// Contracts returns every registered contract ordered by address.
func (r *Registry) Contracts() []*Contract {
	registered := maps.Values(r.contracts)
	slices.SortFunc(registered, func(a *Contract, b *Contract) int {
		return bytes.Compare(a.Address.Bytes(), b.Address.Bytes())
	})
	return registered
}

// Count returns the number of registered contracts.
func (r *Registry) Count() int {
	return len(r.contracts)
}
