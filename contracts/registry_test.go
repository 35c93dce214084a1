package contracts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterSource is the source text backing the test fixture's debug metadata.
const counterSource = `// fixture contract
contract Counter {
    uint256 public count;

    function increment(uint256 amount) public {
        count += amount;
    }
}
`

// counterABI is the ABI artifact written next to the fixture metadata.
const counterABI = `[{"type":"function","name":"increment","inputs":[{"name":"amount","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}]`

// writeCounterFixture writes a complete debug metadata directory for the Counter fixture
// contract into a fresh temporary directory and returns its path.
func writeCounterFixture(t *testing.T) string {
	dir := t.TempDir()
	writeCounterFixtureInto(t, dir)
	return dir
}

// writeCounterFixtureInto writes the Counter fixture metadata files into dir.
func writeCounterFixtureInto(t *testing.T, dir string) {
	functionOffset := strings.Index(counterSource, "function increment")
	require.GreaterOrEqual(t, functionOffset, 0)

	writeFixtureFile(t, dir, "Counter.sol", counterSource)
	writeFixtureFile(t, dir, "Counter.abi", counterABI)
	writeFixtureFile(t, dir, "ethdebug.json", `{
		"sources": [{"id": 0, "path": "Counter.sol"}],
		"compiler": {"name": "solc", "version": "0.8.29+commit.ab55807c"}
	}`)
	writeFixtureFile(t, dir, "Counter_ethdebug.json", `{
		"environment": "create",
		"instructions": [
			{"offset": 0, "operation": {"mnemonic": "PUSH1", "arguments": ["0x80"]}},
			{"offset": 2, "operation": {"mnemonic": "PUSH1", "arguments": ["0x40"]}},
			{"offset": 4, "operation": {"mnemonic": "MSTORE"}}
		]
	}`)
	writeFixtureFile(t, dir, "Counter_ethdebug-runtime.json", fmt.Sprintf(`{
		"environment": "runtime",
		"instructions": [
			{"offset": 0, "operation": {"mnemonic": "PUSH1", "arguments": ["0x80"]}},
			{"offset": 2, "operation": {"mnemonic": "PUSH1", "arguments": ["0x40"]}},
			{"offset": 4, "operation": {"mnemonic": "MSTORE"}},
			{"offset": 5, "operation": {"mnemonic": "JUMPDEST"},
			 "context": {"code": {"source": {"id": 0}, "range": {"offset": %d, "length": 44}}}}
		]
	}`, functionOffset))
}

// writeFixtureFile writes one fixture file, creating parent directories as needed.
func writeFixtureFile(t *testing.T, dir string, name string, contents string) {
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

var fixtureAddress = common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")

// TestAddDirectiveForms verifies the three directive forms register contracts correctly.
func TestAddDirectiveForms(t *testing.T) {
	dir := writeCounterFixture(t)

	// address:path resolves the contract name from the metadata.
	registry := NewRegistry()
	require.NoError(t, registry.AddDirective(fixtureAddress.String()+":"+dir))
	contract := registry.ContractAt(fixtureAddress)
	require.NotNil(t, contract)
	assert.EqualValues(t, "Counter", contract.Name)
	require.NotNil(t, contract.Info)
	assert.NotNil(t, contract.Info.ABI)

	// address:name:path pins the contract name explicitly.
	registry = NewRegistry()
	require.NoError(t, registry.AddDirective(fixtureAddress.String()+":Counter:"+dir))
	contract = registry.ContractAt(fixtureAddress)
	require.NotNil(t, contract)
	assert.EqualValues(t, "Counter", contract.Name)

	// A bare path is associated through its deployment record.
	deployDir := t.TempDir()
	writeCounterFixtureInto(t, deployDir)
	writeFixtureFile(t, deployDir, DeploymentFilename, fmt.Sprintf(`{
		"address": "%v",
		"contract": "Counter",
		"ethdebug": {"enabled": true}
	}`, fixtureAddress.String()))
	registry = NewRegistry()
	require.NoError(t, registry.AddDirective(deployDir))
	require.NotNil(t, registry.ContractAt(fixtureAddress))
	assert.EqualValues(t, 1, registry.Count())
}

// TestAddDirectiveRejectsMalformed verifies malformed directives error rather than being
// silently misread as paths.
func TestAddDirectiveRejectsMalformed(t *testing.T) {
	registry := NewRegistry()
	assert.Error(t, registry.AddDirective("notanaddress:"+t.TempDir()))
	assert.Error(t, registry.AddDirective("0x1234:Name:"+t.TempDir()))
}

// TestAddDirectiveSkipsBareDirWithoutDeployment verifies a bare directory without a
// deployment record is skipped without error.
func TestAddDirectiveSkipsBareDirWithoutDeployment(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.AddDirective(t.TempDir()))
	assert.EqualValues(t, 0, registry.Count())
}

// TestLastRegistrationWins verifies a later registration for the same address replaces the
// earlier one.
func TestLastRegistrationWins(t *testing.T) {
	dirA := writeCounterFixture(t)
	dirB := writeCounterFixture(t)

	registry := NewRegistry()
	_, err := registry.AddContract(fixtureAddress, dirA, "")
	require.NoError(t, err)
	_, err = registry.AddContract(fixtureAddress, dirB, "")
	require.NoError(t, err)

	contract := registry.ContractAt(fixtureAddress)
	require.NotNil(t, contract)
	assert.EqualValues(t, dirB, contract.DebugDir)
	assert.EqualValues(t, 1, registry.Count())
}

// TestLoadDeploymentFileRequiresEnabledFlag verifies a single-contract deployment record
// without an enabled ethdebug section registers nothing.
func TestLoadDeploymentFileRequiresEnabledFlag(t *testing.T) {
	dir := writeCounterFixture(t)
	writeFixtureFile(t, dir, DeploymentFilename, fmt.Sprintf(`{
		"address": "%v",
		"contract": "Counter"
	}`, fixtureAddress.String()))

	registry := NewRegistry()
	require.NoError(t, registry.LoadDeploymentFile(filepath.Join(dir, DeploymentFilename)))
	assert.EqualValues(t, 0, registry.Count())
}

// TestLoadDeploymentFileMultiContract verifies the multi-contract deployment shape probes
// the conventional debug directory locations.
func TestLoadDeploymentFileMultiContract(t *testing.T) {
	baseDir := t.TempDir()
	writeCounterFixtureInto(t, filepath.Join(baseDir, "debug_counter"))
	writeFixtureFile(t, baseDir, DeploymentFilename, fmt.Sprintf(`{
		"contracts": {
			"Counter": {"address": "%v"},
			"Broken": {"address": "0x0000000000000000000000000000000000000007"}
		}
	}`, fixtureAddress.String()))

	registry := NewRegistry()
	require.NoError(t, registry.LoadDeploymentFile(filepath.Join(baseDir, DeploymentFilename)))

	// Counter loads from debug_counter; Broken has no debug directory and is skipped.
	require.NotNil(t, registry.ContractAt(fixtureAddress))
	assert.EqualValues(t, 1, registry.Count())
}

// TestLoadMappingFile verifies mapping files register contracts with debug directories
// resolved relative to the mapping file.
func TestLoadMappingFile(t *testing.T) {
	baseDir := t.TempDir()
	writeCounterFixtureInto(t, filepath.Join(baseDir, "artifacts", "counter"))

	secondAddress := common.HexToAddress("0x0000000000000000000000000000000000000042")
	writeFixtureFile(t, baseDir, "contracts.json", fmt.Sprintf(`{
		"contracts": [
			{"address": "%v", "name": "Counter", "debug_dir": "artifacts/counter"},
			{"address": "%v", "debug_dir": "artifacts/counter"},
			{"address": "nothex", "debug_dir": "artifacts/counter"}
		]
	}`, fixtureAddress.String(), secondAddress.String()))

	registry := NewRegistry()
	require.NoError(t, registry.LoadMappingFile(filepath.Join(baseDir, "contracts.json")))

	require.NotNil(t, registry.ContractAt(fixtureAddress))
	require.NotNil(t, registry.ContractAt(secondAddress))
	assert.EqualValues(t, 2, registry.Count())

	// Contracts are listed ordered by address.
	listed := registry.Contracts()
	require.EqualValues(t, 2, len(listed))
	assert.EqualValues(t, secondAddress, listed[0].Address)
	assert.EqualValues(t, fixtureAddress, listed[1].Address)
}

// TestResolveUnknownAddress verifies unknown addresses resolve to an
// UnresolvedAddressError while ContractAt stays soft.
func TestResolveUnknownAddress(t *testing.T) {
	registry := NewRegistry()
	unknown := common.HexToAddress("0x00000000000000000000000000000000000000AA")

	assert.Nil(t, registry.ContractAt(unknown))

	_, err := registry.Resolve(unknown)
	require.Error(t, err)
	var unresolvedErr *UnresolvedAddressError
	require.ErrorAs(t, err, &unresolvedErr)
	assert.EqualValues(t, unknown, unresolvedErr.Address)
}
