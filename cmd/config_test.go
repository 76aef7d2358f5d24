package cmd_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/cmd"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/ethereum"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/noble"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

func TestConfig(t *testing.T) {
	file, err := cmd.ParseConfig("../config/sample-config.yaml")
	require.NoError(t, err, "Error parsing config")

	names := make([]string, 0, len(file.Chains))
	for _, c := range file.Chains {
		names = append(names, c.Name)
	}
	// file order is the position scan order
	require.Equal(t, []string{"ethereum", "arbitrum", "base", "noble"}, names)

	// assert ethereum chainConfig correctly parsed
	var ethType any = file.Chains[0].Config
	eth, ok := ethType.(*ethereum.ChainConfig)
	require.True(t, ok)
	require.NotNil(t, eth.Domain)
	require.Equal(t, types.Domain(0), *eth.Domain)
	require.Equal(t, int64(11155111), eth.ChainID)

	// assert noble chainConfig correctly parsed
	var nobleType any = file.Chains[3].Config
	n, ok := nobleType.(*noble.ChainConfig)
	require.True(t, ok)
	require.Equal(t, "grand-1", n.ChainID)

	require.Equal(t, "base", file.SettlementChain)
	require.Equal(t, 10, file.Circle.FetchRetries)
	require.Equal(t, "@every 2m", file.Scheduler.Interval)
	require.Equal(t, []types.Direction{types.Withdraw, types.Deposit}, file.Scheduler.Directions)
	require.Equal(t, uint32(16), file.ProcessorWorkerCount)
	require.Equal(t, "localhost:8000", file.API.ListenAddr)
}

func TestConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chains:
  - name: base
    config:
      domian: 6
settlement-chain: base
`), 0o600))

	_, err := cmd.ParseConfig(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "base")
}

func TestConfigMissingDomainIsNotZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chains:
  - name: base
    config:
      chain-id: 8453
      rpc: http://localhost:8545
settlement-chain: base
`), 0o600))

	file, err := cmd.ParseConfig(path)
	require.NoError(t, err)

	cc := file.Chains[0].Config.(*ethereum.ChainConfig)
	require.Nil(t, cc.Domain)

	_, err = cc.Chain("base")
	require.ErrorContains(t, err, "domain is required")
}
