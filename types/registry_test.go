package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	testutil "github.com/strangelove-ventures/cctp-vault-orchestrator/test_util"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

func TestRegistryLookup(t *testing.T) {
	registry, chains := testutil.RegistrySetup(t)

	domain, err := registry.Domain("arbitrum")
	require.NoError(t, err)
	require.Equal(t, types.Domain(3), domain)

	// noble is a valid source but has no vault manager
	domain, err = registry.Domain("noble")
	require.NoError(t, err)
	require.Equal(t, types.Domain(4), domain)
	_, err = registry.Vault("noble")
	require.ErrorIs(t, err, types.ErrValidation)

	_, err = registry.Lookup("solana")
	require.ErrorIs(t, err, types.ErrValidation)

	require.Equal(t, chains["base"], registry.Settlement())
	require.Equal(t, []string{"ethereum", "arbitrum", "base", "noble"}, registry.Names())

	vaults := registry.VaultChains()
	require.Len(t, vaults, 3)
	require.Equal(t, "ethereum", vaults[0].Name())
	require.Equal(t, "base", vaults[2].Name())
}

func TestRegistryRejectsBadLayouts(t *testing.T) {
	eth := testutil.NewMockVaultChain("ethereum", 0)
	base := testutil.NewMockVaultChain("base", 6)

	_, err := types.NewRegistry([]types.SourceChain{eth, testutil.NewMockVaultChain("ethereum", 1), base}, "base")
	require.Error(t, err)

	_, err = types.NewRegistry([]types.SourceChain{eth, testutil.NewMockVaultChain("optimism", 6), base}, "base")
	require.ErrorContains(t, err, "share domain 6")

	_, err = types.NewRegistry([]types.SourceChain{eth, &testutil.MockSourceChain{ChainName: "noble", DomainID: 4}}, "noble")
	require.ErrorContains(t, err, "settlement chain")

	_, err = types.NewRegistry([]types.SourceChain{eth}, "base")
	require.Error(t, err)
}
