package ethereum

import (
	"fmt"
	"os"
	"strings"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

var _ types.ChainConfig = (*ChainConfig)(nil)

type ChainConfig struct {
	// Domain is the CCTP domain. It is a pointer so an omitted domain is
	// rejected instead of silently becoming domain 0.
	Domain       *types.Domain `yaml:"domain" json:"domain"`
	ChainID      int64         `yaml:"chain-id" json:"chain-id"`
	RPC          string        `yaml:"rpc" json:"rpc"`
	VaultManager string        `yaml:"vault-manager" json:"vault-manager"`

	BroadcastRetries       int `yaml:"broadcast-retries" json:"broadcast-retries"`
	BroadcastRetryInterval int `yaml:"broadcast-retry-interval" json:"broadcast-retry-interval"`
	ConfirmationTimeout    int `yaml:"confirmation-timeout" json:"confirmation-timeout"`

	// TODO move to keyring
	SignerPrivateKey string `yaml:"signer-private-key,omitempty" json:"-"`
}

func (c *ChainConfig) Chain(name string) (types.SourceChain, error) {
	if c.Domain == nil {
		return nil, fmt.Errorf("chain %s: domain is required", name)
	}

	envKey := strings.ToUpper(name) + "_PRIV_KEY"
	if privKey := os.Getenv(envKey); len(privKey) != 0 {
		c.SignerPrivateKey = privKey
	}
	if len(c.SignerPrivateKey) == 0 {
		return nil, fmt.Errorf("env variable %s is empty, priv key not found for chain %s", envKey, name)
	}

	return NewChain(
		name,
		*c.Domain,
		c.ChainID,
		c.RPC,
		c.VaultManager,
		c.SignerPrivateKey,
		c.BroadcastRetries,
		c.BroadcastRetryInterval,
		c.ConfirmationTimeout,
	)
}
