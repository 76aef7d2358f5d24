package noble

import (
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

var _ types.ChainConfig = (*ChainConfig)(nil)

type ChainConfig struct {
	RPC     string `yaml:"rpc" json:"rpc"`
	ChainID string `yaml:"chain-id" json:"chain-id"`
}

func (c *ChainConfig) Chain(name string) (types.SourceChain, error) {
	return NewChain(name, c.RPC, c.ChainID)
}
