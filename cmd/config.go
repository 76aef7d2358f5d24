package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	yamlv2 "gopkg.in/yaml.v2"
	"gopkg.in/yaml.v3"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/ethereum"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/noble"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

const redacted = "<redacted>"

// Command for printing current configuration
func configShowCmd(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "showConfig",
		Aliases: []string{"sc"},
		Short:   "Prints current configuration. By default it prints in yaml",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.InitAppState()
			return nil
		},
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s showConfig --config %s
$ %s sc`, appName, defaultConfigPath, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {

			jsn, err := cmd.Flags().GetBool(flagJSON)
			if err != nil {
				return err
			}

			cfg := redactConfig(a.Config)
			switch {
			case jsn:
				out, err := json.Marshal(cfg)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			default:
				out, err := yamlv2.Marshal(cfg)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}
		},
	}
	addJsonFlag(cmd)
	return cmd
}

// ParseConfig parses the app config file. Unknown keys are rejected so a
// misspelled setting never falls back to its zero value.
func ParseConfig(file string) (*types.Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %w", err)
	}

	var cfg types.ConfigWrapper
	if err := decodeStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	c := types.Config{
		SettlementChain:      cfg.SettlementChain,
		Circle:               cfg.Circle,
		Scheduler:            cfg.Scheduler,
		Database:             cfg.Database,
		Events:               cfg.Events,
		ProcessorWorkerCount: cfg.ProcessorWorkerCount,
		ProcessorQueueSize:   cfg.ProcessorQueueSize,
		PositionReadTimeout:  cfg.PositionReadTimeout,
		API:                  cfg.API,
		Chains:               make([]types.ChainEntry, 0, len(cfg.Chains)),
	}

	for _, chain := range cfg.Chains {
		yamlbz, err := yaml.Marshal(chain.Config)
		if err != nil {
			return nil, err
		}

		var cc types.ChainConfig
		switch chain.Name {
		case nobleChainName:
			cc = &noble.ChainConfig{}
		default:
			cc = &ethereum.ChainConfig{}
		}
		if err := decodeStrict(yamlbz, cc); err != nil {
			return nil, fmt.Errorf("chain %s: %w", chain.Name, err)
		}
		c.Chains = append(c.Chains, types.ChainEntry{Name: chain.Name, Config: cc})
	}
	return &c, nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// redactConfig returns a copy of cfg safe to print.
func redactConfig(cfg *types.Config) *types.Config {
	out := *cfg
	out.Chains = make([]types.ChainEntry, 0, len(cfg.Chains))
	for _, entry := range cfg.Chains {
		if cc, ok := entry.Config.(*ethereum.ChainConfig); ok {
			copied := *cc
			copied.SignerPrivateKey = ""
			entry.Config = &copied
		}
		out.Chains = append(out.Chains, entry)
	}
	if out.Database.URL != "" {
		out.Database.URL = redacted
	}
	if out.Events.AMQPURL != "" {
		out.Events.AMQPURL = redacted
	}
	return &out
}
