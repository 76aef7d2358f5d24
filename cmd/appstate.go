package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/ethereum"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/noble"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

const nobleChainName = "noble"

// appState is the modifiable state of the application.
type AppState struct {
	Config *types.Config

	ConfigPath string

	Debug bool

	LogLevel string

	Logger log.Logger
}

func NewAppState() *AppState {
	return &AppState{}
}

// InitAppState checks if a logger and config are present. If not, it adds them to the AppState
func (a *AppState) InitAppState() {
	if a.Logger == nil {
		a.InitLogger()
	}
	if a.Config == nil {
		a.loadConfigFile()
	}
}

func (a *AppState) InitLogger() {
	// info level is default
	level := zerolog.InfoLevel
	switch a.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// a.Debug overrides a.loglevel
	if a.Debug {
		a.Logger = log.NewLogger(os.Stdout, log.LevelOption(zerolog.DebugLevel))
	} else {
		a.Logger = log.NewLogger(os.Stdout, log.LevelOption(level))
	}
}

// loadConfigFile loads a configuration into the AppState. It uses the AppState ConfigPath
// to determine file path to config.
func (a *AppState) loadConfigFile() {
	if a.Logger == nil {
		a.InitLogger()
	}
	config, err := ParseConfig(a.ConfigPath)
	if err != nil {
		a.Logger.Error("Unable to parse config file", "location", a.ConfigPath, "err", err)
		os.Exit(1)
	}
	a.Logger.Info("Successfully parsed config file", "location", a.ConfigPath)
	a.Config = config

	err = a.validateConfig()
	if err != nil {
		a.Logger.Error("Invalid config", "err", err)
		os.Exit(1)
	}
}

// validateConfig checks the AppState Config for any invalid settings.
func (a *AppState) validateConfig() error {
	if len(a.Config.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}

	seen := make(map[string]bool, len(a.Config.Chains))
	settlementFound := false
	for _, entry := range a.Config.Chains {
		if seen[entry.Name] {
			return fmt.Errorf("chain %s is configured more than once", entry.Name)
		}
		seen[entry.Name] = true

		switch cc := entry.Config.(type) {
		case *noble.ChainConfig:
			if err := a.validateChain(entry.Name, cc.ChainID, nil, cc.RPC, "", 1, 1); err != nil {
				return err
			}
		case *ethereum.ChainConfig:
			err := a.validateChain(
				entry.Name,
				fmt.Sprintf("%d", cc.ChainID),
				cc.Domain,
				cc.RPC,
				cc.VaultManager,
				cc.BroadcastRetries,
				cc.BroadcastRetryInterval,
			)
			if err != nil {
				return err
			}
			if entry.Name == a.Config.SettlementChain {
				settlementFound = true
			}
		default:
			return fmt.Errorf("unsupported config type %T for chain %s", entry.Config, entry.Name)
		}
	}

	if a.Config.SettlementChain == "" {
		return fmt.Errorf("settlement-chain must be set in the config")
	}
	if !settlementFound {
		return fmt.Errorf("settlement-chain %s must be a configured vault chain", a.Config.SettlementChain)
	}

	// validate circle api config
	err := a.validateCircleConfig()
	if err != nil {
		return err
	}

	// validate processor worker count
	if a.Config.ProcessorWorkerCount == 0 {
		return fmt.Errorf("ProcessorWorkerCount must be greater than zero in the config")
	}

	if a.Config.API.ListenAddr == "" {
		return fmt.Errorf("api listen-addr must be set in the config")
	}

	return nil
}

// validateChain ensures the chain is configured correctly
func (a *AppState) validateChain(
	name string,
	chainID string,
	domain *types.Domain,
	rpcURL string,
	vaultManager string,
	broadcastRetries int,
	broadcastRetryInterval int,
) error {
	if name == "" {
		return fmt.Errorf("chain name must be set in the config")
	}

	if chainID == "" || chainID == "0" {
		return fmt.Errorf("chainID must be set in the config (chain: %s) (chainID: %s)", name, chainID)
	}

	// domain is hardcoded to 4 for noble chain
	if domain == nil && name != nobleChainName {
		return fmt.Errorf("domain must be set in the config (chain: %s)", name)
	}

	if rpcURL == "" {
		return fmt.Errorf("rpcURL must be set in the config (chain: %s) (rpcURL: %s)", name, rpcURL)
	}

	// noble is a burn source only and has no vault
	if vaultManager == "" && name != nobleChainName {
		return fmt.Errorf("vault-manager must be set in the config (chain: %s)", name)
	}

	if broadcastRetries <= 0 {
		return fmt.Errorf("broadcastRetries must be greater than zero in the config (chain: %s) (broadcastRetries: %d)", name, broadcastRetries)
	}

	if broadcastRetryInterval <= 0 {
		return fmt.Errorf("broadcastRetryInterval must be greater than zero in the config (chain: %s) (broadcastRetryInterval: %d)", name, broadcastRetryInterval)
	}

	return nil
}

// validateCircleConfig ensures the circle api is configured correctly
func (a *AppState) validateCircleConfig() error {
	if a.Config.Circle.AttestationBaseURL == "" {
		return fmt.Errorf("AttestationBaseUrl is required in the config")
	}

	if a.Config.Circle.FetchRetries <= 0 {
		return fmt.Errorf("FetchRetries must be greater than zero in the config")
	}

	if a.Config.Circle.FetchRetryInterval == 0 {
		return fmt.Errorf("FetchRetryInterval must be greater than zero in the config")
	}

	return nil
}
