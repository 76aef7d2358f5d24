package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

const (
	flagConfigPath  = "config"
	flagVerbose     = "verbose"
	flagLogLevel    = "log-level"
	flagJSON        = "json"
	flagMetricsPort = "metrics-port"
	flagListenAddr  = "listen-addr"
	flagWorkers     = "workers"
)

func addAppPersistantFlags(cmd *cobra.Command, a *AppState) *cobra.Command {
	cmd.PersistentFlags().StringVar(&a.ConfigPath, flagConfigPath, defaultConfigPath, "file path of config file")
	cmd.PersistentFlags().BoolVarP(&a.Debug, flagVerbose, "v", false, fmt.Sprintf("use this flag to set log level to `debug` (overrides %s flag)", flagLogLevel))
	cmd.PersistentFlags().StringVar(&a.LogLevel, flagLogLevel, "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int16P(flagMetricsPort, "p", 2112, "customize Prometheus metrics port")
	return cmd

}

// addAPIFlags lets start override the api and worker pool settings from the config file.
func addAPIFlags(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String(flagListenAddr, "", "address the HTTP API listens on (overrides api.listen-addr)")
	cmd.Flags().Uint32(flagWorkers, 0, "number of transfer workers (overrides processor-worker-count)")
	return cmd
}

// applyAPIFlags copies any set override flags onto cfg.
func applyAPIFlags(cmd *cobra.Command, cfg *types.Config) error {
	if cmd.Flags().Changed(flagListenAddr) {
		addr, err := cmd.Flags().GetString(flagListenAddr)
		if err != nil {
			return err
		}
		cfg.API.ListenAddr = addr
	}
	if cmd.Flags().Changed(flagWorkers) {
		workers, err := cmd.Flags().GetUint32(flagWorkers)
		if err != nil {
			return err
		}
		if workers == 0 {
			return fmt.Errorf("--%s must be greater than zero", flagWorkers)
		}
		cfg.ProcessorWorkerCount = workers
	}
	return nil
}

func addJsonFlag(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().Bool(flagJSON, false, "return in json format")
	return cmd
}
