package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	appName           = "cctp-vault-orchestrator"
	defaultConfigPath = "config/sample-config.yaml"
)

// NewRootCmd returns the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	a := NewAppState()

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Orchestrates CCTP vault deposits and withdraws across chains",
	}
	addAppPersistantFlags(rootCmd, a)

	rootCmd.AddCommand(
		Start(a),
		Resume(a),
		configShowCmd(a),
		versionCmd,
	)
	return rootCmd
}

func Execute() {
	// signer keys and database urls may live in a local .env
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	rootCmd.SilenceUsage = true
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
