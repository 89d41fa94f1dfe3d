// Package cli provides the CLI command structure for go_hce.
package cli

import (
	"fmt"

	"github.com/andrei-cloud/go_hce/internal/config"
	"github.com/andrei-cloud/go_hce/internal/logging"
	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCommand creates and returns the root command with all subcommands.
func NewRootCommand() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "go_hce",
		Short: "EMV contactless card emulator",
		Long: `An EMV contactless payment card emulator. It answers terminal APDUs over
TCP or through an ACR122U reader, issues application cryptograms and
simulates online authorization.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// Initialize configuration before running any command.
			var err error
			if cfgFile != "" {
				err = config.InitializeFile(cfgFile)
			} else {
				err = config.Initialize()
			}
			if err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg := config.Get()
			logging.InitLogger(cfg.Log.Level, cfg.Log.Format == "human")

			return nil
		},
	}

	// Add persistent flags that affect all commands.
	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file (default is $HOME/.go_hce/config.yaml)")

	// Add global flags that can override config file settings.
	rootCmd.PersistentFlags().
		String("log-level", "info", "logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "logging format (human, json)")
	rootCmd.PersistentFlags().String("store-path", "", "data directory for cards and transactions")

	config.BindFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	config.BindFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	config.BindFlag("store.path", rootCmd.PersistentFlags().Lookup("store-path"))

	// Register all commands.
	if err := RegisterCommands(rootCmd); err != nil {
		return nil, fmt.Errorf("failed to register commands: %w", err)
	}

	return rootCmd, nil
}
