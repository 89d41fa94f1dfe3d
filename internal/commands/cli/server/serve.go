// Package server provides server-related CLI commands.
package server

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andrei-cloud/go_hce/internal/commands/cli/app"
	"github.com/andrei-cloud/go_hce/internal/config"
	"github.com/andrei-cloud/go_hce/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the emulated card over TCP",
		Long: `Serve the emulated card to terminal simulators over TCP. Each frame carries
one command APDU and is answered with one response APDU.`,
		RunE: runServe,
	}

	// Add serve command specific flags that can override config.
	cmd.Flags().String("host", "localhost", "Server host")
	cmd.Flags().Int("port", 1600, "Server port")

	config.BindFlag("server.host", cmd.Flags().Lookup("host"))
	config.BindFlag("server.port", cmd.Flags().Lookup("port"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Get()

	card, err := app.NewCard(cfg)
	if err != nil {
		return err
	}
	defer card.Close()
	card.Results(cmd.OutOrStdout())

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv, err := server.NewServer(serverAddr, card.Engine)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %v", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %v", err)
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stopChan)

	<-stopChan
	log.Info().Msg("shutting down server...")

	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	return nil
}
