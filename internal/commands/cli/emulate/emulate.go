// Package emulate provides the contactless reader emulation command.
package emulate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andrei-cloud/go_hce/internal/commands/cli/app"
	"github.com/andrei-cloud/go_hce/internal/config"
	"github.com/andrei-cloud/go_hce/internal/hce"
	"github.com/andrei-cloud/go_hce/internal/nfc"
	"github.com/andrei-cloud/go_hce/pkg/cryptoutils"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewEmulateCommand creates the emulate command.
func NewEmulateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emulate",
		Short: "Emulate the card through an ACR122U reader",
		Long: `Put a PC/SC ACR122U reader in card emulation mode and answer the commands
of any terminal presented to it with the active card.`,
		RunE: runEmulate,
	}

	cmd.Flags().String("reader", "", "PC/SC reader name (substring match)")
	config.BindFlag("reader.name", cmd.Flags().Lookup("reader"))

	return cmd
}

func runEmulate(cmd *cobra.Command, _ []string) error {
	cfg := config.Get()

	card, err := app.NewCard(cfg)
	if err != nil {
		return err
	}
	defer card.Close()
	card.Results(cmd.OutOrStdout())

	reader, err := nfc.OpenReader(cfg.Reader.Name)
	if err != nil {
		return err
	}
	defer reader.Close()

	log.Info().Str("event", "reader_opened").Str("reader", reader.Name()).Msg("card emulation armed")
	fmt.Fprintf(cmd.OutOrStdout(), "Present a terminal to %s (Ctrl+C to stop)\n", reader.Name())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	em := nfc.NewEmulator(nfc.NewPN532(reader), card.Engine, func(command, response []byte) {
		name, _ := hce.Describe(command)
		log.Info().
			Str("event", "apdu_exchanged").
			Str("command", name).
			Str("apdu_hex", cryptoutils.Raw2Str(command)).
			Str("response_hex", cryptoutils.Raw2Str(response)).
			Msg("exchanged apdu")
	})

	if err := em.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
