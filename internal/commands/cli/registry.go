// Package cli provides centralized command registration.
package cli

import (
	"github.com/andrei-cloud/go_hce/internal/commands/cli/cards"
	"github.com/andrei-cloud/go_hce/internal/commands/cli/emulate"
	"github.com/andrei-cloud/go_hce/internal/commands/cli/server"
	"github.com/andrei-cloud/go_hce/internal/commands/cli/settings"
	"github.com/andrei-cloud/go_hce/internal/commands/cli/tap"
	"github.com/andrei-cloud/go_hce/internal/commands/cli/transactions"
	"github.com/spf13/cobra"
)

// RegisterCommands registers all root commands.
func RegisterCommands(root *cobra.Command) error {
	root.AddCommand(server.NewServeCommand())
	root.AddCommand(emulate.NewEmulateCommand())
	root.AddCommand(tap.NewTapCommand())
	root.AddCommand(cards.NewCardsCommand())
	root.AddCommand(settings.NewSettingsCommand())
	root.AddCommand(transactions.NewTransactionsCommand())

	return nil
}
