// Package transactions provides the transaction history command.
package transactions

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/andrei-cloud/go_hce/internal/commands/cli/app"
	"github.com/andrei-cloud/go_hce/internal/config"
	"github.com/andrei-cloud/go_hce/internal/store"
	"github.com/spf13/cobra"
)

// NewTransactionsCommand creates the transactions command group.
func NewTransactionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Inspect transaction history",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cardID, _ := cmd.Flags().GetInt64("card")
			limit, _ := cmd.Flags().GetInt("limit")

			s, err := app.OpenStore(config.Get())
			if err != nil {
				return err
			}

			return list(cmd.OutOrStdout(), s, cardID, limit)
		},
	}
	listCmd.Flags().Int64("card", 0, "Only show transactions of this card")
	listCmd.Flags().Int("limit", 20, "Maximum number of transactions (0 for all)")
	cmd.AddCommand(listCmd)

	return cmd
}

func list(w io.Writer, s store.TransactionStore, cardID int64, limit int) error {
	txns, err := s.ListTransactions(cardID)
	if err != nil {
		return err
	}
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	if _, err := fmt.Fprintln(tw, "Time\tCard\tAmount\tCurrency\tType\tATC\tCryptogram\tStatus\tCode\tAuth"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, t := range txns {
		if _, err := fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			t.Timestamp.Format(time.DateTime), t.CardID, t.Amount, t.CurrencyCode,
			t.CryptogramType, t.ATC, t.Cryptogram, t.Status, t.ResponseCode, t.AuthorizationCode,
		); err != nil {
			return fmt.Errorf("failed to write transaction: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	return nil
}
