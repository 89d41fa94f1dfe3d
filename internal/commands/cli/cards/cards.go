// Package cards provides card management commands.
package cards

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/andrei-cloud/go_hce/internal/commands/cli/app"
	"github.com/andrei-cloud/go_hce/internal/config"
	"github.com/andrei-cloud/go_hce/internal/store"
	"github.com/spf13/cobra"
)

// ErrCardDisabled is returned when activating a disabled card.
var ErrCardDisabled = errors.New("card is disabled")

// NewCardsCommand creates the cards command group.
func NewCardsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Manage emulated cards",
		Long: `Manage the cards the emulator can present. Only the active card answers
terminal commands.`,
	}

	// Add subcommands.
	cmd.AddCommand(newAddCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newRemoveCommand())
	cmd.AddCommand(newActivateCommand())
	cmd.AddCommand(newPickCommand())

	return cmd
}

func newAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a card",
		Long: `Add a card from its PAN, expiry (MM/YY), CVV and cardholder name. The
network is derived from the PAN unless given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.OpenStore(config.Get())
			if err != nil {
				return err
			}

			card := store.Card{Enabled: true}
			card.PAN, _ = cmd.Flags().GetString("pan")
			card.Expiry, _ = cmd.Flags().GetString("expiry")
			card.CVV, _ = cmd.Flags().GetString("cvv")
			card.CardholderName, _ = cmd.Flags().GetString("name")
			card.Network, _ = cmd.Flags().GetString("network")
			card.PANSequence, _ = cmd.Flags().GetString("sequence")
			activate, _ := cmd.Flags().GetBool("activate")

			return addCard(cmd.OutOrStdout(), s, card, activate)
		},
	}

	cmd.Flags().String("pan", "", "Primary account number")
	cmd.Flags().String("expiry", "", "Expiry date (MM/YY)")
	cmd.Flags().String("cvv", "", "Card verification value")
	cmd.Flags().String("name", "", "Cardholder name")
	cmd.Flags().String("network", "", "Card network (VISA, MASTERCARD, AMEX, DISCOVER)")
	cmd.Flags().String("sequence", "01", "PAN sequence number")
	cmd.Flags().Bool("activate", false, "Make the new card the active card")

	for _, f := range []string{"pan", "expiry", "cvv"} {
		_ = cmd.MarkFlagRequired(f)
	}

	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cards",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.OpenStore(config.Get())
			if err != nil {
				return err
			}

			return listCards(cmd.OutOrStdout(), s, s)
		},
	}
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := app.OpenStore(config.Get())
			if err != nil {
				return err
			}
			if err := s.DeleteCard(id); err != nil {
				return fmt.Errorf("failed to remove card: %w", err)
			}
			cmd.Printf("Card %d removed\n", id)

			return nil
		},
	}
}

func newActivateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Make a card the active card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := app.OpenStore(config.Get())
			if err != nil {
				return err
			}
			if err := activateCard(s, s, id); err != nil {
				return err
			}
			cmd.Printf("Card %d is now active\n", id)

			return nil
		},
	}
}

func newPickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pick",
		Short: "Choose the active card interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.OpenStore(config.Get())
			if err != nil {
				return err
			}
			cards, err := s.ListCards()
			if err != nil {
				return err
			}
			if len(cards) == 0 {
				cmd.Println("No cards; add one with \"go_hce cards add\"")
				return nil
			}
			settings, err := s.Settings()
			if err != nil {
				return err
			}

			id, ok, err := runCardPicker(cards, settings.ActiveCardID)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := activateCard(s, s, id); err != nil {
				return err
			}
			cmd.Printf("Card %d is now active\n", id)

			return nil
		},
	}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid card id %q", arg)
	}

	return id, nil
}

func addCard(w io.Writer, s interface {
	store.CardStore
	store.SettingsStore
}, card store.Card, activate bool,
) error {
	if err := s.SaveCard(&card); err != nil {
		return fmt.Errorf("failed to add card: %w", err)
	}
	fmt.Fprintf(w, "Card %d added: %s %s\n", card.ID, card.Network, card.MaskedPAN())

	if !activate {
		return nil
	}

	return activateCard(s, s, card.ID)
}

func activateCard(cards store.CardStore, settings store.SettingsStore, id int64) error {
	card, err := cards.GetCard(id)
	if err != nil {
		return err
	}
	if !card.Enabled {
		return fmt.Errorf("card %d: %w", id, ErrCardDisabled)
	}

	st, err := settings.Settings()
	if err != nil {
		return err
	}
	st.ActiveCardID = id

	return settings.SaveSettings(st)
}

func listCards(w io.Writer, cards store.CardStore, settings store.SettingsStore) error {
	list, err := cards.ListCards()
	if err != nil {
		return err
	}
	st, err := settings.Settings()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	if _, err := fmt.Fprintln(tw, "\tID\tPAN\tExpiry\tNetwork\tName\tATC\tEnabled"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, c := range list {
		marker := ""
		if c.ID == st.ActiveCardID {
			marker = "*"
		}
		if _, err := fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%d\t%t\n",
			marker, c.ID, c.MaskedPAN(), c.Expiry, c.Network,
			c.CardholderName, c.ATC, c.Enabled,
		); err != nil {
			return fmt.Errorf("failed to write card: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	return nil
}
