// Package settings provides commands for the emulator settings.
package settings

import (
	"fmt"
	"io"

	"github.com/andrei-cloud/go_hce/internal/commands/cli/app"
	"github.com/andrei-cloud/go_hce/internal/config"
	"github.com/andrei-cloud/go_hce/internal/store"
	"github.com/spf13/cobra"
)

// NewSettingsCommand creates the settings command group.
func NewSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change emulator settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.OpenStore(config.Get())
			if err != nil {
				return err
			}

			return show(cmd.OutOrStdout(), s, s)
		},
	})

	set := &cobra.Command{
		Use:   "set",
		Short: "Change settings",
		Long: `Change settings. Only the flags given are changed.

  --force-approval  transaction certificates are always approved online
  --biometric       cardholder verification is reported in the CID`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.OpenStore(config.Get())
			if err != nil {
				return err
			}

			var ch change
			if cmd.Flags().Changed("force-approval") {
				v, _ := cmd.Flags().GetBool("force-approval")
				ch.forceApproval = &v
			}
			if cmd.Flags().Changed("biometric") {
				v, _ := cmd.Flags().GetBool("biometric")
				ch.biometric = &v
			}
			if err := apply(s, ch); err != nil {
				return err
			}

			return show(cmd.OutOrStdout(), s, s)
		},
	}
	set.Flags().Bool("force-approval", false, "Approve every transaction certificate")
	set.Flags().Bool("biometric", false, "Require biometric cardholder verification")
	cmd.AddCommand(set)

	return cmd
}

type change struct {
	forceApproval *bool
	biometric     *bool
}

func apply(s store.SettingsStore, ch change) error {
	st, err := s.Settings()
	if err != nil {
		return err
	}
	if ch.forceApproval != nil {
		st.ForceApproval = *ch.forceApproval
	}
	if ch.biometric != nil {
		st.BiometricRequired = *ch.biometric
	}

	if err := s.SaveSettings(st); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}

func show(w io.Writer, settings store.SettingsStore, cards store.CardStore) error {
	st, err := settings.Settings()
	if err != nil {
		return err
	}

	active := "none"
	if st.ActiveCardID != 0 {
		card, err := cards.GetCard(st.ActiveCardID)
		if err != nil {
			return err
		}
		active = fmt.Sprintf("%d (%s %s)", card.ID, card.Network, card.MaskedPAN())
	}

	fmt.Fprintf(w, "Active card:        %s\n", active)
	fmt.Fprintf(w, "Force approval:     %t\n", st.ForceApproval)
	fmt.Fprintf(w, "Biometric required: %t\n", st.BiometricRequired)

	return nil
}
