// Package tap provides a terminal simulator that runs a purchase against
// the card served by "go_hce serve".
package tap

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/andrei-cloud/anet"
	"github.com/andrei-cloud/go_hce/internal/config"
	"github.com/andrei-cloud/go_hce/internal/cryptogram"
	"github.com/andrei-cloud/go_hce/internal/emv"
	"github.com/andrei-cloud/go_hce/internal/hce"
	"github.com/andrei-cloud/go_hce/internal/tlv"
	"github.com/andrei-cloud/go_hce/pkg/cryptoutils"
	"github.com/spf13/cobra"
)

// NewTapCommand creates the tap command.
func NewTapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tap",
		Short: "Run a purchase against the served card",
		Long: `Act as a contactless terminal: select the payment application, read the
card records and request an application cryptogram from the card served
over TCP.`,
		RunE: runTap,
	}

	cmd.Flags().String("host", "localhost", "Card server host")
	cmd.Flags().Int("port", 1600, "Card server port")
	cmd.Flags().Uint64("amount", 1000, "Amount authorised in minor units")
	cmd.Flags().String("currency", "0840", "Transaction currency code (4 digits)")
	cmd.Flags().String("country", "0840", "Terminal country code (4 digits)")
	cmd.Flags().String("type", "tc", "Requested cryptogram (tc, arqc, aac)")
	cmd.Flags().String("aid", "", "Application to select (hex); PPSE is used when empty")
	cmd.Flags().Duration("timeout", 5*time.Second, "Per-exchange timeout")

	config.BindFlag("server.host", cmd.Flags().Lookup("host"))
	config.BindFlag("server.port", cmd.Flags().Lookup("port"))

	return cmd
}

func runTap(cmd *cobra.Command, _ []string) error {
	cfg := config.Get()

	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	send, closeFn := Dial(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), timeout)
	defer closeFn()

	outcome, err := Run(send, req)
	Print(cmd.OutOrStdout(), outcome)
	if err != nil {
		return err
	}

	return nil
}

// Dial returns a Transceiver talking to the card server at addr over one
// pooled connection. Each exchange is bounded by timeout. The returned func
// closes the broker and the pool.
func Dial(addr string, timeout time.Duration) (Transceiver, func()) {
	factory := func(addr string) (anet.PoolItem, error) {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return nil, err
		}

		return conn, nil
	}

	pool := anet.NewPool(1, factory, addr, nil)
	broker := anet.NewBroker([]anet.Pool{pool}, 1, nil, nil)
	go broker.Start()

	send := func(frame []byte) ([]byte, error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		return broker.SendContext(ctx, &frame)
	}

	return send, func() {
		broker.Close()
		pool.Close()
	}
}

func requestFromFlags(cmd *cobra.Command) (Request, error) {
	amount, _ := cmd.Flags().GetUint64("amount")
	currency, _ := cmd.Flags().GetString("currency")
	country, _ := cmd.Flags().GetString("country")
	typeName, _ := cmd.Flags().GetString("type")
	aidHex, _ := cmd.Flags().GetString("aid")

	req := Request{
		Amount:       amount,
		CurrencyCode: currency,
		CountryCode:  country,
		Date:         time.Now(),
	}

	switch strings.ToLower(typeName) {
	case "tc":
		req.Type = cryptogram.TC
	case "arqc":
		req.Type = cryptogram.ARQC
	case "aac":
		req.Type = cryptogram.AAC
	default:
		return Request{}, fmt.Errorf("unknown cryptogram type %q", typeName)
	}

	if aidHex != "" {
		aid, err := cryptoutils.Str2Raw(aidHex)
		if err != nil {
			return Request{}, fmt.Errorf("invalid aid: %w", err)
		}
		req.AID = aid
	}

	return req, nil
}

// Print writes every exchange with a decoded view of the response data.
func Print(w io.Writer, o Outcome) {
	for _, ex := range o.Exchanges {
		_, description := hce.Describe(ex.Command)
		fmt.Fprintf(w, "%s: %s\n", ex.Name, description)
		fmt.Fprintf(w, "  >> %s\n", cryptoutils.Raw2Str(ex.Command))
		fmt.Fprintf(w, "  << %s\n", cryptoutils.Raw2Str(ex.Response))

		if len(ex.Response) > 2 {
			tree, err := tlv.Describe(ex.Response[:len(ex.Response)-2], emv.TagNames)
			if err == nil {
				for _, line := range strings.Split(tree, "\n") {
					fmt.Fprintf(w, "     %s\n", line)
				}
			}
		}
		fmt.Fprintf(w, "  %s\n\n", ex.Status.Error())
	}

	if len(o.Cryptogram) > 0 {
		fmt.Fprintf(w, "Cryptogram %s CID %02X ATC %d\n", cryptoutils.Raw2Str(o.Cryptogram), o.CID, o.ATC)
	}
}
