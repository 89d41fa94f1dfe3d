package tap

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/andrei-cloud/go_hce/internal/apdu"
	"github.com/andrei-cloud/go_hce/internal/cryptogram"
	"github.com/andrei-cloud/go_hce/internal/emv"
	"github.com/andrei-cloud/go_hce/internal/errorcodes"
	"github.com/andrei-cloud/go_hce/internal/tlv"
	"github.com/andrei-cloud/go_hce/pkg/cryptoutils"
	"github.com/moov-io/bertlv"
)

// ttq advertises EMV mode contactless with online capability.
var ttq = []byte{0x36, 0x00, 0x00, 0x00}

// ErrNoApplication is returned when the PPSE lists no application.
var ErrNoApplication = errors.New("no application in ppse")

// Transceiver sends one command APDU and returns the response APDU.
type Transceiver func(frame []byte) ([]byte, error)

// Request describes the purchase the terminal runs.
type Request struct {
	Amount       uint64
	CurrencyCode string
	CountryCode  string
	Type         cryptogram.Type
	Date         time.Time
	// AID skips PPSE selection when set.
	AID []byte
	// UnpredictableNumber is generated when empty.
	UnpredictableNumber []byte
}

// Exchange is one command/response pair.
type Exchange struct {
	Name     string
	Command  []byte
	Response []byte
	Status   errorcodes.StatusWord
}

// Outcome is what the terminal learned from the card.
type Outcome struct {
	Exchanges  []Exchange
	AID        []byte
	Cryptogram []byte
	CID        byte
	ATC        uint16
}

type terminal struct {
	send Transceiver
	out  Outcome
}

// Run drives SELECT, GET PROCESSING OPTIONS, READ RECORD and GENERATE AC
// against the card behind send. The exchanges made so far are returned
// with any error.
func Run(send Transceiver, req Request) (Outcome, error) {
	t := &terminal{send: send}
	err := t.run(req)

	return t.out, err
}

func (t *terminal) run(req Request) error {
	aid := req.AID
	if len(aid) == 0 {
		data, err := t.exchange("SELECT PPSE", apdu.NewCommand(0x00, 0xA4, 0x04, 0x00, emv.PPSEName, 256))
		if err != nil {
			return err
		}
		if aid, err = firstAID(data); err != nil {
			return err
		}
	}
	t.out.AID = aid

	if _, err := t.exchange("SELECT", apdu.NewCommand(0x00, 0xA4, 0x04, 0x00, aid, 256)); err != nil {
		return err
	}

	pdol, err := pdolData(req)
	if err != nil {
		return err
	}
	data, err := t.exchange("GET PROCESSING OPTIONS", apdu.NewCommand(0x80, 0xA8, 0x00, 0x00, pdol, 256))
	if err != nil {
		return err
	}
	afl, err := applicationFileLocator(data)
	if err != nil {
		return err
	}

	for i := 0; i+4 <= len(afl); i += 4 {
		sfi, first, last := afl[i]>>3, afl[i+1], afl[i+2]
		for rec := int(first); rec <= int(last); rec++ {
			name := fmt.Sprintf("READ RECORD SFI %d REC %d", sfi, rec)
			cmd := apdu.NewCommand(0x00, 0xB2, byte(rec), sfi<<3|0x04, nil, 256)
			if _, err := t.exchange(name, cmd); err != nil {
				return err
			}
		}
	}

	cdol, err := cdolData(req)
	if err != nil {
		return err
	}
	data, err = t.exchange("GENERATE AC", apdu.NewCommand(0x80, 0xAE, req.Type.Marker(), 0x00, cdol, 256))
	if err != nil {
		return err
	}

	return t.readCryptogram(data)
}

func (t *terminal) exchange(name string, cmd apdu.Command) ([]byte, error) {
	frame, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	raw, err := t.send(frame)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	resp, err := apdu.ParseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	t.out.Exchanges = append(t.out.Exchanges, Exchange{
		Name:     name,
		Command:  frame,
		Response: raw,
		Status:   resp.Status,
	})
	if !resp.Status.IsSuccess() {
		return nil, fmt.Errorf("%s: %w", name, resp.Status)
	}

	return resp.Data, nil
}

func (t *terminal) readCryptogram(data []byte) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("generate ac response: %w", err)
	}

	if v, ok := findTag(packets, emv.TagApplicationCryptogram); ok {
		t.out.Cryptogram = v
	}
	if v, ok := findTag(packets, emv.TagCryptogramInfoData); ok && len(v) == 1 {
		t.out.CID = v[0]
	}
	if v, ok := findTag(packets, emv.TagATC); ok && len(v) == 2 {
		t.out.ATC = binary.BigEndian.Uint16(v)
	}
	if len(t.out.Cryptogram) == 0 {
		return errors.New("generate ac response carries no cryptogram")
	}

	return nil
}

func firstAID(fci []byte) ([]byte, error) {
	packets, err := bertlv.Decode(fci)
	if err != nil {
		return nil, fmt.Errorf("ppse response: %w", err)
	}
	aid, ok := findTag(packets, emv.TagApplicationID)
	if !ok {
		return nil, ErrNoApplication
	}

	return aid, nil
}

// applicationFileLocator extracts the AFL from a format 1 or format 2
// GET PROCESSING OPTIONS response.
func applicationFileLocator(data []byte) ([]byte, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("gpo response: %w", err)
	}
	if p, ok := bertlv.FindTagByPath(packets, emv.TagResponseTemplate1.String()); ok {
		if len(p.Value) < 2 {
			return nil, errors.New("gpo response too short")
		}

		return p.Value[2:], nil
	}
	if v, ok := findTag(packets, emv.TagAFL); ok {
		return v, nil
	}

	return nil, errors.New("gpo response carries no afl")
}

// findTag returns the value of the first occurrence of tag in packets.
// Each top level packet is searched in turn.
func findTag(packets []bertlv.TLV, tag tlv.Tag) ([]byte, bool) {
	name := tag.String()
	for _, p := range packets {
		if found, ok := bertlv.FindFirstTag([]bertlv.TLV{p}, name); ok {
			return found.Value, true
		}
	}

	return nil, false
}

// pdolData is the command template carrying TTQ, amount, currency and country.
func pdolData(req Request) ([]byte, error) {
	amount, err := cryptoutils.NumericBCD(req.Amount, 6)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	currency, err := cryptoutils.EncodeBCD(req.CurrencyCode)
	if err != nil || len(currency) != 2 {
		return nil, fmt.Errorf("currency code %q must be 4 digits", req.CurrencyCode)
	}
	country, err := cryptoutils.EncodeBCD(req.CountryCode)
	if err != nil || len(country) != 2 {
		return nil, fmt.Errorf("country code %q must be 4 digits", req.CountryCode)
	}

	value := make([]byte, 0, 14)
	value = append(value, ttq...)
	value = append(value, amount...)
	value = append(value, currency...)
	value = append(value, country...)

	b := tlv.NewBuilder()
	b.AppendPrimitive(emv.TagCommandTemplate, value)

	return b.Bytes()
}

// cdolData is transaction type, date and unpredictable number.
func cdolData(req Request) ([]byte, error) {
	date, err := cryptoutils.EncodeBCD(req.Date.Format("060102"))
	if err != nil {
		return nil, err
	}
	un := req.UnpredictableNumber
	if len(un) == 0 {
		un = make([]byte, 4)
		if _, err := rand.Read(un); err != nil {
			return nil, fmt.Errorf("unpredictable number: %w", err)
		}
	}
	if len(un) != 4 {
		return nil, fmt.Errorf("unpredictable number must be 4 bytes, got %d", len(un))
	}

	out := make([]byte, 0, 8)
	out = append(out, 0x00) // purchase
	out = append(out, date...)

	return append(out, un...), nil
}
