package emv

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andrei-cloud/go_hce/internal/tlv"
	"github.com/andrei-cloud/go_hce/pkg/cryptoutils"
)

// ErrRecordNotFound is returned for an (SFI, record) pair the card does not hold.
var ErrRecordNotFound = errors.New("record not found")

// ErrInvalidExpiry is returned when an expiry is not a valid MM/YY value.
var ErrInvalidExpiry = errors.New("invalid expiry")

const (
	serviceCode   = "101"
	discretionary = "0000000000"
	maxNameLength = 26
)

var (
	// AIP advertises the capabilities the emulated card supports.
	AIP = []byte{0x5F, 0x00}
	// AFL points at SFI 1 record 1 and SFI 2 records 1-2.
	AFL = []byte{0x08, 0x01, 0x01, 0x00, 0x10, 0x01, 0x02, 0x01}
	// CardRiskData is returned in SFI 2 record 2.
	CardRiskData = []byte{0x1F, 0x03}
	// ApplicationCapabilities is returned alongside CardRiskData.
	ApplicationCapabilities = []byte{0x60, 0x04}
	// TSIOfflineDataAuthenticated is the transaction status information returned with every AC.
	TSIOfflineDataAuthenticated = []byte{0x60, 0x00}
)

// PDOL lists the terminal data requested in GET PROCESSING OPTIONS.
var PDOL = []tlv.DOLEntry{
	{Tag: TagTTQ, Length: 4},
	{Tag: TagAmountAuthorized, Length: 6},
	{Tag: TagTransactionCurrencyCode, Length: 2},
	{Tag: TagTerminalCountryCode, Length: 2},
}

// CDOL1 lists the terminal data requested in the first GENERATE AC.
var CDOL1 = []tlv.DOLEntry{
	{Tag: TagTransactionType, Length: 1},
	{Tag: TagTransactionDate, Length: 3},
	{Tag: TagUnpredictableNumber, Length: 4},
}

// Profile is the cardholder data exposed through READ RECORD.
type Profile struct {
	PAN            string
	Expiry         string // MM/YY
	CardholderName string
	PANSequence    string
	ATC            uint16
}

// ACResponse carries the dynamic fields of a GENERATE AC response.
type ACResponse struct {
	TCHash     []byte
	ATC        uint16
	CID        byte
	Cryptogram []byte
	IAD        []byte
}

func appendDOL(b *tlv.Builder, tag tlv.Tag, dol []tlv.DOLEntry) {
	b.Constructed(tag, func(b *tlv.Builder) {
		for _, e := range dol {
			b.AppendTagLength(e.Tag, e.Length)
		}
	})
}

// FCI builds the SELECT response for the payment application.
func FCI(aid []byte, label string) ([]byte, error) {
	b := tlv.NewBuilder()
	b.Constructed(TagFCITemplate, func(b *tlv.Builder) {
		b.AppendPrimitive(TagDFName, aid)
		b.AppendPrimitive(TagApplicationLabel, []byte(label))
		b.Constructed(TagFCIProprietary, func(b *tlv.Builder) {
			appendDOL(b, TagPDOL, PDOL)
		})
	})

	return b.Bytes()
}

// PPSE builds the SELECT response for the proximity payment directory,
// listing a single application.
func PPSE(aid []byte, label string) ([]byte, error) {
	b := tlv.NewBuilder()
	b.Constructed(TagFCITemplate, func(b *tlv.Builder) {
		b.AppendPrimitive(TagDFName, PPSEName)
		b.Constructed(TagFCIProprietary, func(b *tlv.Builder) {
			b.Constructed(TagIssuerDiscretionaryData, func(b *tlv.Builder) {
				b.Constructed(TagDirectoryEntry, func(b *tlv.Builder) {
					b.AppendPrimitive(TagApplicationID, aid)
					b.AppendPrimitive(TagApplicationLabel, []byte(label))
					b.AppendPrimitive(TagApplicationPriority, []byte{0x01})
				})
			})
		})
	})

	return b.Bytes()
}

// ProcessingOptions builds the GET PROCESSING OPTIONS response in format 1: AIP || AFL.
func ProcessingOptions() ([]byte, error) {
	b := tlv.NewBuilder()
	value := make([]byte, 0, len(AIP)+len(AFL))
	value = append(value, AIP...)
	b.AppendPrimitive(TagResponseTemplate1, append(value, AFL...))

	return b.Bytes()
}

// ReadRecord builds the record template for (sfi, record).
func ReadRecord(p Profile, sfi, record byte) ([]byte, error) {
	b := tlv.NewBuilder()

	switch {
	case sfi == 1 && record == 1:
		pan, err := cryptoutils.PackNibbles(p.PAN)
		if err != nil {
			return nil, fmt.Errorf("pan: %w", err)
		}
		expiry, err := ExpirationDate(p.Expiry)
		if err != nil {
			return nil, err
		}
		b.Constructed(TagRecordTemplate, func(b *tlv.Builder) {
			b.AppendPrimitive(TagPAN, pan)
			b.AppendPrimitive(TagExpirationDate, expiry)
			b.AppendPrimitive(TagCardholderName, []byte(CardholderName(p.CardholderName)))
		})
	case sfi == 2 && record == 1:
		track2, err := Track2(p.PAN, p.Expiry)
		if err != nil {
			return nil, err
		}
		psn, err := cryptoutils.EncodeBCD(p.PANSequence)
		if err != nil || len(psn) != 1 {
			return nil, fmt.Errorf("pan sequence %q: invalid", p.PANSequence)
		}
		b.Constructed(TagRecordTemplate, func(b *tlv.Builder) {
			b.AppendPrimitive(TagTrack2Equivalent, track2)
			b.AppendPrimitive(TagPANSequenceNumber, psn)
			b.AppendPrimitive(TagATC, []byte{byte(p.ATC >> 8), byte(p.ATC)})
		})
	case sfi == 2 && record == 2:
		b.Constructed(TagRecordTemplate, func(b *tlv.Builder) {
			b.AppendPrimitive(TagCardRiskData, CardRiskData)
			b.AppendPrimitive(TagCryptogramInfoData, ApplicationCapabilities)
			appendDOL(b, TagCDOL1, CDOL1)
		})
	default:
		return nil, fmt.Errorf("%w: sfi %d record %d", ErrRecordNotFound, sfi, record)
	}

	return b.Bytes()
}

// GenerateAC builds the GENERATE AC response in format 2.
func GenerateAC(r ACResponse) ([]byte, error) {
	b := tlv.NewBuilder()
	b.Constructed(TagResponseTemplate2, func(b *tlv.Builder) {
		b.AppendPrimitive(TagTSI, TSIOfflineDataAuthenticated)
		b.AppendPrimitive(TagTCHash, r.TCHash)
		b.AppendPrimitive(TagATC, []byte{byte(r.ATC >> 8), byte(r.ATC)})
		b.AppendPrimitive(TagCryptogramInfoData, []byte{r.CID})
		b.AppendPrimitive(TagApplicationCryptogram, r.Cryptogram)
		b.AppendPrimitive(TagIssuerApplicationData, r.IAD)
	})

	return b.Bytes()
}

// Track2 builds track 2 equivalent data: PAN 'D' YYMM service code discretionary data.
func Track2(pan, expiry string) ([]byte, error) {
	month, year, err := ParseExpiry(expiry)
	if err != nil {
		return nil, err
	}

	return cryptoutils.PackNibbles(fmt.Sprintf("%sD%02d%02d%s%s", pan, year%100, month, serviceCode, discretionary))
}

// ExpirationDate encodes MM/YY as YYMMDD BCD using the last day of the month.
func ExpirationDate(expiry string) ([]byte, error) {
	month, year, err := ParseExpiry(expiry)
	if err != nil {
		return nil, err
	}

	day := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()

	return cryptoutils.EncodeBCD(fmt.Sprintf("%02d%02d%02d", year%100, month, day))
}

// ParseExpiry splits an MM/YY expiry into month and four digit year.
func ParseExpiry(expiry string) (int, int, error) {
	mm, yy, ok := strings.Cut(expiry, "/")
	if !ok || len(mm) != 2 || len(yy) != 2 || !cryptoutils.IsDigits(mm) || !cryptoutils.IsDigits(yy) {
		return 0, 0, fmt.Errorf("%w: %q is not MM/YY", ErrInvalidExpiry, expiry)
	}

	month, _ := strconv.Atoi(mm)
	year, _ := strconv.Atoi(yy)
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: month %d", ErrInvalidExpiry, month)
	}

	return month, 2000 + year, nil
}

// Expired reports whether expiry is before the month of now.
func Expired(expiry string, now time.Time) bool {
	month, year, err := ParseExpiry(expiry)
	if err != nil {
		return true
	}

	return year < now.Year() || (year == now.Year() && month < int(now.Month()))
}

// CardholderName formats a name for tag 5F20: upper case, at most 26 bytes,
// never splitting a multi-byte character.
func CardholderName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return " /"
	}
	if len(name) <= maxNameLength {
		return name
	}

	cut := maxNameLength
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}

	return name[:cut]
}
