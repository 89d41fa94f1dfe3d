// Package emv holds EMV tag identifiers and the static data templates the
// emulated card returns.
package emv

import "github.com/andrei-cloud/go_hce/internal/tlv"

// EMV tags used by the card application and the terminal simulator.
const (
	TagApplicationID           tlv.Tag = 0x4F
	TagApplicationLabel        tlv.Tag = 0x50
	TagTrack2Equivalent        tlv.Tag = 0x57
	TagPAN                     tlv.Tag = 0x5A
	TagDirectoryEntry          tlv.Tag = 0x61
	TagFCITemplate             tlv.Tag = 0x6F
	TagRecordTemplate          tlv.Tag = 0x70
	TagResponseTemplate2       tlv.Tag = 0x77
	TagResponseTemplate1       tlv.Tag = 0x80
	TagAIP                     tlv.Tag = 0x82
	TagCommandTemplate         tlv.Tag = 0x83
	TagDFName                  tlv.Tag = 0x84
	TagApplicationPriority     tlv.Tag = 0x87
	TagCDOL1                   tlv.Tag = 0x8C
	TagAFL                     tlv.Tag = 0x94
	TagTCHash                  tlv.Tag = 0x98
	TagTransactionDate         tlv.Tag = 0x9A
	TagTSI                     tlv.Tag = 0x9B
	TagTransactionType         tlv.Tag = 0x9C
	TagFCIProprietary          tlv.Tag = 0xA5
	TagCardholderName          tlv.Tag = 0x5F20
	TagExpirationDate          tlv.Tag = 0x5F24
	TagTransactionCurrencyCode tlv.Tag = 0x5F2A
	TagPANSequenceNumber       tlv.Tag = 0x5F34
	TagAmountAuthorized        tlv.Tag = 0x9F02
	TagIssuerApplicationData   tlv.Tag = 0x9F10
	TagTerminalCountryCode     tlv.Tag = 0x9F1A
	TagApplicationCryptogram   tlv.Tag = 0x9F26
	TagCryptogramInfoData      tlv.Tag = 0x9F27
	TagATC                     tlv.Tag = 0x9F36
	TagUnpredictableNumber     tlv.Tag = 0x9F37
	TagPDOL                    tlv.Tag = 0x9F38
	TagTTQ                     tlv.Tag = 0x9F66
	TagCardRiskData            tlv.Tag = 0x9F6C
	TagIssuerDiscretionaryData tlv.Tag = 0xBF0C
)

// TagNames maps upper case hex tags to their EMV names, for tlv.Describe.
var TagNames = map[string]string{
	"4F":   "Application Identifier",
	"50":   "Application Label",
	"57":   "Track 2 Equivalent Data",
	"5A":   "Application PAN",
	"61":   "Application Template",
	"6F":   "File Control Information Template",
	"70":   "Record Template",
	"77":   "Response Message Template Format 2",
	"80":   "Response Message Template Format 1",
	"82":   "Application Interchange Profile",
	"83":   "Command Template",
	"84":   "Dedicated File Name",
	"87":   "Application Priority Indicator",
	"8C":   "CDOL1",
	"94":   "Application File Locator",
	"98":   "Transaction Certificate Hash Value",
	"9A":   "Transaction Date",
	"9B":   "Transaction Status Information",
	"9C":   "Transaction Type",
	"A5":   "FCI Proprietary Template",
	"5F20": "Cardholder Name",
	"5F24": "Application Expiration Date",
	"5F2A": "Transaction Currency Code",
	"5F34": "PAN Sequence Number",
	"9F02": "Amount, Authorised",
	"9F10": "Issuer Application Data",
	"9F1A": "Terminal Country Code",
	"9F26": "Application Cryptogram",
	"9F27": "Cryptogram Information Data",
	"9F36": "Application Transaction Counter",
	"9F37": "Unpredictable Number",
	"9F38": "PDOL",
	"9F66": "Terminal Transaction Qualifiers",
	"9F6C": "Card Transaction Qualifiers",
	"BF0C": "FCI Issuer Discretionary Data",
}
