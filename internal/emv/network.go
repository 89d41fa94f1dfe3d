package emv

import (
	"bytes"
	"strings"
)

// Network identifiers stored on card records.
const (
	NetworkVisa       = "VISA"
	NetworkMastercard = "MASTERCARD"
	NetworkAmex       = "AMEX"
	NetworkDiscover   = "DISCOVER"
	NetworkUnknown    = "UNKNOWN"
)

// PPSEName is the proximity payment system environment DF name.
var PPSEName = []byte("2PAY.SYS.DDF01")

type network struct {
	name string
	rid  []byte
	aid  []byte
}

var networks = []network{
	{NetworkVisa, []byte{0xA0, 0x00, 0x00, 0x00, 0x03}, []byte{0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10}},
	{NetworkMastercard, []byte{0xA0, 0x00, 0x00, 0x00, 0x04}, []byte{0xA0, 0x00, 0x00, 0x00, 0x04, 0x10, 0x10}},
	{NetworkAmex, []byte{0xA0, 0x00, 0x00, 0x00, 0x25}, []byte{0xA0, 0x00, 0x00, 0x00, 0x25, 0x01, 0x08, 0x01}},
	{NetworkDiscover, []byte{0xA0, 0x00, 0x00, 0x01, 0x52}, []byte{0xA0, 0x00, 0x00, 0x01, 0x52, 0x30, 0x10}},
}

// NetworkForAID returns the network whose registered application provider
// identifier prefixes aid, or NetworkUnknown.
func NetworkForAID(aid []byte) string {
	for _, n := range networks {
		if bytes.HasPrefix(aid, n.rid) {
			return n.name
		}
	}

	return NetworkUnknown
}

// AIDForNetwork returns the default application identifier for a network.
func AIDForNetwork(name string) ([]byte, bool) {
	for _, n := range networks {
		if strings.EqualFold(n.name, name) {
			return append([]byte(nil), n.aid...), true
		}
	}

	return nil, false
}

// NetworkForPAN guesses the network from the PAN's leading digits.
func NetworkForPAN(pan string) string {
	switch {
	case strings.HasPrefix(pan, "4"):
		return NetworkVisa
	case strings.HasPrefix(pan, "34"), strings.HasPrefix(pan, "37"):
		return NetworkAmex
	case strings.HasPrefix(pan, "6011"), strings.HasPrefix(pan, "65"):
		return NetworkDiscover
	case len(pan) >= 2 && pan[0] == '5' && pan[1] >= '1' && pan[1] <= '5',
		strings.HasPrefix(pan, "2"):
		return NetworkMastercard
	}

	return NetworkUnknown
}
