package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// Describe renders a TLV buffer as an indented tree, one element per line.
// names maps upper case hex tags to labels; unknown tags are printed bare.
func Describe(data []byte, names map[string]string) (string, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return "", fmt.Errorf("bertlv decode failed: %w", err)
	}

	var sb strings.Builder
	describePackets(&sb, packets, names, 0)

	return strings.TrimSuffix(sb.String(), "\n"), nil
}

func describePackets(sb *strings.Builder, packets []bertlv.TLV, names map[string]string, depth int) {
	indent := strings.Repeat("  ", depth)

	for _, p := range packets {
		tag := strings.ToUpper(p.Tag)
		label := tag
		if name, ok := names[tag]; ok {
			label = fmt.Sprintf("%s (%s)", tag, name)
		}

		if len(p.TLVs) > 0 {
			fmt.Fprintf(sb, "%s%s\n", indent, label)
			describePackets(sb, p.TLVs, names, depth+1)

			continue
		}

		fmt.Fprintf(sb, "%s%s: %s\n", indent, label, strings.ToUpper(hex.EncodeToString(p.Value)))
	}
}
