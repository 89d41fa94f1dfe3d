package hce

import "github.com/andrei-cloud/go_hce/internal/apdu"

const (
	claISO         = 0x00
	claProprietary = 0x80

	insSelect     = 0xA4
	insGPO        = 0xA8
	insReadRecord = 0xB2
	insGenerateAC = 0xAE
)

// handlerFunc answers a command in the current state. On success it returns
// the next state and the response data; on error the state is kept.
type handlerFunc func(e *Engine, st state, cmd apdu.Command) (state, []byte, error)

type handler struct {
	name        string
	description string
	fn          handlerFunc
}

var handlers = map[[2]byte]handler{
	{claISO, insSelect}:             {"SELECT", "Select application by DF name", handleSelect},
	{claProprietary, insGPO}:        {"GPO", "Get processing options", handleGPO},
	{claISO, insReadRecord}:         {"READ RECORD", "Read record from short file", handleReadRecord},
	{claProprietary, insGenerateAC}: {"GENERATE AC", "Generate application cryptogram", handleGenerateAC},
}

func lookup(cmd apdu.Command) (handler, bool) {
	h, ok := handlers[[2]byte{cmd.CLA, cmd.INS}]

	return h, ok
}

// Describe returns the name and description of the command carried by frame,
// for logging.
func Describe(frame []byte) (string, string) {
	if len(frame) < 2 {
		return "MALFORMED", "Frame shorter than a command header"
	}
	if h, ok := handlers[[2]byte{frame[0], frame[1]}]; ok {
		return h.name, h.description
	}

	return "UNKNOWN", "Command not supported"
}
