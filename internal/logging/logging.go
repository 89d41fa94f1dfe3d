package logging

import (
	"encoding/hex"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the zerolog logger with the given level and output format.
// Unknown levels fall back to info.
func InitLogger(level string, human bool) {
	initLogger(os.Stdout, level, human)
}

func initLogger(out io.Writer, level string, human bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano // always initialize base logger with timestamp.
	base := zerolog.New(out).With().Timestamp().Logger()
	if human {
		log.Logger = base.Output(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339Nano,
		})
	} else {
		log.Logger = base
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// LogCommand logs a received command APDU with structured fields.
func LogCommand(
	client string,
	command string,
	description string,
	frame []byte,
	activeConns int,
) {
	log.Info().
		Str("event", "command_received").
		Str("client", client).
		Str("command", command).
		Str("description", description).
		Str("apdu_hex", strings.ToUpper(hex.EncodeToString(frame))).
		Int("active_connections", activeConns).
		Msg("received command")
}

// LogResponse logs a sent response APDU with structured fields.
func LogResponse(
	client string,
	command string,
	response []byte,
	elapsed time.Duration,
	activeConns int,
) {
	sw := ""
	if len(response) >= 2 {
		sw = strings.ToUpper(hex.EncodeToString(response[len(response)-2:]))
	}
	log.Info().
		Str("event", "response_sent").
		Str("client", client).
		Str("command", command).
		Str("status_word", sw).
		Str("response_hex", strings.ToUpper(hex.EncodeToString(response))).
		Dur("elapsed", elapsed).
		Int("active_connections", activeConns).
		Msg("sent response")
}
