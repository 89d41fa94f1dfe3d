package hce

import (
	"fmt"
	"time"

	"github.com/andrei-cloud/go_hce/internal/cryptogram"
	"github.com/andrei-cloud/go_hce/internal/store"
)

// Phase names the session states.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSelected
	PhaseOptionsSet
	PhaseRecordsReadable
	PhaseCryptogramIssued
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelected:
		return "selected"
	case PhaseOptionsSet:
		return "options_set"
	case PhaseRecordsReadable:
		return "records_readable"
	case PhaseCryptogramIssued:
		return "cryptogram_issued"
	}

	return fmt.Sprintf("Phase(%d)", int(p))
}

// state is one of the session variants below. Each variant carries only the
// fields valid in its phase; transitions return a new value.
type state interface {
	phase() Phase
}

// session is the context created by SELECT.
type session struct {
	card      store.Card
	aid       []byte
	network   string
	startedAt time.Time
}

// terminalData is captured from the GET PROCESSING OPTIONS data field.
type terminalData struct {
	ttq      []byte
	amount   uint64
	currency string
	country  string
}

type idleState struct{}

type selectedState struct {
	session
}

type optionsSetState struct {
	session
	terminal terminalData
}

type recordsReadableState struct {
	session
	terminal terminalData
}

type cryptogramIssuedState struct {
	session
	terminal       terminalData
	transactionID  string
	cryptogramType cryptogram.Type
}

func (idleState) phase() Phase             { return PhaseIdle }
func (selectedState) phase() Phase         { return PhaseSelected }
func (optionsSetState) phase() Phase       { return PhaseOptionsSet }
func (recordsReadableState) phase() Phase  { return PhaseRecordsReadable }
func (cryptogramIssuedState) phase() Phase { return PhaseCryptogramIssued }

func selectApplication(s session) selectedState {
	return selectedState{session: s}
}

func (s selectedState) setOptions(t terminalData) optionsSetState {
	return optionsSetState{session: s.session, terminal: t}
}

func (s optionsSetState) readRecord() recordsReadableState {
	return recordsReadableState(s)
}

func (s recordsReadableState) readRecord() recordsReadableState {
	return s
}

func (s recordsReadableState) issue(txnID string, t cryptogram.Type) cryptogramIssuedState {
	return cryptogramIssuedState{
		session:        s.session,
		terminal:       s.terminal,
		transactionID:  txnID,
		cryptogramType: t,
	}
}
