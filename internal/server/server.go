package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	anetserver "github.com/andrei-cloud/anet/server"
	"github.com/andrei-cloud/go_hce/internal/hce"
	"github.com/andrei-cloud/go_hce/internal/logging"
	"github.com/rs/zerolog/log"
)

// logAdapter implements anet.Logger using zerolog.
type logAdapter struct{}

func (l logAdapter) Print(v ...any) {
	log.Info().Msg(fmt.Sprint(v...))
}

func (l logAdapter) Printf(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (l logAdapter) Infof(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (l logAdapter) Warnf(format string, v ...any) {
	log.Warn().Msgf(format, v...)
}

func (l logAdapter) Errorf(format string, v ...any) {
	log.Error().Msgf(format, v...)
}

// Processor turns a command APDU into a response APDU.
type Processor interface {
	Process(frame []byte) []byte
	Deactivate()
}

// Server exposes a card Processor to terminals over TCP. Every frame carries
// one command APDU and is answered with one response APDU.
type Server struct {
	address     string
	srv         *anetserver.Server
	card        Processor
	activeConns int32

	mu         sync.Mutex
	lastClient string
}

// NewServer configures and returns the card server instance.
func NewServer(address string, card Processor) (*Server, error) {
	cfg := &anetserver.ServerConfig{
		MaxConns:        100,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     0 * time.Second, // disable idle connection closure.
		ShutdownTimeout: 5 * time.Second,
		Logger:          logAdapter{},
	}

	s := &Server{
		address: address,
		card:    card,
	}
	srv, err := anetserver.NewServer(address, anetserver.HandlerFunc(s.handle), cfg)
	if err != nil {
		return nil, fmt.Errorf("server setup failed: %w", err)
	}
	s.srv = srv

	return s, nil
}

// Start begins listening for terminal connections.
func (s *Server) Start() error {
	log.Info().Str("address", s.address).Msg("server started")
	return s.srv.Start()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	return s.srv.Stop()
}

func (s *Server) handle(conn *anetserver.ServerConn, data []byte) ([]byte, error) {
	client := conn.Conn.RemoteAddr().String()
	active := int(atomic.AddInt32(&s.activeConns, 1))
	defer atomic.AddInt32(&s.activeConns, -1)

	s.mu.Lock()
	defer s.mu.Unlock()

	// A different terminal means the previous field was left.
	if s.lastClient != "" && s.lastClient != client {
		log.Debug().
			Str("event", "terminal_changed").
			Str("previous", s.lastClient).
			Str("client", client).
			Msg("deactivating card session")
		s.card.Deactivate()
	}
	s.lastClient = client

	start := time.Now()
	name, description := hce.Describe(data)
	logging.LogCommand(client, name, description, data, active)

	resp := s.card.Process(data)

	logging.LogResponse(client, name, resp, time.Since(start), active)

	return resp, nil
}
