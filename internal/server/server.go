// Package server implements the TCP accept loop: accept with a bounded
// wait, hand each connection to an executor, and stop once the running flag
// is cleared or Close is called.
package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/omochice/netstream/internal/executor"
	"github.com/omochice/netstream/internal/transport/tcp"
	"github.com/omochice/netstream/pkg/stream"
)

// DefaultAcceptWait bounds how long the loop waits for a peer before it
// re-checks the running flag.
const DefaultAcceptWait = 100 * time.Millisecond

// DefaultDetectWait bounds how long protocol detection waits for the first
// bytes of a connection.
const DefaultDetectWait = 500 * time.Millisecond

// ErrAlreadyServing is returned when Serve is called on a server that is
// already serving or has stopped.
var ErrAlreadyServing = errors.New("server: already serving")

// State is the lifecycle phase of a Server.
type State int32

const (
	Idle State = iota
	Listening
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Handler serves one accepted connection. The handle is closed after the
// handler returns; clones taken by the handler keep the connection open.
type Handler func(*stream.Shared) error

// Config describes the listening side of a server.
type Config struct {
	Endpoint   tcp.Endpoint
	AcceptWait time.Duration
	// DetectWebSocket upgrades connections that open with an HTTP request.
	// The handler starts once the peer has sent four bytes or DetectWait has
	// passed, so a handler that speaks first is delayed by up to DetectWait.
	DetectWebSocket bool
	DetectWait      time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for lifecycle and handler failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// Server accepts connections and dispatches them to a Handler.
type Server struct {
	cfg     Config
	exec    executor.Executor
	handler Handler
	log     zerolog.Logger

	mu      sync.Mutex
	ln      *tcp.Listener
	serving bool
	closed  bool

	state atomic.Int32
}

// New creates a server. Nothing is bound until Listen or Serve.
func New(cfg Config, exec executor.Executor, h Handler, opts ...Option) *Server {
	if cfg.AcceptWait <= 0 {
		cfg.AcceptWait = DefaultAcceptWait
	}
	if cfg.DetectWait <= 0 {
		cfg.DetectWait = DefaultDetectWait
	}
	s := &Server{
		cfg:     cfg,
		exec:    exec,
		handler: h,
		log:     log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "server").Logger()
	return s
}

// Listen binds the configured endpoint. Calling it again is a no-op.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	if s.State() != Idle {
		return ErrAlreadyServing
	}
	ln, err := tcp.Listen(s.cfg.Endpoint)
	if err != nil {
		return err
	}
	s.ln = ln
	s.setState(Listening)
	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	return nil
}

// Serve runs the accept loop until running is false or Close is called.
// Handlers still running when Serve returns are not waited for.
func (s *Server) Serve(running *atomic.Bool) error {
	s.mu.Lock()
	if s.serving || s.State() > Listening {
		s.mu.Unlock()
		return ErrAlreadyServing
	}
	s.serving = true
	closed := s.closed
	s.mu.Unlock()

	if closed {
		s.setState(Stopped)
		return nil
	}
	if err := s.Listen(); err != nil {
		return err
	}
	defer s.stop()

	for running.Load() {
		conn, err := s.ln.AcceptRaw(s.cfg.AcceptWait)
		switch {
		case err == nil:
			s.dispatch(conn)
		case errors.Is(err, tcp.ErrAcceptTimeout):
		case errors.Is(err, stream.ErrListenerClosed):
			return nil
		default:
			s.log.Warn().Err(err).Msg("accept failed")
		}
	}
	return nil
}

func (s *Server) stop() {
	s.setState(Stopping)
	if err := s.ln.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close listener")
	}
	s.setState(Stopped)
}

func (s *Server) dispatch(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	err := s.exec.Submit(func() {
		s.serveConn(conn, remote)
	})
	if err != nil {
		s.log.Error().Err(err).Str("remote", remote).Msg("failed to dispatch connection")
		conn.Close()
	}
}

func (s *Server) serveConn(conn net.Conn, remote string) {
	shared, proto, err := openStream(conn, s.cfg.DetectWebSocket, s.cfg.DetectWait)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", remote).Msg("failed to open stream")
		conn.Close()
		return
	}
	defer shared.Close()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("remote", remote).Msg("handler panicked")
		}
	}()

	s.log.Debug().Str("remote", remote).Stringer("protocol", proto).Msg("connection accepted")
	err = s.handler(shared)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		s.log.Debug().Str("remote", remote).Msg("peer closed the stream")
	default:
		s.log.Warn().Err(err).Str("remote", remote).Msg("handler failed")
	}
}

// Close stops the loop without waiting for the next poll. Safe to call at
// any time and more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Endpoint returns the bound endpoint with an ephemeral port resolved.
func (s *Server) Endpoint() tcp.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return s.cfg.Endpoint
	}
	return s.ln.Endpoint()
}

func (s *Server) State() State {
	return State(s.state.Load())
}

func (s *Server) setState(st State) {
	s.state.Store(int32(st))
	if st != Listening {
		s.log.Debug().Stringer("state", st).Msg("state changed")
	}
}

// Run listens on ep and serves until running is cleared.
func Run(exec executor.Executor, h Handler, running *atomic.Bool, ep tcp.Endpoint, opts ...Option) error {
	return New(Config{Endpoint: ep}, exec, h, opts...).Serve(running)
}
