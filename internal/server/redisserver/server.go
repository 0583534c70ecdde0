package redisserver

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
	"github.com/yndnr/jsonkeep-go/internal/core/service"
	"github.com/yndnr/jsonkeep-go/internal/telemetry/logger"
	"github.com/yndnr/jsonkeep-go/internal/telemetry/metric"
)

// Config holds the Redis listener configuration.
type Config struct {
	// Addr is the listen address. Empty disables the listener.
	Addr string
	// TLSConfig enables TLS on the listener when set.
	TLSConfig *tls.Config
	// ReadTimeout is the timeout for reading a command (default: 30s).
	// Helps prevent slowloris attacks.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing a response (default: 30s).
	WriteTimeout time.Duration
	// IdleTimeout is the timeout for idle connections (default: 5m).
	IdleTimeout time.Duration
	// RateLimit is the maximum number of commands per second per IP (default: 1000).
	// Set to 0 to disable rate limiting.
	RateLimit int
	// AuthDisabled grants every connection admin capabilities without
	// AUTH. Mirrors auth.enabled=false in the server configuration.
	AuthDisabled bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:6390",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
		RateLimit:    1000, // 1000 commands per second per IP
	}
}

// Server represents the Redis protocol server.
//
// @req RQ-0303
// @design DS-0301
type Server struct {
	cfg         *Config
	handler     *CommandHandler
	log         logger.Logger
	metrics     *metric.Registry
	ln          net.Listener
	started     time.Time
	connections atomic.Int64
	running     atomic.Bool
	wg          sync.WaitGroup
}

// ConnState holds the state of a client connection.
type ConnState struct {
	Authenticated bool
	APIKey        *service.APIKeyInfo
	// Database is the attached store data commands address. Empty
	// means db0.
	Database string
}

// Conn represents a single Redis client connection.
type Conn struct {
	netConn net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer

	stateMu sync.RWMutex
	state   ConnState

	closed atomic.Bool
}

func newConn(c net.Conn) *Conn {
	return &Conn{
		netConn: c,
		br:      bufio.NewReader(c),
		bw:      bufio.NewWriter(c),
		state: ConnState{
			Authenticated: false,
			APIKey:        nil,
			Database:      defaultDatabase,
		},
	}
}

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

func (c *Conn) GetState() *ConnState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	st := c.state
	return &st
}

func (c *Conn) SetState(st ConnState) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = st
}

// Database returns the store data commands address, defaulting to db0
// before any SELECT.
func (c *Conn) Database() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.state.Database == "" {
		return defaultDatabase
	}
	return c.state.Database
}

// New creates a new Redis protocol server. The metrics registry is
// optional.
func New(cfg *Config, storeSvc *service.StoreService, authSvc *service.AuthService, log logger.Logger, metrics *metric.Registry) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.Default()
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		started: time.Now(),
	}

	s.handler = NewCommandHandler(storeSvc, authSvc, s, log, metrics)

	return s
}

// Start binds the listener and begins accepting connections. It returns
// once the listener is bound; serving happens on background goroutines.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Addr == "" {
		s.log.Info("redis listener disabled (no address configured)")
		return nil
	}

	var (
		ln  net.Listener
		err error
	)
	if s.cfg.TLSConfig != nil {
		ln, err = tls.Listen("tcp", s.cfg.Addr, s.cfg.TLSConfig)
	} else {
		ln, err = net.Listen("tcp", s.cfg.Addr)
	}
	if err != nil {
		return err
	}

	s.ln = ln
	s.running.Store(true)
	s.log.Info("redis listener started", "address", ln.Addr().String(), "tls", s.cfg.TLSConfig != nil)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
			s.log.Error("redis listener error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or the configured address
// before Start.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.cfg.Addr
}

// Shutdown closes the listener and waits for in-flight connections,
// bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var closeErr error
	if s.ln != nil {
		closeErr = s.ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, newConn(c))
		}()
	}
}

// connTimeouts are the effective per-connection deadlines after
// defaults are applied.
type connTimeouts struct {
	read  time.Duration
	write time.Duration
	idle  time.Duration
}

func (cfg *Config) timeouts() connTimeouts {
	t := connTimeouts{read: cfg.ReadTimeout, write: cfg.WriteTimeout, idle: cfg.IdleTimeout}
	if t.read == 0 {
		t.read = 30 * time.Second
	}
	if t.write == 0 {
		t.write = 30 * time.Second
	}
	if t.idle == 0 {
		t.idle = 5 * time.Minute
	}
	return t
}

// flushError writes a RESP error under the write deadline. The caller
// decides whether the connection survives.
func (c *Conn) flushError(msg string, writeTimeout time.Duration) {
	_ = c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = WriteError(c.bw, msg)
	_ = c.bw.Flush()
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (s *Server) serveConn(ctx context.Context, c *Conn) {
	defer c.Close()

	s.connections.Add(1)
	defer s.connections.Add(-1)
	if s.metrics != nil {
		s.metrics.RESPConnections.Inc()
		defer s.metrics.RESPConnections.Dec()
	}

	// With authentication off every connection runs as admin.
	if s.cfg.AuthDisabled {
		c.SetState(ConnState{
			Authenticated: true,
			APIKey: &service.APIKeyInfo{
				KeyID:   "anonymous",
				Name:    "anonymous",
				Role:    string(domain.RoleAdmin),
				Enabled: true,
			},
			Database: defaultDatabase,
		})
	}

	t := s.cfg.timeouts()

	for {
		// Between commands the connection may sit idle, so the first
		// byte gets the long deadline.
		if err := c.netConn.SetReadDeadline(time.Now().Add(t.idle)); err != nil {
			return
		}
		if _, err := c.br.Peek(1); err != nil {
			switch {
			case errors.Is(err, io.EOF):
			case isTimeout(err):
				s.log.Debug("connection timed out", "remote", c.RemoteAddr())
			default:
				s.log.Debug("connection read error", "remote", c.RemoteAddr(), "error", err)
			}
			return
		}

		// Once a command starts arriving the deadline tightens, so a
		// client cannot trickle bytes forever.
		if err := c.netConn.SetReadDeadline(time.Now().Add(t.read)); err != nil {
			return
		}

		args, err := ReadCommand(c.br)
		switch {
		case errors.Is(err, io.EOF):
			return
		case err != nil && isTimeout(err):
			s.log.Debug("connection timed out", "remote", c.RemoteAddr())
			return
		case errors.Is(err, ErrLimitExceeded):
			// A limit violation closes the connection.
			s.log.Warn("protocol limit exceeded", "remote", c.RemoteAddr(), "error", err)
			c.flushError("ERR protocol limit exceeded", t.write)
			return
		case err != nil:
			c.flushError("ERR protocol error: "+err.Error(), t.write)
			return
		}

		if len(args) == 0 {
			c.flushError("ERR no command", t.write)
			continue
		}

		_ = ctx // reserved for future cancellation integration
		s.handler.Handle(c, args)

		if err := c.netConn.SetWriteDeadline(time.Now().Add(t.write)); err != nil {
			return
		}
		if err := c.bw.Flush(); err != nil {
			return
		}
	}
}
