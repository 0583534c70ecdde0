package httpserver

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/yndnr/jsonkeep-go/internal/server/config"
)

// Server represents the HTTP server.
//
// @req RQ-0301
// @design DS-0301
type Server struct {
	httpServer *http.Server
	handler    http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithTLSConfig sets the TLS configuration. With a GetCertificate
// callback in place, ListenAndServeTLS can be called with empty file
// paths and certificates hot-reload without a restart.
func WithTLSConfig(tlsCfg *tls.Config) Option {
	return func(s *Server) {
		s.httpServer.TLSConfig = tlsCfg
	}
}

// New creates a new HTTP server with timeouts from configuration.
//
// @design DS-0301
func New(cfg config.HTTPConfig, handler http.Handler, opts ...Option) *Server {
	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		handler: handler,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe starts the HTTP server.
//
// @design DS-0301
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// ListenAndServeTLS starts the HTTPS server.
//
// @design DS-0301
func (s *Server) ListenAndServeTLS(certFile, keyFile string) error {
	return s.httpServer.ListenAndServeTLS(certFile, keyFile)
}

// Shutdown gracefully shuts down the server.
//
// @design DS-0301
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
