package connection

import (
	"context"
	"fmt"
	"time"
)

// Connection represents a connection to a JsonKeep server.
type Connection struct {
	Name     string
	Server   string
	APIKeyID string
	APIKey   string
	CACert   string
}

// Manager tracks the active server connection for interactive use.
type Manager struct {
	current *Connection
	client  *HTTPClient
}

// NewManager creates a new connection manager.
func NewManager() *Manager {
	return &Manager{}
}

// Connect verifies the server is reachable and makes it the current
// connection.
func (m *Manager) Connect(conn *Connection) error {
	if conn == nil || conn.Server == "" {
		return fmt.Errorf("server address required")
	}

	var opts []ClientOption
	if conn.CACert != "" {
		opts = append(opts, WithCACert(conn.CACert))
	}
	client := NewHTTPClient(conn.Server, conn.APIKeyID, conn.APIKey, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	if err := ParseResponse(resp, nil); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	m.current = conn
	m.client = client
	return nil
}

// Disconnect drops the current connection.
func (m *Manager) Disconnect() {
	m.current = nil
	m.client = nil
}

// Current returns the current connection.
func (m *Manager) Current() *Connection {
	return m.current
}

// Client returns the HTTP client for the current connection, or nil
// when disconnected.
func (m *Manager) Client() *HTTPClient {
	return m.client
}

// IsConnected returns true if connected to a server.
func (m *Manager) IsConnected() bool {
	return m.current != nil
}
