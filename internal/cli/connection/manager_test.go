package connection

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// healthServer answers /healthz the way a running server does.
func healthServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("path = %q, want /healthz", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(okEnvelope(`{"status":"healthy","time":"2026-01-01T00:00:00Z"}`)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewManager(t *testing.T) {
	m := NewManager()
	if m == nil {
		t.Fatal("NewManager returned nil")
	}
	if m.Current() != nil {
		t.Error("new manager should have no current connection")
	}
	if m.Client() != nil {
		t.Error("new manager should have no client")
	}
}

func TestManager_Connect(t *testing.T) {
	srv := healthServer(t)
	m := NewManager()

	conn := &Connection{
		Name:     "test",
		Server:   srv.URL,
		APIKeyID: "jkak-test",
		APIKey:   "jkas_secret",
	}

	if err := m.Connect(conn); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if m.Current() != conn {
		t.Error("Current() should return the connected connection")
	}
	if m.Client() == nil {
		t.Error("Client() should be set after Connect")
	}
	if !m.IsConnected() {
		t.Error("IsConnected() should return true after Connect")
	}
}

func TestManager_Connect_Errors(t *testing.T) {
	m := NewManager()

	if err := m.Connect(nil); err == nil {
		t.Error("Connect(nil) should fail")
	}
	if err := m.Connect(&Connection{Server: ""}); err == nil {
		t.Error("Connect with empty server should fail")
	}
	// Closed port: the health probe cannot reach anything.
	if err := m.Connect(&Connection{Server: "127.0.0.1:1"}); err == nil {
		t.Error("Connect to unreachable server should fail")
	}
	if m.IsConnected() {
		t.Error("failed Connect must not leave a current connection")
	}
}

func TestManager_Connect_UnhealthyServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"code":"JK-SYS-5030","message":"not ready","request_id":"r","timestamp":1}`))
	}))
	defer srv.Close()

	m := NewManager()
	if err := m.Connect(&Connection{Server: srv.URL}); err == nil {
		t.Error("Connect should fail when the health check reports an error")
	}
}

func TestManager_Disconnect(t *testing.T) {
	srv := healthServer(t)
	m := NewManager()

	if err := m.Connect(&Connection{Name: "test", Server: srv.URL}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	m.Disconnect()

	if m.Current() != nil {
		t.Error("Current() should return nil after Disconnect")
	}
	if m.Client() != nil {
		t.Error("Client() should return nil after Disconnect")
	}
	if m.IsConnected() {
		t.Error("IsConnected() should return false after Disconnect")
	}
}

func TestConnection_Fields(t *testing.T) {
	conn := &Connection{
		Name:     "production",
		Server:   "https://api.example.com:5090",
		APIKeyID: "jkak-test",
		APIKey:   "jkas_secret",
		CACert:   "/etc/jsonkeep/ca.pem",
	}

	if conn.Name != "production" {
		t.Errorf("Name = %q, want %q", conn.Name, "production")
	}
	if conn.Server != "https://api.example.com:5090" {
		t.Errorf("Server = %q, want %q", conn.Server, "https://api.example.com:5090")
	}
	if conn.APIKeyID != "jkak-test" {
		t.Errorf("APIKeyID = %q, want %q", conn.APIKeyID, "jkak-test")
	}
	if conn.APIKey != "jkas_secret" {
		t.Errorf("APIKey = %q, want %q", conn.APIKey, "jkas_secret")
	}
	if conn.CACert != "/etc/jsonkeep/ca.pem" {
		t.Errorf("CACert = %q, want %q", conn.CACert, "/etc/jsonkeep/ca.pem")
	}
}
