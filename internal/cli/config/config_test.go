package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server != "http://127.0.0.1:5090" {
		t.Errorf("Server = %q, want %q", cfg.Server, "http://127.0.0.1:5090")
	}
	if cfg.Output != "table" {
		t.Errorf("Output = %q, want %q", cfg.Output, "table")
	}
	if cfg.Connections == nil {
		t.Error("Connections should not be nil")
	}
	if len(cfg.Connections) != 0 {
		t.Errorf("Connections should be empty, got %d", len(cfg.Connections))
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path == "" {
		t.Error("DefaultConfigPath should not be empty")
	}
	if !filepath.IsAbs(path) {
		t.Error("Path should be absolute")
	}

	expected := filepath.Join(".jsonkeep", "cli.yaml")
	if !strings.HasSuffix(path, expected) {
		t.Errorf("Path = %q, should end with %q", path, expected)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing", "cli.yaml"))
	if err != nil {
		t.Errorf("Load should not error for nonexistent file: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load should return default config")
	}
	if cfg.Server != "http://127.0.0.1:5090" {
		t.Error("Should return default config for nonexistent file")
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	content := `server: https://jsonkeep.example.com:5090
api_key_id: jkak-test
api_key: jkas_secret
output: json
connections:
  prod:
    server: https://prod.example.com:5090
    api_key_id: jkak-prod
    api_key: jkas_prodsecret
    ca_cert: /etc/jsonkeep/ca.pem
current_connection: prod
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server != "https://jsonkeep.example.com:5090" {
		t.Errorf("Server = %q", cfg.Server)
	}
	if cfg.APIKeyID != "jkak-test" {
		t.Errorf("APIKeyID = %q", cfg.APIKeyID)
	}
	if cfg.APIKey != "jkas_secret" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.Output != "json" {
		t.Errorf("Output = %q, want json", cfg.Output)
	}
	if cfg.CurrentConnection != "prod" {
		t.Errorf("CurrentConnection = %q, want prod", cfg.CurrentConnection)
	}

	prod, ok := cfg.Profile("prod")
	if !ok {
		t.Fatal("prod profile should exist")
	}
	if prod.Server != "https://prod.example.com:5090" {
		t.Errorf("prod.Server = %q", prod.Server)
	}
	if prod.CACert != "/etc/jsonkeep/ca.pem" {
		t.Errorf("prod.CACert = %q", prod.CACert)
	}

	if _, ok := cfg.Profile("staging"); ok {
		t.Error("staging profile should not exist")
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte("api_key_id: jkak-only\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIKeyID != "jkak-only" {
		t.Errorf("APIKeyID = %q", cfg.APIKeyID)
	}
	if cfg.Server != "http://127.0.0.1:5090" {
		t.Errorf("Server should keep default, got %q", cfg.Server)
	}
	if cfg.Output != "table" {
		t.Errorf("Output should keep default, got %q", cfg.Output)
	}
	if cfg.Connections == nil {
		t.Error("Connections should not be nil after load")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load should fail for invalid YAML")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "cli.yaml")

	cfg := Default()
	cfg.Server = "https://saved.example.com:5090"
	cfg.Output = "yaml"
	cfg.Connections["dev"] = ConnectionConfig{
		Server:   "http://127.0.0.1:5090",
		APIKeyID: "jkak-dev",
		APIKey:   "jkas_devsecret",
	}
	cfg.CurrentConnection = "dev"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 0600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Server != cfg.Server {
		t.Errorf("Server = %q, want %q", loaded.Server, cfg.Server)
	}
	if loaded.Output != "yaml" {
		t.Errorf("Output = %q, want yaml", loaded.Output)
	}
	dev, ok := loaded.Profile("dev")
	if !ok {
		t.Fatal("dev profile should survive the round trip")
	}
	if dev.APIKeyID != "jkak-dev" || dev.APIKey != "jkas_devsecret" {
		t.Errorf("dev profile = %+v", dev)
	}
	if loaded.CurrentConnection != "dev" {
		t.Errorf("CurrentConnection = %q, want dev", loaded.CurrentConnection)
	}
}

func TestSave_CreateDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "cli.yaml")

	if err := Save(Default(), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(filepath.Dir(path)); os.IsNotExist(err) {
		t.Error("Directory should have been created")
	}
}

func TestCLIConfig_Struct(t *testing.T) {
	cfg := CLIConfig{
		Server:            "https://api.example.com",
		Output:            "json",
		CurrentConnection: "prod",
		Connections: map[string]ConnectionConfig{
			"prod": {
				Server:   "https://prod.example.com",
				APIKeyID: "jkak-prod123",
				APIKey:   "jkas_prodsecret",
				CACert:   "/etc/jsonkeep/ca.pem",
			},
			"dev": {
				Server:   "http://127.0.0.1:5090",
				APIKeyID: "jkak-dev456",
				APIKey:   "jkas_devsecret",
			},
		},
	}

	if cfg.Server != "https://api.example.com" {
		t.Error("Server not set correctly")
	}
	if len(cfg.Connections) != 2 {
		t.Error("Connections count incorrect")
	}
	if cfg.Connections["prod"].CACert == "" {
		t.Error("prod CACert should be set")
	}
	if cfg.Connections["dev"].CACert != "" {
		t.Error("dev CACert should be empty")
	}
}
