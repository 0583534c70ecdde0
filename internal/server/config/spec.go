package config

import (
	"path/filepath"
	"time"
)

// ServerConfig is the root configuration for jsonkeep-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server" json:"server"`
	Storage StorageSection `koanf:"storage" json:"storage"`
	Auth    AuthSection    `koanf:"auth" json:"auth"`
	Log     LogSection     `koanf:"log" json:"log"`
	Metrics MetricsSection `koanf:"metrics" json:"metrics"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http" json:"http"`
	RESP RESPConfig `koanf:"resp" json:"resp"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr         string        `koanf:"addr" json:"addr"`
	TLSCertFile  string        `koanf:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `koanf:"tls_key_file" json:"tls_key_file"`
	ReadTimeout  time.Duration `koanf:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" json:"idle_timeout"`
}

// RESPConfig configures the Redis-protocol listener.
type RESPConfig struct {
	Enabled     bool          `koanf:"enabled" json:"enabled"`
	Addr        string        `koanf:"addr" json:"addr"`
	TLSCertFile string        `koanf:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile  string        `koanf:"tls_key_file" json:"tls_key_file"`
	IdleTimeout time.Duration `koanf:"idle_timeout" json:"idle_timeout"`
}

// StorageSection configures store files.
type StorageSection struct {
	// Root is the directory holding store files and the attach catalog.
	Root string `koanf:"root" json:"root"`

	// Indent pretty-prints store files attached without an explicit
	// indentation choice.
	Indent bool `koanf:"indent" json:"indent"`

	// Snapshots is the default snapshot policy for stores attached
	// without one.
	Snapshots SnapshotConfig `koanf:"snapshots" json:"snapshots"`
}

// SnapshotConfig configures periodic snapshots.
type SnapshotConfig struct {
	Enabled  bool          `koanf:"enabled" json:"enabled"`
	Dir      string        `koanf:"dir" json:"dir"`
	Interval time.Duration `koanf:"interval" json:"interval"`
	Keep     int           `koanf:"keep" json:"keep"`
}

// AuthSection configures API key authentication.
type AuthSection struct {
	// Enabled turns on API key checks for the HTTP and RESP surfaces.
	// When off, every request runs with admin capabilities.
	Enabled bool `koanf:"enabled" json:"enabled"`

	// KeyringPath is the JSON file holding API key records. Empty means
	// system-keys.json under the storage root.
	KeyringPath string `koanf:"keyring_path" json:"keyring_path"`

	// BootstrapAdmin creates an initial admin key when the keyring is
	// empty. The secret is logged once and cannot be recovered.
	BootstrapAdmin bool `koanf:"bootstrap_admin" json:"bootstrap_admin"`

	// BootstrapSecret fixes the bootstrap admin secret instead of
	// generating a random one. Intended for provisioning scripts.
	// Masked by Sanitize.
	BootstrapSecret string `koanf:"bootstrap_secret" json:"bootstrap_secret"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool `koanf:"enabled" json:"enabled"`

	// RequireAuth gates /metrics behind an API key with the
	// metrics.read permission. Off by default; the listener binds to
	// loopback unless configured otherwise.
	RequireAuth bool `koanf:"require_auth" json:"require_auth"`
}

// StorePath returns the backing file for a named store attached without
// an explicit path.
func (c *ServerConfig) StorePath(name string) string {
	return filepath.Join(c.Storage.Root, name+".json")
}

// CatalogPath returns the attach catalog file location.
func (c *ServerConfig) CatalogPath() string {
	return filepath.Join(c.Storage.Root, "catalog.json")
}

// KeyringPath returns the API key file location, defaulting to
// system-keys.json under the storage root.
func (c *ServerConfig) KeyringPath() string {
	if c.Auth.KeyringPath != "" {
		return c.Auth.KeyringPath
	}
	return filepath.Join(c.Storage.Root, "system-keys.json")
}

// SnapshotDir returns the default snapshot directory, defaulting to
// snapshots/ under the storage root.
func (c *ServerConfig) SnapshotDir() string {
	if c.Storage.Snapshots.Dir != "" {
		return c.Storage.Snapshots.Dir
	}
	return filepath.Join(c.Storage.Root, "snapshots")
}
