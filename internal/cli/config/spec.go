package config

// CLIConfig is the configuration for jsonkeep-cli.
type CLIConfig struct {
	// Default connection settings
	Server   string `koanf:"server" yaml:"server"`
	APIKeyID string `koanf:"api_key_id" yaml:"api_key_id,omitempty"`
	APIKey   string `koanf:"api_key" yaml:"api_key,omitempty"`
	CACert   string `koanf:"ca_cert" yaml:"ca_cert,omitempty"`

	// Output format: table, json, yaml
	Output string `koanf:"output" yaml:"output"`

	// Saved connection profiles
	Connections map[string]ConnectionConfig `koanf:"connections" yaml:"connections,omitempty"`

	// Name of the profile picked by "use"
	CurrentConnection string `koanf:"current_connection" yaml:"current_connection,omitempty"`
}

// ConnectionConfig stores saved connection details.
type ConnectionConfig struct {
	Server   string `koanf:"server" yaml:"server"`
	APIKeyID string `koanf:"api_key_id" yaml:"api_key_id,omitempty"`
	APIKey   string `koanf:"api_key" yaml:"api_key,omitempty"`
	CACert   string `koanf:"ca_cert" yaml:"ca_cert,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:      "http://127.0.0.1:5090",
		Output:      "table",
		Connections: make(map[string]ConnectionConfig),
	}
}

// Profile returns the named saved connection.
func (c *CLIConfig) Profile(name string) (ConnectionConfig, bool) {
	conn, ok := c.Connections[name]
	return conn, ok
}
