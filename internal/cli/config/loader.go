package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/jsonkeep-go/internal/infra/confloader"
)

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".jsonkeep", "cli.yaml")
}

// Load reads CLI configuration from the YAML file at path. A missing
// file yields the defaults. Environment overrides (JSONKEEP_SERVER,
// JSONKEEP_API_KEY_ID, ...) are applied by the flag layer, not here.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	loader := confloader.NewLoader()
	if err := loader.LoadFile(path); err != nil {
		return nil, fmt.Errorf("load cli config: %w", err)
	}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse cli config: %w", err)
	}

	if cfg.Connections == nil {
		cfg.Connections = make(map[string]ConnectionConfig)
	}
	return cfg, nil
}

// Save writes CLI configuration to the YAML file at path. The config
// directory is created with 0700 and the file with 0600 since saved
// profiles can carry API secrets.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode cli config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write cli config: %w", err)
	}
	return nil
}
