package confloader

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "JSONKEEP_"

// Loader merges configuration sources into one koanf tree.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix overrides the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file merged by Load.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// NewLoader returns a loader with an empty tree and the JSONKEEP_
// environment prefix.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{k: koanf.New("."), envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load merges the configured file, the environment, and any override
// maps in that order (later wins), then unmarshals the result into
// target. Keys absent from every source keep whatever values target
// already holds, which is how defaults work.
func (l *Loader) Load(target any, overrides ...map[string]any) error {
	if l.filePath != "" {
		if err := l.LoadFile(l.filePath); err != nil {
			return err
		}
	}

	if err := l.LoadEnv(); err != nil {
		return err
	}

	for _, m := range overrides {
		if err := l.LoadMap(m); err != nil {
			return err
		}
	}

	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile merges a YAML configuration file into the tree.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}

	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv merges prefixed environment variables into the tree.
// Variable names map to dotted keys: JSONKEEP_SERVER_HTTP_ADDR becomes
// server.http.addr.
func (l *Loader) LoadEnv() error {
	if err := l.k.Load(env.Provider(l.envPrefix, ".", l.envKeyToPath), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

func (l *Loader) envKeyToPath(name string) string {
	name = strings.TrimPrefix(name, l.envPrefix)
	return strings.ReplaceAll(strings.ToLower(name), "_", ".")
}

// LoadMap merges explicit values keyed by dotted path. Values loaded
// here override the file and environment layers, which is how flag
// overrides reach the tree.
func (l *Loader) LoadMap(values map[string]any) error {
	if len(values) == 0 {
		return nil
	}

	if err := l.k.Load(mapSource(values), nil); err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	return nil
}

// Unmarshal decodes the merged tree into target via koanf struct tags.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}

// Get returns the merged value at a dotted key, or nil when unset.
func (l *Loader) Get(key string) any {
	return l.k.Get(key)
}
