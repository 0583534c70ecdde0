package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr = "127.0.0.1:5090"
	DefaultRESPAddr = "127.0.0.1:6390"

	DefaultHTTPReadTimeout  = 10 * time.Second
	DefaultHTTPWriteTimeout = 30 * time.Second
	DefaultHTTPIdleTimeout  = 120 * time.Second
	DefaultRESPIdleTimeout  = 5 * time.Minute

	DefaultStorageRoot      = "/var/lib/jsonkeep/data"
	DefaultSnapshotInterval = 5 * time.Minute
	DefaultSnapshotKeep     = 10

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:         DefaultHTTPAddr,
				ReadTimeout:  DefaultHTTPReadTimeout,
				WriteTimeout: DefaultHTTPWriteTimeout,
				IdleTimeout:  DefaultHTTPIdleTimeout,
			},
			RESP: RESPConfig{
				Enabled:     false,
				Addr:        DefaultRESPAddr,
				IdleTimeout: DefaultRESPIdleTimeout,
			},
		},
		Storage: StorageSection{
			Root: DefaultStorageRoot,
			Snapshots: SnapshotConfig{
				Enabled:  false,
				Interval: DefaultSnapshotInterval,
				Keep:     DefaultSnapshotKeep,
			},
		},
		Auth: AuthSection{
			Enabled:        true,
			BootstrapAdmin: true,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsSection{
			Enabled: true,
		},
	}
}
