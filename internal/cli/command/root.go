package command

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/jsonkeep-go/internal/cli/config"
	"github.com/yndnr/jsonkeep-go/internal/cli/connection"
	"github.com/yndnr/jsonkeep-go/internal/infra/buildinfo"
)

// App creates the jsonkeep-cli application with all commands registered.
func App() *cli.App {
	return &cli.App{
		Name:    "jsonkeep-cli",
		Usage:   "JsonKeep command-line management tool",
		Version: buildinfo.Get().Version,
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ConnectCommand(),
			DisconnectCommand(),
			UseCommand(),
			StoreCommand(),
			SnapshotCommand(),
			APIKeyCommand(),
			SystemCommand(),
			ConfigCommand(),
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			c.App.Metadata["cliConfig"] = cfg
			c.App.Metadata["connMgr"] = connection.NewManager()
			return nil
		},
	}
}

// globalFlags returns the flags shared by all commands.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "JsonKeep server base URL",
			EnvVars: []string{"JSONKEEP_SERVER"},
		},
		&cli.StringFlag{
			Name:    "api-key-id",
			Usage:   "API key ID for authentication",
			EnvVars: []string{"JSONKEEP_API_KEY_ID"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Aliases: []string{"k"},
			Usage:   "API key secret for authentication",
			EnvVars: []string{"JSONKEEP_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "ca-cert",
			Usage:   "CA certificate file for TLS server verification",
			EnvVars: []string{"JSONKEEP_CA_CERT"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format (table, json, yaml)",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show additional columns in table output",
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Path to the CLI config file",
			EnvVars: []string{"JSONKEEP_CONFIG"},
		},
	}
}

// GlobalFlags holds the parsed global flag values.
type GlobalFlags struct {
	Server   string
	APIKeyID string
	APIKey   string
	CACert   string
	Output   string
	Wide     bool
}

// ParseGlobalFlags extracts global flags from the CLI context. The
// output format falls back to the config file when the flag was not
// given explicitly.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	flags := &GlobalFlags{
		Server:   c.String("server"),
		APIKeyID: c.String("api-key-id"),
		APIKey:   c.String("api-key"),
		CACert:   c.String("ca-cert"),
		Output:   c.String("output"),
		Wide:     c.Bool("wide"),
	}
	if !c.IsSet("output") {
		if cfg := GetCLIConfig(c); cfg != nil && cfg.Output != "" {
			flags.Output = cfg.Output
		}
	}
	return flags
}

// GetConnectionManager retrieves the shared connection manager from
// the app metadata.
func GetConnectionManager(c *cli.Context) *connection.Manager {
	if mgr, ok := c.App.Metadata["connMgr"].(*connection.Manager); ok {
		return mgr
	}
	return nil
}

// GetCLIConfig retrieves the loaded CLI configuration from the app
// metadata. Returns defaults when the Before hook did not run, which
// happens in tests that call actions directly.
func GetCLIConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata["cliConfig"].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// resolveConnection builds connection settings from the config file,
// the selected profile and explicit flag or environment overrides.
func resolveConnection(c *cli.Context) *connection.Connection {
	cfg := GetCLIConfig(c)
	conn := &connection.Connection{
		Server:   cfg.Server,
		APIKeyID: cfg.APIKeyID,
		APIKey:   cfg.APIKey,
		CACert:   cfg.CACert,
	}
	if cfg.CurrentConnection != "" {
		if prof, ok := cfg.Profile(cfg.CurrentConnection); ok {
			conn.Name = cfg.CurrentConnection
			conn.Server = prof.Server
			conn.APIKeyID = prof.APIKeyID
			conn.APIKey = prof.APIKey
			conn.CACert = prof.CACert
		}
	}
	if s := c.String("server"); s != "" {
		conn.Server = s
	}
	if id := c.String("api-key-id"); id != "" {
		conn.APIKeyID = id
	}
	if key := c.String("api-key"); key != "" {
		conn.APIKey = key
	}
	if ca := c.String("ca-cert"); ca != "" {
		conn.CACert = ca
	}
	return conn
}

// EnsureConnected returns an HTTP client for the resolved server. An
// interactive session's verified connection is reused when present;
// one-shot invocations get a fresh client without a health probe.
func EnsureConnected(c *cli.Context) (*connection.HTTPClient, error) {
	if mgr := GetConnectionManager(c); mgr != nil && mgr.IsConnected() {
		return mgr.Client(), nil
	}

	conn := resolveConnection(c)
	if conn.Server == "" {
		return nil, fmt.Errorf("no server configured (use --server, JSONKEEP_SERVER or %s)", config.DefaultConfigPath())
	}

	var opts []connection.ClientOption
	if conn.CACert != "" {
		opts = append(opts, connection.WithCACert(conn.CACert))
	}
	return connection.NewHTTPClient(conn.Server, conn.APIKeyID, conn.APIKey, opts...), nil
}

// confirm prompts the user and returns true when they answer yes.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var response string
	fmt.Scanln(&response)
	return strings.EqualFold(response, "y") || strings.EqualFold(response, "yes")
}

// PrintError prints an error to stderr in a consistent format.
func PrintError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
