package command

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/jsonkeep-go/internal/cli/config"
	"github.com/yndnr/jsonkeep-go/internal/cli/connection"
	"github.com/yndnr/jsonkeep-go/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "CLI and server configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the loaded CLI configuration with secrets masked",
				Action: configShow,
			},
			{
				Name:   "path",
				Usage:  "Print the CLI config file path",
				Action: configPath,
			},
			{
				Name:  "init",
				Usage: "Write a CLI config file with default settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Overwrite an existing config file",
					},
				},
				Action: configInit,
			},
			{
				Name:   "server",
				Usage:  "Show the running server's configuration",
				Action: configServer,
			},
		},
	}
}

// effectiveConfigPath resolves the config file path from the --config
// flag, falling back to the default location.
func effectiveConfigPath(c *cli.Context) string {
	if path := c.String("config"); path != "" {
		return path
	}
	return config.DefaultConfigPath()
}

func configShow(c *cli.Context) error {
	path := effectiveConfigPath(c)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	masked := *cfg
	masked.APIKey = maskSecret(cfg.APIKey)
	masked.Connections = make(map[string]config.ConnectionConfig, len(cfg.Connections))
	for name, prof := range cfg.Connections {
		prof.APIKey = maskSecret(prof.APIKey)
		masked.Connections[name] = prof
	}

	flags := ParseGlobalFlags(c)
	format := output.Format(flags.Output)
	if format == output.FormatTable {
		format = output.FormatYAML
	}
	formatter := output.NewFormatter(format, flags.Wide)

	fmt.Printf("# %s\n", path)
	return formatter.Format(os.Stdout, masked)
}

func configPath(c *cli.Context) error {
	fmt.Println(effectiveConfigPath(c))
	return nil
}

func configInit(c *cli.Context) error {
	path := effectiveConfigPath(c)

	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.Save(config.Default(), path); err != nil {
		return err
	}

	fmt.Printf("Config written: %s\n", path)
	return nil
}

func configServer(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Get(ctx, "/v1/admin/config")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result map[string]any
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
	return formatter.Format(os.Stdout, result)
}

// maskSecret hides all but the identifying prefix of a key secret.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:8] + "****"
}
