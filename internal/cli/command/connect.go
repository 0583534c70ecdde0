package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/jsonkeep-go/internal/cli/config"
	"github.com/yndnr/jsonkeep-go/internal/cli/repl"
)

// startREPL launches the interactive session. Swapped out in tests.
var startREPL = func(execute repl.Executor) error {
	return repl.New(execute).Run()
}

// ConnectCommand returns the connect command. A successful connect
// verifies the server and drops into an interactive session.
func ConnectCommand() *cli.Command {
	return &cli.Command{
		Name:      "connect",
		Usage:     "Connect to a JsonKeep server and start an interactive session",
		ArgsUsage: "[SERVER]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Connection profile name",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Save the connection as a profile (requires --name)",
			},
		},
		Action: connectAction,
	}
}

func connectAction(c *cli.Context) error {
	conn := resolveConnection(c)
	if server := c.Args().First(); server != "" {
		conn.Server = server
	}
	if name := c.String("name"); name != "" {
		conn.Name = name
	}

	mgr := GetConnectionManager(c)
	if mgr == nil {
		return fmt.Errorf("connection manager not initialized")
	}

	if err := mgr.Connect(conn); err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	fmt.Printf("Connected to %s\n", conn.Server)

	if c.Bool("save") {
		if conn.Name == "" {
			return fmt.Errorf("--save requires --name")
		}
		path := effectiveConfigPath(c)
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg.Connections[conn.Name] = config.ConnectionConfig{
			Server:   conn.Server,
			APIKeyID: conn.APIKeyID,
			APIKey:   conn.APIKey,
			CACert:   conn.CACert,
		}
		cfg.CurrentConnection = conn.Name
		if err := config.Save(cfg, path); err != nil {
			return err
		}
		fmt.Printf("Saved connection profile %q\n", conn.Name)
	}

	flags := ParseGlobalFlags(c)
	return startREPL(func(args []string) error {
		if len(args) > 0 && args[0] == "connect" {
			return fmt.Errorf("already in an interactive session")
		}
		full := []string{"jsonkeep-cli"}
		if conn.Server != "" {
			full = append(full, "--server", conn.Server)
		}
		if conn.APIKeyID != "" {
			full = append(full, "--api-key-id", conn.APIKeyID)
		}
		if conn.APIKey != "" {
			full = append(full, "--api-key", conn.APIKey)
		}
		if conn.CACert != "" {
			full = append(full, "--ca-cert", conn.CACert)
		}
		if flags.Output != "" {
			full = append(full, "--output", flags.Output)
		}
		if path := c.String("config"); path != "" {
			full = append(full, "--config", path)
		}
		full = append(full, args...)
		return App().Run(full)
	})
}

// DisconnectCommand returns the disconnect command.
func DisconnectCommand() *cli.Command {
	return &cli.Command{
		Name:   "disconnect",
		Usage:  "Disconnect from the current server",
		Action: disconnectAction,
	}
}

func disconnectAction(c *cli.Context) error {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return fmt.Errorf("connection manager not initialized")
	}

	if !mgr.IsConnected() {
		fmt.Println("Not connected to any server")
		return nil
	}

	mgr.Disconnect()
	fmt.Println("Disconnected")
	return nil
}

// UseCommand returns the use command for switching saved profiles.
func UseCommand() *cli.Command {
	return &cli.Command{
		Name:      "use",
		Usage:     "Switch the active connection profile",
		ArgsUsage: "PROFILE",
		Action:    useAction,
	}
}

func useAction(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("profile name required")
	}

	path := effectiveConfigPath(c)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	prof, ok := cfg.Profile(name)
	if !ok {
		return fmt.Errorf("unknown connection profile: %s", name)
	}

	cfg.CurrentConnection = name
	if err := config.Save(cfg, path); err != nil {
		return err
	}

	fmt.Printf("Now using profile %q (%s)\n", name, prof.Server)
	return nil
}
