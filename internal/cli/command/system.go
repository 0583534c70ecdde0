package command

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/jsonkeep-go/internal/cli/connection"
	"github.com/yndnr/jsonkeep-go/internal/cli/output"
	"github.com/yndnr/jsonkeep-go/internal/infra/buildinfo"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "Server status and health commands",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show server status summary",
				Action: systemStatus,
			},
			{
				Name:   "health",
				Usage:  "Check server health and readiness",
				Action: systemHealth,
			},
			{
				Name:   "version",
				Usage:  "Show client version information",
				Action: systemVersion,
			},
		},
	}
}

// renderResult writes data as JSON or YAML when requested, otherwise
// calls table to print the human layout.
func renderResult(c *cli.Context, data any, table func()) error {
	switch output.Format(ParseGlobalFlags(c).Output) {
	case output.FormatJSON:
		return (&output.JSONFormatter{}).Format(os.Stdout, data)
	case output.FormatYAML:
		return (&output.YAMLFormatter{}).Format(os.Stdout, data)
	default:
		table()
		return nil
	}
}

func systemStatus(c *cli.Context) error {
	var result map[string]any
	if err := adminCall(c, http.MethodGet, "/v1/admin/status", nil, &result); err != nil {
		return err
	}

	return renderResult(c, result, func() {
		fmt.Printf("Server Status\n")
		fmt.Printf("=============\n\n")

		if status, ok := result["status"].(string); ok {
			fmt.Printf("Status:   %s\n", status)
		}
		if version, ok := result["version"].(string); ok {
			commit, _ := result["commit"].(string)
			fmt.Printf("Version:  %s (%s)\n", version, commit)
		}
		if goVersion, ok := result["go_version"].(string); ok {
			fmt.Printf("Go:       %s\n", goVersion)
		}
		if stores, ok := result["stores"].(float64); ok {
			fmt.Printf("Stores:   %.0f\n", stores)
		}
		if uptime, ok := result["uptime_seconds"].(float64); ok {
			fmt.Printf("Uptime:   %s\n", (time.Duration(uptime) * time.Second).String())
		}
	})
}

func systemHealth(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Liveness, then readiness. Both endpoints are unauthenticated.
	resp, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := connection.ParseResponse(resp, &health); err != nil {
		return err
	}

	resp, err = client.Get(ctx, "/readyz")
	if err != nil {
		return fmt.Errorf("readiness check failed: %w", err)
	}
	var ready struct {
		Status string `json:"status"`
		Stores int    `json:"stores"`
	}
	if err := connection.ParseResponse(resp, &ready); err != nil {
		return err
	}

	summary := map[string]any{
		"health": health.Status,
		"ready":  ready.Status,
		"stores": ready.Stores,
	}
	return renderResult(c, summary, func() {
		fmt.Printf("✓ Server is %s\n", health.Status)
		fmt.Printf("✓ Readiness: %s (%d stores)\n", ready.Status, ready.Stores)
		fmt.Printf("  Target: %s\n", client.BaseURL())
	})
}

func systemVersion(c *cli.Context) error {
	info := buildinfo.Get()
	return renderResult(c, info, func() {
		fmt.Printf("jsonkeep-cli %s\n", buildinfo.String())
		fmt.Printf("  go: %s\n", info.GoVersion)
	})
}
