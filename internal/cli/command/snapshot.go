package command

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/jsonkeep-go/internal/cli/connection"
	"github.com/yndnr/jsonkeep-go/internal/cli/output"
)

// SnapshotCommand creates the snapshot command with its subcommands.
func SnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:    "snapshot",
		Aliases: []string{"snap"},
		Usage:   "Create and list store snapshots",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "store",
				Aliases: []string{"S"},
				Usage:   "Target store name",
				Value:   "db0",
			},
		},
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Write a snapshot of the store now",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Target directory (defaults to the store's snapshot dir)",
					},
					&cli.BoolFlag{
						Name:  "indented",
						Usage: "Pretty-print the snapshot file",
					},
				},
				Action: snapshotCreate,
			},
			{
				Name:   "list",
				Usage:  "List snapshot files for the store",
				Action: snapshotList,
			},
		},
	}
}

func snapshotCreate(c *cli.Context) error {
	name := storeName(c)

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	body := map[string]any{}
	if dir := c.String("dir"); dir != "" {
		body["dir"] = dir
	}
	if c.Bool("indented") {
		body["indented"] = true
	}

	// Progress goes to stderr so the result stays pipeable.
	spinner := output.NewSpinner(os.Stderr, fmt.Sprintf("Snapshotting %q", name))
	spinner.Start()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/stores/"+url.PathEscape(name)+"/snapshots", body)
	if err != nil {
		spinner.Fail("Snapshot failed")
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		File     string `json:"file"`
		Dir      string `json:"dir"`
		Retained bool   `json:"retained"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		spinner.Fail("Snapshot failed")
		return err
	}
	spinner.Success("Snapshot written")

	fmt.Println(filepath.Join(result.Dir, result.File))
	return nil
}

func snapshotList(c *cli.Context) error {
	name := storeName(c)

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	flags := ParseGlobalFlags(c)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Get(ctx, "/v1/stores/"+url.PathEscape(name)+"/snapshots")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Items []struct {
			File       string    `json:"file"`
			Size       int64     `json:"size"`
			ModifiedAt time.Time `json:"modified_at"`
		} `json:"items"`
		Total int `json:"total"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	switch output.Format(flags.Output) {
	case output.FormatJSON:
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, result)
	case output.FormatYAML:
		formatter := &output.YAMLFormatter{}
		return formatter.Format(os.Stdout, result)
	default:
		table := &output.Table{Headers: []string{"FILE", "SIZE", "MODIFIED"}}
		for _, item := range result.Items {
			table.AddRow(
				item.File,
				formatSize(item.Size),
				item.ModifiedAt.Format("2006-01-02 15:04"),
			)
		}
		if err := table.Render(os.Stdout); err != nil {
			return err
		}
		fmt.Printf("\nTotal: %d snapshots\n", result.Total)
		return nil
	}
}

// formatSize renders a byte count in a human-readable unit.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
