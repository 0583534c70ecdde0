package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/jsonkeep-go/internal/cli/connection"
	"github.com/yndnr/jsonkeep-go/internal/cli/output"
)

const requestTimeout = 30 * time.Second

// StoreCommand creates the store command with its subcommands.
func StoreCommand() *cli.Command {
	return &cli.Command{
		Name:    "store",
		Aliases: []string{"st"},
		Usage:   "Manage stores and their documents",
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
				Name:   "list",
				Usage:  "List attached stores",
				Action: storeList,
			},
			{
				Name:      "attach",
				Usage:     "Attach a JSON file as a store",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "path",
						Usage:    "Backing JSON file path on the server",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "indented",
						Usage: "Pretty-print the backing file",
					},
					&cli.StringFlag{
						Name:  "snapshot-dir",
						Usage: "Directory for periodic snapshots",
					},
					&cli.DurationFlag{
						Name:  "snapshot-interval",
						Usage: "Interval between periodic snapshots (e.g. 60s)",
					},
					&cli.IntFlag{
						Name:  "snapshot-keep",
						Usage: "Number of snapshots to retain (0 keeps all)",
					},
				},
				Action: storeAttach,
			},
			{
				Name:      "detach",
				Usage:     "Detach a store, leaving its file on disk",
				ArgsUsage: "[name]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation prompt",
					},
				},
				Action: storeDetach,
			},
			{
				Name:      "describe",
				Usage:     "Show store details and counters",
				ArgsUsage: "[name]",
				Action:    storeDescribe,
			},
			{
				Name:      "get",
				Usage:     "Print the value stored under a key",
				ArgsUsage: "<key>",
				Action:    storeGet,
			},
			{
				Name:      "set",
				Usage:     "Set a key to a JSON value (non-JSON input is stored as a string)",
				ArgsUsage: "<key> <value>",
				Action:    storeSet,
			},
			{
				Name:      "del",
				Usage:     "Delete a key",
				ArgsUsage: "<key>",
				Action:    storeDelete,
			},
			{
				Name:      "has",
				Usage:     "Report whether a key exists",
				ArgsUsage: "<key>",
				Action:    storeHas,
			},
			{
				Name:  "keys",
				Usage: "List keys, optionally filtered by prefix",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "prefix",
						Aliases: []string{"p"},
						Usage:   "Only keys starting with this prefix",
					},
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page number (1-based)",
					},
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Keys per page",
					},
				},
				Action: storeKeys,
			},
			{
				Name:  "entries",
				Usage: "List key-value entries",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "prefix",
						Aliases: []string{"p"},
						Usage:   "Only keys starting with this prefix",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Projection mode (entries, keys, values)",
						Value: "entries",
					},
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page number (1-based)",
					},
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Entries per page",
					},
				},
				Action: storeEntries,
			},
			{
				Name:  "clear",
				Usage: "Remove every key from a store",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation prompt",
					},
				},
				Action: storeClear,
			},
			{
				Name:   "persist",
				Usage:  "Flush pending writes to the backing file",
				Action: storePersist,
			},
			{
				Name:  "reload",
				Usage: "Reload the store from its backing file, discarding unsaved changes",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation prompt",
					},
				},
				Action: storeReload,
			},
			{
				Name:   "snapshot",
				Usage:  "Write a snapshot of the store now",
				Action: storeSnapshot,
			},
		},
	}
}

// storeName resolves the target store from the --store flag, walking up
// to the parent command.
func storeName(c *cli.Context) string {
	return c.String("store")
}

// keyPath builds the escaped URL path for a key operation.
func keyPath(store, key string) string {
	return fmt.Sprintf("/v1/stores/%s/keys/%s", url.PathEscape(store), url.PathEscape(key))
}

func storeList(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	flags := ParseGlobalFlags(c)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Get(ctx, "/v1/stores")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Items []struct {
			Name       string    `json:"name"`
			Path       string    `json:"path"`
			Indented   bool      `json:"indented"`
			AttachedAt time.Time `json:"attached_at"`
			AttachedBy string    `json:"attached_by"`
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
		headers := []string{"NAME", "PATH", "INDENTED", "ATTACHED"}
		if flags.Wide {
			headers = append(headers, "ATTACHED BY")
		}
		table := &output.Table{Headers: headers}
		for _, item := range result.Items {
			row := []string{
				item.Name,
				item.Path,
				fmt.Sprintf("%t", item.Indented),
				item.AttachedAt.Format("2006-01-02 15:04"),
			}
			if flags.Wide {
				row = append(row, item.AttachedBy)
			}
			table.Rows = append(table.Rows, row)
		}
		if err := table.Render(os.Stdout); err != nil {
			return err
		}
		fmt.Printf("\nTotal: %d stores\n", result.Total)
		return nil
	}
}

func storeAttach(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("store name required")
	}
	name := c.Args().First()

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	body := map[string]any{
		"name":     name,
		"path":     c.String("path"),
		"indented": c.Bool("indented"),
	}
	if interval := c.Duration("snapshot-interval"); interval > 0 {
		body["snapshots"] = map[string]any{
			"enabled":     true,
			"dir":         c.String("snapshot-dir"),
			"interval_ms": interval.Milliseconds(),
			"max":         c.Int("snapshot-keep"),
			"indented":    c.Bool("indented"),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/stores", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Store %q attached (%s)\n", result.Name, result.Path)
	return nil
}

func storeDetach(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		name = storeName(c)
	}

	if !c.Bool("force") {
		if !confirm(fmt.Sprintf("Detach store %q? Its file stays on disk.", name)) {
			fmt.Println("Cancelled")
			return nil
		}
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Delete(ctx, "/v1/stores/"+url.PathEscape(name))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}

	fmt.Printf("Store %q detached\n", name)
	return nil
}

func storeDescribe(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		name = storeName(c)
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	flags := ParseGlobalFlags(c)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Get(ctx, "/v1/stores/"+url.PathEscape(name))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var stats map[string]any
	if err := connection.ParseResponse(resp, &stats); err != nil {
		return err
	}

	formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
	return formatter.Format(os.Stdout, stats)
}

func storeGet(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("key required")
	}
	key := c.Args().First()
	name := storeName(c)

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	flags := ParseGlobalFlags(c)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Get(ctx, keyPath(name, key))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Store string `json:"store"`
		Key   string `json:"key"`
		Value any    `json:"value"`
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
		fmt.Println(renderValue(result.Value))
		return nil
	}
}

func storeSet(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("key and value required")
	}
	key := c.Args().Get(0)
	value := c.Args().Get(1)
	name := storeName(c)

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	// Valid JSON is sent as-is; anything else becomes a JSON string.
	raw := []byte(value)
	if !json.Valid(raw) {
		raw, _ = json.Marshal(value)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.PutRaw(ctx, keyPath(name, key), raw)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Created bool `json:"created"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if result.Created {
		fmt.Printf("Created %q\n", key)
	} else {
		fmt.Printf("Updated %q\n", key)
	}
	return nil
}

func storeDelete(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("key required")
	}
	key := c.Args().First()
	name := storeName(c)

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Delete(ctx, keyPath(name, key))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Deleted bool `json:"deleted"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if result.Deleted {
		fmt.Printf("Deleted %q\n", key)
	} else {
		fmt.Printf("Key %q not found\n", key)
	}
	return nil
}

func storeHas(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("key required")
	}
	key := c.Args().First()
	name := storeName(c)

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Get(ctx, keyPath(name, key))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if err := connection.ParseResponse(resp, nil); err != nil {
		var apiErr *connection.APIError
		if errors.As(err, &apiErr) && apiErr.Code == "JK-STOR-4041" {
			fmt.Println("false")
			return nil
		}
		return err
	}

	fmt.Println("true")
	return nil
}

func storeKeys(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	flags := ParseGlobalFlags(c)
	name := storeName(c)

	query := url.Values{}
	query.Set("mode", "keys")
	if prefix := c.String("prefix"); prefix != "" {
		query.Set("prefix", prefix)
	}
	if page := c.Int("page"); page > 0 {
		query.Set("page", fmt.Sprintf("%d", page))
	}
	if pageSize := c.Int("page-size"); pageSize > 0 {
		query.Set("page_size", fmt.Sprintf("%d", pageSize))
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Get(ctx, "/v1/stores/"+url.PathEscape(name)+"/entries?"+query.Encode())
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Items []string `json:"items"`
		Total int      `json:"total"`
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
		for _, key := range result.Items {
			fmt.Println(key)
		}
		fmt.Printf("\nTotal: %d keys\n", result.Total)
		return nil
	}
}

func storeEntries(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	flags := ParseGlobalFlags(c)
	name := storeName(c)

	query := url.Values{}
	if mode := c.String("mode"); mode != "" {
		query.Set("mode", mode)
	}
	if prefix := c.String("prefix"); prefix != "" {
		query.Set("prefix", prefix)
	}
	if page := c.Int("page"); page > 0 {
		query.Set("page", fmt.Sprintf("%d", page))
	}
	if pageSize := c.Int("page-size"); pageSize > 0 {
		query.Set("page_size", fmt.Sprintf("%d", pageSize))
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Get(ctx, "/v1/stores/"+url.PathEscape(name)+"/entries?"+query.Encode())
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Mode     string          `json:"mode"`
		Items    json.RawMessage `json:"items"`
		Total    int             `json:"total"`
		Page     int             `json:"page"`
		PageSize int             `json:"page_size"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if format := output.Format(flags.Output); format == output.FormatJSON || format == output.FormatYAML {
		var generic struct {
			Mode     string `json:"mode"`
			Items    any    `json:"items"`
			Total    int    `json:"total"`
			Page     int    `json:"page"`
			PageSize int    `json:"page_size"`
		}
		generic.Mode = result.Mode
		generic.Total = result.Total
		generic.Page = result.Page
		generic.PageSize = result.PageSize
		if err := json.Unmarshal(result.Items, &generic.Items); err != nil {
			return fmt.Errorf("decode entries: %w", err)
		}
		formatter := output.NewFormatter(format, flags.Wide)
		return formatter.Format(os.Stdout, generic)
	}

	switch result.Mode {
	case "keys":
		var keys []string
		if err := json.Unmarshal(result.Items, &keys); err != nil {
			return fmt.Errorf("decode entries: %w", err)
		}
		for _, key := range keys {
			fmt.Println(key)
		}
	case "values":
		var values []any
		if err := json.Unmarshal(result.Items, &values); err != nil {
			return fmt.Errorf("decode entries: %w", err)
		}
		for _, value := range values {
			fmt.Println(compactValue(value, flags.Wide))
		}
	default:
		var entries []struct {
			Key   string `json:"key"`
			Value any    `json:"value"`
		}
		if err := json.Unmarshal(result.Items, &entries); err != nil {
			return fmt.Errorf("decode entries: %w", err)
		}
		table := &output.Table{Headers: []string{"KEY", "VALUE"}}
		for _, entry := range entries {
			table.AddRow(entry.Key, compactValue(entry.Value, flags.Wide))
		}
		if err := table.Render(os.Stdout); err != nil {
			return err
		}
	}

	fmt.Printf("\nTotal: %d (page %d, page size %d)\n", result.Total, result.Page, result.PageSize)
	return nil
}

func storeClear(c *cli.Context) error {
	name := storeName(c)

	if !c.Bool("force") {
		if !confirm(fmt.Sprintf("Remove every key from store %q?", name)) {
			fmt.Println("Cancelled")
			return nil
		}
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/stores/"+url.PathEscape(name)+"/flush", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Removed int `json:"removed"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Removed %d keys from %q\n", result.Removed, name)
	return nil
}

func storePersist(c *cli.Context) error {
	name := storeName(c)

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/stores/"+url.PathEscape(name)+"/persist", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}

	fmt.Printf("Store %q persisted\n", name)
	return nil
}

func storeReload(c *cli.Context) error {
	name := storeName(c)

	if !c.Bool("force") {
		if !confirm(fmt.Sprintf("Reload store %q from disk? Unsaved changes are lost.", name)) {
			fmt.Println("Cancelled")
			return nil
		}
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/stores/"+url.PathEscape(name)+"/reload", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}

	fmt.Printf("Store %q reloaded\n", name)
	return nil
}

func storeSnapshot(c *cli.Context) error {
	return snapshotCreate(c)
}

// renderValue pretty-prints a JSON value for terminal display.
func renderValue(value any) string {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}

// compactValue renders a value on one line, truncated unless wide
// output was requested.
func compactValue(value any, wide bool) string {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	s := string(data)
	if !wide && len(s) > 64 {
		return s[:61] + "..."
	}
	return s
}
