package command

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/jsonkeep-go/internal/cli/connection"
	"github.com/yndnr/jsonkeep-go/internal/cli/output"
)

// APIKeyCommand returns the apikey subcommand group.
func APIKeyCommand() *cli.Command {
	forceFlag := &cli.BoolFlag{
		Name:    "force",
		Aliases: []string{"f"},
		Usage:   "Skip confirmation",
	}

	return &cli.Command{
		Name:    "apikey",
		Aliases: []string{"key"},
		Usage:   "Manage API keys",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List API keys",
				Action: apikeyList,
			},
			{
				Name:  "create",
				Usage: "Create a new API key",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Key name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "role",
						Aliases:  []string{"r"},
						Usage:    "Key role (reader, writer, admin)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "Key description",
					},
				},
				Action: apikeyCreate,
			},
			{
				Name:      "disable",
				Usage:     "Disable an API key",
				ArgsUsage: "KEY_ID",
				Flags:     []cli.Flag{forceFlag},
				Action:    apikeyDisable,
			},
			{
				Name:      "enable",
				Usage:     "Enable an API key",
				ArgsUsage: "KEY_ID",
				Action:    apikeyEnable,
			},
			{
				Name:      "rotate",
				Usage:     "Rotate an API key secret",
				ArgsUsage: "KEY_ID",
				Flags:     []cli.Flag{forceFlag},
				Action:    apikeyRotate,
			},
		},
	}
}

// adminCall issues an authenticated request against an admin endpoint
// and decodes the response into result (which may be nil).
func adminCall(c *cli.Context, method, path string, body, result any) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var resp *http.Response
	if method == http.MethodGet {
		resp, err = client.Get(ctx, path)
	} else {
		resp, err = client.Post(ctx, path, body)
	}
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return connection.ParseResponse(resp, result)
}

type apikeyRow struct {
	KeyID       string    `json:"key_id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	Description string    `json:"description"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

func apikeyList(c *cli.Context) error {
	var result struct {
		Keys []apikeyRow `json:"keys"`
	}
	if err := adminCall(c, http.MethodGet, "/v1/admin/apikeys", nil, &result); err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	switch output.Format(flags.Output) {
	case output.FormatJSON:
		return (&output.JSONFormatter{}).Format(os.Stdout, result.Keys)
	case output.FormatYAML:
		return (&output.YAMLFormatter{}).Format(os.Stdout, result.Keys)
	}

	headers := []string{"KEY ID", "NAME", "ROLE", "ENABLED", "CREATED"}
	if flags.Wide {
		headers = append(headers, "LAST USED", "DESCRIPTION")
	}
	table := &output.Table{Headers: headers}
	for _, key := range result.Keys {
		row := []string{
			truncateID(key.KeyID),
			key.Name,
			key.Role,
			fmt.Sprintf("%t", key.Enabled),
			key.CreatedAt.Format("2006-01-02 15:04"),
		}
		if flags.Wide {
			lastUsed := "never"
			if !key.LastUsedAt.IsZero() {
				lastUsed = key.LastUsedAt.Format("2006-01-02 15:04")
			}
			row = append(row, lastUsed, key.Description)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := table.Render(os.Stdout); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d keys\n", len(result.Keys))
	return nil
}

func apikeyCreate(c *cli.Context) error {
	body := map[string]any{
		"name": c.String("name"),
		"role": c.String("role"),
	}
	if desc := c.String("description"); desc != "" {
		body["description"] = desc
	}

	var result struct {
		KeyID  string `json:"key_id"`
		Secret string `json:"secret"`
		Role   string `json:"role"`
	}
	if err := adminCall(c, http.MethodPost, "/v1/admin/apikeys", body, &result); err != nil {
		return err
	}

	fmt.Printf("API key created:\n")
	fmt.Printf("  Key ID: %s\n", result.KeyID)
	fmt.Printf("  Secret: %s\n", result.Secret)
	fmt.Printf("  Role:   %s\n", result.Role)
	fmt.Printf("\nWrite the secret down now; the server keeps only a hash of it.\n")
	return nil
}

// keyIDArg validates the positional KEY_ID argument and, unless --force
// was given, asks the prompt question before proceeding.
func keyIDArg(c *cli.Context, prompt string) (string, bool, error) {
	keyID := c.Args().First()
	if keyID == "" {
		return "", false, fmt.Errorf("key ID required")
	}
	if prompt != "" && !c.Bool("force") && !confirm(prompt) {
		fmt.Println("Cancelled")
		return keyID, false, nil
	}
	return keyID, true, nil
}

func apikeyDisable(c *cli.Context) error {
	keyID, proceed, err := keyIDArg(c, fmt.Sprintf("Disable API key %q?", truncateID(c.Args().First())))
	if err != nil || !proceed {
		return err
	}

	if err := adminCall(c, http.MethodPost, "/v1/admin/apikeys/"+url.PathEscape(keyID)+"/disable", nil, nil); err != nil {
		return err
	}
	fmt.Printf("API key %s disabled\n", truncateID(keyID))
	return nil
}

func apikeyEnable(c *cli.Context) error {
	keyID, _, err := keyIDArg(c, "")
	if err != nil {
		return err
	}

	if err := adminCall(c, http.MethodPost, "/v1/admin/apikeys/"+url.PathEscape(keyID)+"/enable", nil, nil); err != nil {
		return err
	}
	fmt.Printf("API key %s enabled\n", truncateID(keyID))
	return nil
}

func apikeyRotate(c *cli.Context) error {
	prompt := fmt.Sprintf("Rotate secret for API key %q? The old secret stops working immediately.", truncateID(c.Args().First()))
	keyID, proceed, err := keyIDArg(c, prompt)
	if err != nil || !proceed {
		return err
	}

	var result struct {
		KeyID     string `json:"key_id"`
		NewSecret string `json:"new_secret"`
	}
	if err := adminCall(c, http.MethodPost, "/v1/admin/apikeys/"+url.PathEscape(keyID)+"/rotate", nil, &result); err != nil {
		return err
	}

	fmt.Printf("API key secret rotated:\n")
	fmt.Printf("  Key ID:     %s\n", result.KeyID)
	fmt.Printf("  New Secret: %s\n", result.NewSecret)
	fmt.Printf("\nWrite the secret down now; the server keeps only a hash of it.\n")
	return nil
}

// truncateID shortens a key ID for table display.
func truncateID(id string) string {
	if len(id) > 16 {
		return id[:13] + "..."
	}
	return id
}
