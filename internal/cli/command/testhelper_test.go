package command

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/jsonkeep-go/internal/cli/connection"
)

// mockServer routes requests to handlers by path prefix, standing in
// for a jsonkeep-server during command tests.
type mockServer struct {
	*httptest.Server
	handlers map[string]http.HandlerFunc
}

func newMockServer() *mockServer {
	m := &mockServer{handlers: make(map[string]http.HandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for pattern, handler := range m.handlers {
			if strings.HasPrefix(r.URL.Path, pattern) {
				handler(w, r)
				return
			}
		}
		http.NotFound(w, r)
	}))
	return m
}

func (m *mockServer) handle(pattern string, handler http.HandlerFunc) {
	m.handlers[pattern] = handler
}

func writeEnvelope(w http.ResponseWriter, status int, fields map[string]any) {
	body := map[string]any{
		"request_id": "req-test",
		"timestamp":  time.Now().Unix(),
	}
	for k, v := range fields {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// jsonResponse writes the success envelope the real server produces.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	raw, _ := json.Marshal(data)
	writeEnvelope(w, status, map[string]any{
		"code":    "OK",
		"message": "Success",
		"data":    json.RawMessage(raw),
	})
}

// errorResponse writes an error envelope with the given JK- code.
func errorResponse(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, map[string]any{
		"code":    code,
		"message": message,
	})
}

// testContext builds a CLI context pointed at the mock server.
func testContext(server *mockServer, args ...string) *cli.Context {
	return makeTestContext(server, nil, args)
}

// makeTestContext builds a CLI context with the global flags plus any
// command-local flags a test action needs. extraFlags maps flag name to
// its value; zero values register the flag without setting it.
func makeTestContext(server *mockServer, extraFlags map[string]any, args []string) *cli.Context {
	app := &cli.App{
		Name:  "test",
		Flags: globalFlags(),
		Metadata: map[string]any{
			"connMgr": connection.NewManager(),
		},
	}

	flags := append([]cli.Flag{}, app.Flags...)
	known := make(map[string]bool)
	for _, f := range flags {
		for _, name := range f.Names() {
			known[name] = true
		}
	}

	cliArgs := []string{"--server", server.URL}
	for name, val := range extraFlags {
		if !known[name] {
			switch v := val.(type) {
			case string:
				flags = append(flags, &cli.StringFlag{Name: name, Value: v})
			case int:
				flags = append(flags, &cli.IntFlag{Name: name, Value: v})
			case bool:
				flags = append(flags, &cli.BoolFlag{Name: name, Value: v})
			case time.Duration:
				flags = append(flags, &cli.DurationFlag{Name: name, Value: v})
			case []string:
				flags = append(flags, &cli.StringSliceFlag{Name: name})
			}
			known[name] = true
		}
		switch v := val.(type) {
		case string:
			if v != "" {
				cliArgs = append(cliArgs, "--"+name, v)
			}
		case int:
			if v != 0 {
				cliArgs = append(cliArgs, "--"+name, fmt.Sprintf("%d", v))
			}
		case bool:
			if v {
				cliArgs = append(cliArgs, "--"+name)
			}
		case time.Duration:
			if v != 0 {
				cliArgs = append(cliArgs, "--"+name, v.String())
			}
		case []string:
			for _, s := range v {
				cliArgs = append(cliArgs, "--"+name, s)
			}
		}
	}
	cliArgs = append(cliArgs, args...)

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range flags {
		f.Apply(set)
	}
	set.Parse(cliArgs)

	return cli.NewContext(app, set, nil)
}

// Wire shapes returned by the mock handlers.

type storeItem struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Indented   bool      `json:"indented"`
	AttachedAt time.Time `json:"attached_at"`
	AttachedBy string    `json:"attached_by,omitempty"`
}

type storesListResponse struct {
	Items []storeItem `json:"items"`
	Total int         `json:"total"`
}

type apiKeyItem struct {
	KeyID       string    `json:"key_id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	Description string    `json:"description,omitempty"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at,omitempty"`
}

type apiKeysListResponse struct {
	Keys []apiKeyItem `json:"keys"`
}

func sampleStore() storeItem {
	return storeItem{
		Name:       "db0",
		Path:       "/var/lib/jsonkeep/db0.json",
		Indented:   true,
		AttachedAt: time.Now().Add(-1 * time.Hour),
		AttachedBy: "jkak-01kct9ns8he7a9m022x0tgbhds",
	}
}

func sampleAPIKey() apiKeyItem {
	return apiKeyItem{
		KeyID:     "jkak-01kct9ns8he7a9m022x0tgbhds",
		Name:      "test-key",
		Role:      "admin",
		Enabled:   true,
		CreatedAt: time.Now().Add(-24 * time.Hour),
	}
}
