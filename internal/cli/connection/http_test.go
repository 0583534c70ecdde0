package connection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// okEnvelope wraps data the way the server does.
func okEnvelope(data string) string {
	return `{"code":"OK","message":"Success","request_id":"req-1","timestamp":1,"data":` + data + `}`
}

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name       string
		server     string
		wantPrefix string
	}{
		{"with http prefix", "http://localhost:5090", "http://localhost:5090"},
		{"with https prefix", "https://localhost:5090", "https://localhost:5090"},
		{"without prefix", "localhost:5090", "http://localhost:5090"},
		{"hostname only", "api.example.com", "http://api.example.com"},
		{"trailing slash stripped", "http://localhost:5090/", "http://localhost:5090"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewHTTPClient(tt.server, "keyid", "secret")
			if client.BaseURL() != tt.wantPrefix {
				t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), tt.wantPrefix)
			}
		})
	}
}

func TestHTTPClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}

		if r.Header.Get("X-API-Key-ID") != "jkak-test" {
			t.Errorf("X-API-Key-ID = %q, want %q", r.Header.Get("X-API-Key-ID"), "jkak-test")
		}
		if r.Header.Get("X-API-Key") != "jkas_secret" {
			t.Errorf("X-API-Key = %q, want %q", r.Header.Get("X-API-Key"), "jkas_secret")
		}
		if r.Header.Get("User-Agent") != "jsonkeep-cli/1.0" {
			t.Errorf("User-Agent = %q, want %q", r.Header.Get("User-Agent"), "jsonkeep-cli/1.0")
		}

		if r.URL.Path != "/test/path" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/test/path")
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(okEnvelope(`{"status":"ok"}`)))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "jkak-test", "jkas_secret")
	resp, err := client.Get(context.Background(), "/test/path")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestHTTPClient_Post(t *testing.T) {
	type requestBody struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}

		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q, want %q", r.Header.Get("Content-Type"), "application/json")
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}

		if body.Name != "test" || body.Value != 42 {
			t.Errorf("body = %+v, want {Name:test Value:42}", body)
		}

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(okEnvelope(`{"id":"123"}`)))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "jkak-test", "jkas_secret")
	resp, err := client.Post(context.Background(), "/api/create", requestBody{Name: "test", Value: 42})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
}

func TestHTTPClient_PutAndDelete(t *testing.T) {
	var gotMethods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethods = append(gotMethods, r.Method)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(okEnvelope(`{}`)))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", "")

	resp, err := client.Put(context.Background(), "/v1/stores/db0/keys/a", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	resp.Body.Close()

	resp, err = client.Delete(context.Background(), "/v1/stores/db0/keys/a")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	resp.Body.Close()

	if len(gotMethods) != 2 || gotMethods[0] != http.MethodPut || gotMethods[1] != http.MethodDelete {
		t.Errorf("methods = %v, want [PUT DELETE]", gotMethods)
	}
}

func TestHTTPClient_Post_NilBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "" {
			t.Errorf("Content-Type should be empty for nil body, got %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(okEnvelope(`{}`)))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "jkak-test", "jkas_secret")
	resp, err := client.Post(context.Background(), "/api/trigger", nil)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()
}

func TestHTTPClient_BearerFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A combined key without a separate ID goes out as a bearer token.
		if got := r.Header.Get("Authorization"); got != "Bearer jkak-test:jkas_secret" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		if r.Header.Get("X-API-Key-ID") != "" {
			t.Error("X-API-Key-ID should be empty for bearer auth")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(okEnvelope(`{}`)))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", "jkak-test:jkas_secret")
	resp, err := client.Get(context.Background(), "/v1/stores")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()
}

func TestHTTPClient_NoAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key-ID") != "" {
			t.Errorf("X-API-Key-ID should be empty, got %q", r.Header.Get("X-API-Key-ID"))
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("Authorization should be empty, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(okEnvelope(`{}`)))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", "")
	resp, err := client.Get(context.Background(), "/healthz")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()
}

func TestParseResponse_Success(t *testing.T) {
	type storeData struct {
		Name string `json:"name"`
		Keys int    `json:"keys"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(okEnvelope(`{"name":"db0","keys":3}`)))
	}))
	defer server.Close()

	resp, _ := http.Get(server.URL)

	var result storeData
	err := ParseResponse(resp, &result)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}

	if result.Name != "db0" || result.Keys != 3 {
		t.Errorf("result = %+v, want {Name:db0 Keys:3}", result)
	}
}

func TestParseResponse_Error(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErrMsg string
		wantCode   string
	}{
		{
			name:       "domain error envelope",
			status:     404,
			body:       `{"code":"JK-STOR-4040","message":"store not found","request_id":"r","timestamp":1}`,
			wantErrMsg: "[JK-STOR-4040] store not found",
			wantCode:   "JK-STOR-4040",
		},
		{
			name:       "auth error envelope",
			status:     401,
			body:       `{"code":"JK-AUTH-4011","message":"invalid api key","request_id":"r","timestamp":1}`,
			wantErrMsg: "[JK-AUTH-4011] invalid api key",
			wantCode:   "JK-AUTH-4011",
		},
		{
			name:       "non-json error body",
			status:     500,
			body:       `not json`,
			wantErrMsg: "status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			resp, _ := http.Get(server.URL)
			err := ParseResponse(resp, nil)

			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrMsg) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErrMsg)
			}
			if tt.wantCode != "" {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error is %T, want *APIError", err)
				}
				if apiErr.Code != tt.wantCode {
					t.Errorf("Code = %q, want %q", apiErr.Code, tt.wantCode)
				}
			}
		})
	}
}

func TestParseResponse_ErrorCodeIn200(t *testing.T) {
	// An error code in the envelope counts even with HTTP 200.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"code":"JK-SYS-4290","message":"too many requests","request_id":"r","timestamp":1}`))
	}))
	defer server.Close()

	resp, _ := http.Get(server.URL)
	err := ParseResponse(resp, nil)
	if err == nil {
		t.Fatal("expected error for non-OK envelope code")
	}
}

func TestParseResponse_NilTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(okEnvelope(`{"ignored":true}`)))
	}))
	defer server.Close()

	resp, _ := http.Get(server.URL)
	err := ParseResponse(resp, nil)

	if err != nil {
		t.Errorf("ParseResponse with nil target should not error: %v", err)
	}
}
