package keyring

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
)

func openTestKeyring(t *testing.T) (*Keyring, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keys.json")
	ring, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ring.Close() })
	return ring, path
}

func TestKeyring_CRUD(t *testing.T) {
	ring, _ := openTestKeyring(t)
	ctx := context.Background()

	// Create
	key := &domain.APIKey{
		KeyID:      "jkak-01hqv1234567890abcdefghijk",
		Name:       "ops",
		SecretHash: "test-key-hash",
		Role:       domain.RoleAdmin,
		Status:     domain.KeyStatusActive,
		RateLimit:  1000,
	}
	if err := ring.Create(ctx, key); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Create conflict
	if err := ring.Create(ctx, key); !errors.Is(err, domain.ErrAPIKeyConflict) {
		t.Fatalf("Create(dup) err = %v, want %v", err, domain.ErrAPIKeyConflict)
	}

	// Get
	got, err := ring.Get(ctx, key.KeyID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.KeyID != key.KeyID {
		t.Fatalf("KeyID = %q, want %q", got.KeyID, key.KeyID)
	}
	if got.SecretHash != "test-key-hash" {
		t.Fatalf("SecretHash = %q, want preserved", got.SecretHash)
	}
	if got.Role != domain.RoleAdmin {
		t.Fatalf("Role = %q, want admin", got.Role)
	}

	// Get not found
	_, err = ring.Get(ctx, "nonexistent")
	if !errors.Is(err, domain.ErrAPIKeyNotFound) {
		t.Fatalf("Get(nonexistent) err = %v, want %v", err, domain.ErrAPIKeyNotFound)
	}

	// Update
	key.Description = "updated"
	if err := ring.Update(ctx, key); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = ring.Get(ctx, key.KeyID)
	if got.Description != "updated" {
		t.Fatalf("Description = %q, want %q", got.Description, "updated")
	}

	// Update not found
	notExist := &domain.APIKey{KeyID: "nonexistent"}
	if err := ring.Update(ctx, notExist); !errors.Is(err, domain.ErrAPIKeyNotFound) {
		t.Fatalf("Update(nonexistent) err = %v, want %v", err, domain.ErrAPIKeyNotFound)
	}

	// List
	keys, err := ring.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("len(keys) = %d, want 1", len(keys))
	}
	if ring.Len() != 1 {
		t.Fatalf("Len = %d, want 1", ring.Len())
	}

	// Delete
	if err := ring.Delete(ctx, key.KeyID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	// Delete not found
	if err := ring.Delete(ctx, key.KeyID); !errors.Is(err, domain.ErrAPIKeyNotFound) {
		t.Fatalf("Delete(nonexistent) err = %v, want %v", err, domain.ErrAPIKeyNotFound)
	}

	// List after delete
	keys, _ = ring.List(ctx)
	if len(keys) != 0 {
		t.Fatalf("len(keys) after delete = %d, want 0", len(keys))
	}
}

func TestKeyring_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	ctx := context.Background()

	ring, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	key, secret, err := domain.NewAPIKey("ops", domain.RoleWriter)
	if err != nil {
		t.Fatalf("NewAPIKey: %v", err)
	}
	if secret == "" {
		t.Fatal("NewAPIKey returned empty secret")
	}
	if err := ring.Create(ctx, key); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ring.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, key.KeyID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.SecretHash != key.SecretHash {
		t.Fatal("SecretHash should survive reopen")
	}
	if got.Role != domain.RoleWriter {
		t.Fatalf("Role = %q, want writer", got.Role)
	}
	if got.CreatedAt != key.CreatedAt {
		t.Fatalf("CreatedAt = %d, want %d", got.CreatedAt, key.CreatedAt)
	}
}

func TestKeyring_FileKeepsHashesOnly(t *testing.T) {
	ring, path := openTestKeyring(t)
	ctx := context.Background()

	key, secret, err := domain.NewAPIKey("ops", domain.RoleReader)
	if err != nil {
		t.Fatalf("NewAPIKey: %v", err)
	}
	if err := ring.Create(ctx, key); err != nil {
		t.Fatalf("Create: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read key file: %v", err)
	}
	content := string(raw)

	if !strings.Contains(content, `"secret_hash":"$argon2id$`) {
		t.Error("key file should carry the argon2id hash")
	}
	if strings.Contains(content, secret) {
		t.Error("key file must never contain the plaintext secret")
	}
}

func TestKeyring_ListOrder(t *testing.T) {
	ring, _ := openTestKeyring(t)
	ctx := context.Background()

	ids := []string{
		"jkak-01hqv000000000000000000001",
		"jkak-01hqv000000000000000000002",
		"jkak-01hqv000000000000000000003",
	}
	for i, id := range ids {
		if err := ring.Create(ctx, &domain.APIKey{KeyID: id, Name: string(rune('a' + i))}); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}

	keys, err := ring.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("len(keys) = %d, want 3", len(keys))
	}
	for i, id := range ids {
		if keys[i].KeyID != id {
			t.Errorf("keys[%d].KeyID = %s, want %s (creation order)", i, keys[i].KeyID, id)
		}
	}
}
