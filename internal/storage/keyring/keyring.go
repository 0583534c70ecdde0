// Package keyring persists API keys in a JSON key-value store.
//
// The ring satisfies the auth service's APIKeyRepository interface. Each
// API key is one entry in the backing file, keyed by key ID, so the ring
// survives restarts and can be inspected with any JSON tool.
//
// @design DS-0201
package keyring

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
	"github.com/yndnr/jsonkeep-go/pkg/jsonstore"
)

// record is the stored form of an API key. The domain entity strips its
// secret hashes from JSON so responses never leak them; the key file is
// private to the server and must keep them.
type record struct {
	KeyID          string   `json:"key_id"`
	Name           string   `json:"name"`
	SecretHash     string   `json:"secret_hash"`
	OldSecretHash  string   `json:"old_secret_hash,omitempty"`
	GracePeriodEnd int64    `json:"grace_period_end,omitempty"`
	Role           string   `json:"role"`
	Allowlist      []string `json:"allowlist,omitempty"`
	RateLimit      int      `json:"rate_limit"`
	ExpiresAt      int64    `json:"expires_at,omitempty"`
	Status         string   `json:"status"`
	Description    string   `json:"description,omitempty"`
	CreatedAt      int64    `json:"created_at"`
	CreatedBy      string   `json:"created_by"`
	LastUsed       int64    `json:"last_used,omitempty"`
	Version        uint64   `json:"version"`
}

func recordFromKey(k *domain.APIKey) *record {
	return &record{
		KeyID:          k.KeyID,
		Name:           k.Name,
		SecretHash:     k.SecretHash,
		OldSecretHash:  k.OldSecretHash,
		GracePeriodEnd: k.GracePeriodEnd,
		Role:           string(k.Role),
		Allowlist:      k.Allowlist,
		RateLimit:      k.RateLimit,
		ExpiresAt:      k.ExpiresAt,
		Status:         string(k.Status),
		Description:    k.Description,
		CreatedAt:      k.CreatedAt,
		CreatedBy:      k.CreatedBy,
		LastUsed:       k.LastUsed,
		Version:        k.Version,
	}
}

func (rec *record) toKey() *domain.APIKey {
	return &domain.APIKey{
		KeyID:          rec.KeyID,
		Name:           rec.Name,
		SecretHash:     rec.SecretHash,
		OldSecretHash:  rec.OldSecretHash,
		GracePeriodEnd: rec.GracePeriodEnd,
		Role:           domain.Role(rec.Role),
		Allowlist:      rec.Allowlist,
		RateLimit:      rec.RateLimit,
		ExpiresAt:      rec.ExpiresAt,
		Status:         domain.KeyStatus(rec.Status),
		Description:    rec.Description,
		CreatedAt:      rec.CreatedAt,
		CreatedBy:      rec.CreatedBy,
		LastUsed:       rec.LastUsed,
		Version:        rec.Version,
	}
}

// Keyring stores API keys in a dedicated JSON file.
//
// @design DS-0201
type Keyring struct {
	mu    sync.Mutex
	store *jsonstore.Store
}

// Open opens (or creates) the key file at path.
func Open(path string) (*Keyring, error) {
	store, err := jsonstore.New(path)
	if err != nil {
		return nil, domain.ErrStorageError.WithDetails("open keyring").WithCause(err)
	}
	return &Keyring{store: store}, nil
}

// Get retrieves an API key by ID.
func (r *Keyring) Get(_ context.Context, keyID string) (*domain.APIKey, error) {
	v, ok := r.store.Get(keyID)
	if !ok {
		return nil, domain.ErrAPIKeyNotFound
	}
	key, err := decodeAPIKey(v)
	if err != nil {
		return nil, domain.ErrStorageError.WithDetails(fmt.Sprintf("decode api key %s", keyID)).WithCause(err)
	}
	return key, nil
}

// Create stores a new API key.
func (r *Keyring) Create(_ context.Context, key *domain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store.Has(key.KeyID) {
		return domain.ErrAPIKeyConflict
	}
	if err := r.store.Set(key.KeyID, recordFromKey(key)); err != nil {
		return domain.ErrStorageError.WithDetails(fmt.Sprintf("persist api key %s", key.KeyID)).WithCause(err)
	}
	return nil
}

// Update replaces an existing API key.
func (r *Keyring) Update(_ context.Context, key *domain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.store.Has(key.KeyID) {
		return domain.ErrAPIKeyNotFound
	}
	if err := r.store.Set(key.KeyID, recordFromKey(key)); err != nil {
		return domain.ErrStorageError.WithDetails(fmt.Sprintf("persist api key %s", key.KeyID)).WithCause(err)
	}
	return nil
}

// Delete removes an API key by ID.
func (r *Keyring) Delete(_ context.Context, keyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.store.Has(keyID) {
		return domain.ErrAPIKeyNotFound
	}
	if err := r.store.Delete(keyID); err != nil {
		return domain.ErrStorageError.WithDetails(fmt.Sprintf("remove api key %s", keyID)).WithCause(err)
	}
	return nil
}

// List retrieves all API keys in creation order.
func (r *Keyring) List(_ context.Context) ([]*domain.APIKey, error) {
	entries := r.store.Entries()
	keys := make([]*domain.APIKey, 0, len(entries))
	for _, entry := range entries {
		key, err := decodeAPIKey(entry.Value)
		if err != nil {
			return nil, domain.ErrStorageError.WithDetails(fmt.Sprintf("decode api key %s", entry.Key)).WithCause(err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Len returns the number of stored keys.
func (r *Keyring) Len() int { return r.store.Len() }

// Path returns the backing file path.
func (r *Keyring) Path() string { return r.store.Path() }

// Close releases the backing store.
func (r *Keyring) Close() error { return r.store.Close() }

// decodeAPIKey rebuilds an API key from its stored JSON object form.
func decodeAPIKey(v any) (*domain.APIKey, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return rec.toKey(), nil
}
