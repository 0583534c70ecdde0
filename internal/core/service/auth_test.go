package service

import (
	"context"
	"testing"
	"time"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
)

// memKeyRepo is an in-memory APIKeyRepository for tests.
type memKeyRepo struct {
	keys map[string]*domain.APIKey
}

func newMemKeyRepo() *memKeyRepo {
	return &memKeyRepo{keys: make(map[string]*domain.APIKey)}
}

func (m *memKeyRepo) Get(_ context.Context, keyID string) (*domain.APIKey, error) {
	key, ok := m.keys[keyID]
	if !ok {
		return nil, domain.ErrAPIKeyNotFound
	}
	return key, nil
}

func (m *memKeyRepo) Create(_ context.Context, key *domain.APIKey) error {
	if _, ok := m.keys[key.KeyID]; ok {
		return domain.ErrAPIKeyConflict
	}
	m.keys[key.KeyID] = key
	return nil
}

func (m *memKeyRepo) Update(_ context.Context, key *domain.APIKey) error {
	if _, ok := m.keys[key.KeyID]; !ok {
		return domain.ErrAPIKeyNotFound
	}
	m.keys[key.KeyID] = key
	return nil
}

func (m *memKeyRepo) Delete(_ context.Context, keyID string) error {
	if _, ok := m.keys[keyID]; !ok {
		return domain.ErrAPIKeyNotFound
	}
	delete(m.keys, keyID)
	return nil
}

func (m *memKeyRepo) List(_ context.Context) ([]*domain.APIKey, error) {
	out := make([]*domain.APIKey, 0, len(m.keys))
	for _, key := range m.keys {
		out = append(out, key)
	}
	return out, nil
}

func newTestAuth(t *testing.T) (*AuthService, *memKeyRepo) {
	t.Helper()
	repo := newMemKeyRepo()
	return NewAuthService(repo, nil), repo
}

func mintKey(t *testing.T, svc *AuthService, name, role string) *CreateAPIKeyResponse {
	t.Helper()
	resp, err := svc.CreateAPIKey(context.Background(), &CreateAPIKeyRequest{Name: name, Role: role})
	if err != nil {
		t.Fatalf("CreateAPIKey(%s) error = %v", name, err)
	}
	return resp
}

func TestCreateAPIKey(t *testing.T) {
	svc, _ := newTestAuth(t)

	resp := mintKey(t, svc, "ops-admin", "admin")
	if resp.KeyID == "" || resp.Secret == "" {
		t.Errorf("minted key missing credentials: id=%q secret present=%t", resp.KeyID, resp.Secret != "")
	}
	if resp.Name != "ops-admin" || resp.Role != "admin" {
		t.Errorf("minted key = %s/%s, want ops-admin/admin", resp.Name, resp.Role)
	}

	if got := mintKey(t, svc, "ingest", "writer"); got.Role != "writer" {
		t.Errorf("Role = %s, want writer", got.Role)
	}

	// Roles outside the built-in set are stored as given.
	if got := mintKey(t, svc, "auditor", "compliance"); got.Role != "compliance" {
		t.Errorf("Role = %s, want compliance", got.Role)
	}
}

func TestListAPIKeys(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	mintKey(t, svc, "admin-1", "admin")
	mintKey(t, svc, "writer-1", "writer")
	mintKey(t, svc, "admin-2", "admin")

	resp, err := svc.ListAPIKeys(ctx, &ListAPIKeysRequest{})
	if err != nil {
		t.Fatalf("ListAPIKeys() error = %v", err)
	}
	if len(resp.Keys) != 3 {
		t.Errorf("listed %d keys, want 3", len(resp.Keys))
	}

	filtered, err := svc.ListAPIKeys(ctx, &ListAPIKeysRequest{Role: "admin"})
	if err != nil {
		t.Fatalf("ListAPIKeys(role=admin) error = %v", err)
	}
	if len(filtered.Keys) != 2 {
		t.Errorf("listed %d admin keys, want 2", len(filtered.Keys))
	}
}

func TestUpdateAPIKeyStatus(t *testing.T) {
	svc, repo := newTestAuth(t)
	ctx := context.Background()
	minted := mintKey(t, svc, "toggled", "writer")

	resp, err := svc.UpdateAPIKeyStatus(ctx, &UpdateAPIKeyStatusRequest{KeyID: minted.KeyID, Enabled: false})
	if err != nil || !resp.Success {
		t.Fatalf("disable: resp=%+v err=%v", resp, err)
	}
	if key := repo.keys[minted.KeyID]; key.Status != domain.KeyStatusDisabled {
		t.Errorf("status after disable = %s", key.Status)
	}

	if _, err := svc.UpdateAPIKeyStatus(ctx, &UpdateAPIKeyStatusRequest{KeyID: minted.KeyID, Enabled: true}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if key := repo.keys[minted.KeyID]; key.Status != domain.KeyStatusActive {
		t.Errorf("status after enable = %s", key.Status)
	}

	if _, err := svc.UpdateAPIKeyStatus(ctx, &UpdateAPIKeyStatusRequest{KeyID: "jkak-missing"}); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestRotateAPIKey(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()
	minted := mintKey(t, svc, "rotated", "admin")

	resp, err := svc.RotateAPIKey(ctx, &RotateAPIKeyRequest{KeyID: minted.KeyID})
	if err != nil {
		t.Fatalf("RotateAPIKey() error = %v", err)
	}
	if resp.NewSecret == "" || resp.NewSecret == minted.Secret {
		t.Errorf("rotation produced secret %q (original %q)", resp.NewSecret, minted.Secret)
	}

	// The new secret authenticates; after rotation the old one still does
	// within the grace period.
	for _, secret := range []string{resp.NewSecret, minted.Secret} {
		out, err := svc.ValidateAPIKey(ctx, &ValidateAPIKeyRequest{
			KeyID: minted.KeyID, KeySecret: secret, ClientIP: "127.0.0.1",
		})
		if err != nil || !out.Valid {
			t.Errorf("ValidateAPIKey(secret=%q...) = %v, %v", secret[:4], out, err)
		}
	}

	if _, err := svc.RotateAPIKey(ctx, &RotateAPIKeyRequest{KeyID: "jkak-missing"}); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestCheckPermissionByRole(t *testing.T) {
	svc, _ := newTestAuth(t)

	cases := []struct {
		role  domain.Role
		perm  domain.Permission
		allow bool
	}{
		{domain.RoleAdmin, domain.PermStoreAttach, true},
		{domain.RoleAdmin, domain.PermAPIKeyCreate, true},
		{domain.RoleAdmin, domain.PermSystemConfig, true},
		{domain.RoleWriter, domain.PermStoreRead, true},
		{domain.RoleWriter, domain.PermStoreWrite, true},
		{domain.RoleWriter, domain.PermSnapshotCreate, true},
		{domain.RoleWriter, domain.PermStoreAttach, false},
		{domain.RoleWriter, domain.PermAPIKeyCreate, false},
		{domain.RoleReader, domain.PermStoreRead, true},
		{domain.RoleReader, domain.PermSnapshotList, true},
		{domain.RoleReader, domain.PermMetricsRead, true},
		{domain.RoleReader, domain.PermStoreWrite, false},
		{domain.RoleReader, domain.PermStoreFlush, false},
	}
	for _, tc := range cases {
		err := svc.CheckPermission(&domain.APIKey{Role: tc.role}, tc.perm)
		if tc.allow && err != nil {
			t.Errorf("%s should hold %s: %v", tc.role, tc.perm, err)
		}
		if !tc.allow && err == nil {
			t.Errorf("%s should not hold %s", tc.role, tc.perm)
		}
	}
}

func TestCheckRateLimit(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := svc.CheckRateLimit(ctx, "roomy", 100); err != nil {
			t.Fatalf("request %d rejected under generous limit: %v", i, err)
		}
	}

	tripped := false
	for i := 0; i < 20; i++ {
		if err := svc.CheckRateLimit(ctx, "tight", 5); err != nil {
			tripped = true
			break
		}
	}
	if !tripped {
		t.Error("20 immediate requests never tripped a 5/s limit")
	}
}

func TestAPIKeyCacheBasics(t *testing.T) {
	cache := NewAPIKeyCache(5, time.Minute)

	cache.Set("jkak-a", &domain.APIKey{KeyID: "jkak-a", Name: "first"})
	if got := cache.Get("jkak-a"); got == nil || got.Name != "first" {
		t.Errorf("Get after Set = %+v", got)
	}
	if cache.Get("jkak-missing") != nil {
		t.Error("Get on a miss should return nil")
	}

	cache.Delete("jkak-a")
	if cache.Get("jkak-a") != nil {
		t.Error("Get after Delete should return nil")
	}

	cache.Set("jkak-b", &domain.APIKey{KeyID: "jkak-b"})
	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("Size after Clear = %d", cache.Size())
	}
}

func TestAPIKeyCacheTTL(t *testing.T) {
	cache := NewAPIKeyCache(5, 50*time.Millisecond)
	cache.Set("jkak-ttl", &domain.APIKey{KeyID: "jkak-ttl"})

	if cache.Get("jkak-ttl") == nil {
		t.Fatal("entry missing immediately after Set")
	}
	time.Sleep(100 * time.Millisecond)
	if cache.Get("jkak-ttl") != nil {
		t.Error("entry survived past its TTL")
	}
}

func TestAPIKeyCacheLRUEviction(t *testing.T) {
	cache := NewAPIKeyCache(3, time.Minute)
	for _, id := range []string{"k1", "k2", "k3"} {
		cache.Set(id, &domain.APIKey{KeyID: id})
	}

	// Touch k1 so k2 becomes the LRU victim.
	cache.Get("k1")
	cache.Set("k4", &domain.APIKey{KeyID: "k4"})

	if cache.Get("k2") != nil {
		t.Error("k2 should have been evicted")
	}
	for _, id := range []string{"k1", "k3", "k4"} {
		if cache.Get(id) == nil {
			t.Errorf("%s should have survived eviction", id)
		}
	}
}

func TestRateLimiterRegistrySharing(t *testing.T) {
	reg := NewRateLimiterRegistry()

	a := reg.GetOrCreate("key-a", 100)
	if reg.GetOrCreate("key-a", 100) != a {
		t.Error("same key should share one limiter")
	}
	if reg.GetOrCreate("key-b", 100) == a {
		t.Error("different keys should not share a limiter")
	}

	reg.Delete("key-a")
	reg.GetOrCreate("key-a", 100)
	reg.Clear()
	reg.GetOrCreate("key-c", 100)
}

func TestValidateAPIKey(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()
	minted := mintKey(t, svc, "validated", "admin")

	t.Run("correct secret", func(t *testing.T) {
		resp, err := svc.ValidateAPIKey(ctx, &ValidateAPIKeyRequest{
			KeyID: minted.KeyID, KeySecret: minted.Secret, ClientIP: "127.0.0.1",
		})
		if err != nil {
			t.Fatalf("ValidateAPIKey() error = %v", err)
		}
		if !resp.Valid || resp.APIKey == nil {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := svc.ValidateAPIKey(ctx, &ValidateAPIKeyRequest{
			KeyID: minted.KeyID, KeySecret: "jkas_wrong", ClientIP: "127.0.0.1",
		})
		if err == nil {
			t.Error("wrong secret accepted")
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := svc.ValidateAPIKey(ctx, &ValidateAPIKeyRequest{
			KeyID: "jkak-missing", KeySecret: "jkas_any", ClientIP: "127.0.0.1",
		})
		if err == nil {
			t.Error("unknown key accepted")
		}
	})

	t.Run("disabled key", func(t *testing.T) {
		if _, err := svc.UpdateAPIKeyStatus(ctx, &UpdateAPIKeyStatusRequest{KeyID: minted.KeyID}); err != nil {
			t.Fatalf("disable: %v", err)
		}
		_, err := svc.ValidateAPIKey(ctx, &ValidateAPIKeyRequest{
			KeyID: minted.KeyID, KeySecret: minted.Secret, ClientIP: "127.0.0.1",
		})
		if err == nil {
			t.Error("disabled key accepted")
		}
	})
}

func TestValidateAPIKeyCachePath(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()
	minted := mintKey(t, svc, "cached", "admin")

	req := &ValidateAPIKeyRequest{KeyID: minted.KeyID, KeySecret: minted.Secret, ClientIP: "127.0.0.1"}
	if _, err := svc.ValidateAPIKey(ctx, req); err != nil {
		t.Fatalf("first validation: %v", err)
	}
	if svc.cache.Get(minted.KeyID) == nil {
		t.Fatal("key not cached after validation")
	}

	// Second validation is served from the cache.
	resp, err := svc.ValidateAPIKey(ctx, req)
	if err != nil || !resp.Valid {
		t.Fatalf("cached validation: resp=%+v err=%v", resp, err)
	}

	svc.InvalidateCache(minted.KeyID)
	if svc.cache.Get(minted.KeyID) != nil {
		t.Error("key still cached after InvalidateCache")
	}
}

func TestAllowlistPermits(t *testing.T) {
	cases := []struct {
		name     string
		global   []string
		perKey   []string
		clientIP string
		allow    bool
	}{
		{"empty allowlists pass everything", nil, nil, "203.0.113.9", true},
		{"exact IP match", []string{"192.168.1.1"}, nil, "192.168.1.1", true},
		{"exact IP mismatch", []string{"192.168.1.1"}, nil, "192.168.1.2", false},
		{"CIDR match", []string{"192.168.1.0/24"}, nil, "192.168.1.100", true},
		{"CIDR mismatch", []string{"192.168.1.0/24"}, nil, "192.168.2.1", false},
		{"malformed client IP", []string{"192.168.1.0/24"}, nil, "not-an-ip", false},
		{"per-key entry", nil, []string{"10.0.0.1"}, "10.0.0.1", true},
		{"global entry with per-key present", []string{"192.168.1.0/24"}, []string{"10.0.0.1"}, "192.168.1.50", true},
		{"malformed entry skipped", []string{"bad/cidr/xx", "192.168.1.1"}, nil, "192.168.1.1", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewAuthService(newMemKeyRepo(), &AuthServiceConfig{GlobalAllowlist: tc.global})
			err := svc.allowlistPermits(tc.clientIP, tc.perKey)
			if tc.allow && err != nil {
				t.Errorf("allowlistPermits(%s) = %v, want nil", tc.clientIP, err)
			}
			if !tc.allow && err == nil {
				t.Errorf("allowlistPermits(%s) = nil, want error", tc.clientIP)
			}
		})
	}
}

func TestArgonVerifyMalformedHashes(t *testing.T) {
	bad := []struct {
		name string
		hash string
	}{
		{"not a hash", "plainly-wrong"},
		{"wrong algorithm", "$bcrypt$v=19$m=16384,t=2,p=2$c2FsdA$aGFzaA"},
		{"bad salt encoding", "$argon2id$v=19$m=16384,t=2,p=2$!!!$aGFzaA"},
		{"bad digest encoding", "$argon2id$v=19$m=16384,t=2,p=2$c2FsdA$!!!"},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			if argonVerify("secret", tc.hash) {
				t.Errorf("argonVerify accepted %s", tc.name)
			}
		})
	}
}

func TestSecretMatchesGracePeriod(t *testing.T) {
	svc, _ := newTestAuth(t)

	key := &domain.APIKey{SecretHash: "garbage", OldSecretHash: "also-garbage"}
	if svc.secretMatches("wrong", key) {
		t.Error("matched against two garbage hashes")
	}

	// A rotated key accepts its previous secret only inside the grace period.
	apiKey, oldSecret, err := domain.NewAPIKey("grace", domain.RoleReader)
	if err != nil {
		t.Fatalf("NewAPIKey: %v", err)
	}
	newSecret, err := apiKey.RotateSecret()
	if err != nil {
		t.Fatalf("RotateSecret: %v", err)
	}
	if !svc.secretMatches(newSecret, apiKey) {
		t.Error("new secret rejected")
	}
	if !svc.secretMatches(oldSecret, apiKey) {
		t.Error("old secret rejected inside grace period")
	}
	if svc.secretMatches("jkas_neither", apiKey) {
		t.Error("unrelated secret accepted")
	}
}

func TestDefaultAuthServiceConfig(t *testing.T) {
	cfg := DefaultAuthServiceConfig()
	if cfg.CacheTTL != 60*time.Second {
		t.Errorf("CacheTTL = %v, want 60s", cfg.CacheTTL)
	}
	if cfg.CacheSize != 10000 {
		t.Errorf("CacheSize = %d, want 10000", cfg.CacheSize)
	}
	if len(cfg.GlobalAllowlist) != 0 {
		t.Error("GlobalAllowlist should default empty")
	}
}
