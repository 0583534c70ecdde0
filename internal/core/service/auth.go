package service

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
	"github.com/yndnr/jsonkeep-go/internal/telemetry/logger"
)

// APIKeyRepository is the storage interface for API keys.
type APIKeyRepository interface {
	Get(ctx context.Context, keyID string) (*domain.APIKey, error)
	Create(ctx context.Context, key *domain.APIKey) error
	Update(ctx context.Context, key *domain.APIKey) error
	Delete(ctx context.Context, keyID string) error
	List(ctx context.Context) ([]*domain.APIKey, error)
}

// AuthServiceConfig holds configuration for AuthService.
type AuthServiceConfig struct {
	// CacheTTL bounds how long a validated key is trusted without a
	// repository round-trip (default 60s).
	CacheTTL time.Duration

	// CacheSize caps the validated-key cache (default 10000).
	CacheSize int

	// GlobalAllowlist restricts every key to these IPs/CIDRs in addition
	// to any per-key allowlist. Empty means unrestricted.
	GlobalAllowlist []string

	// Logger receives audit and failure events (default logger.Default()).
	Logger logger.Logger
}

// DefaultAuthServiceConfig returns the default configuration.
func DefaultAuthServiceConfig() *AuthServiceConfig {
	return &AuthServiceConfig{
		CacheTTL:  60 * time.Second,
		CacheSize: 10000,
	}
}

// AuthService authenticates and authorizes API keys.
type AuthService struct {
	repo        APIKeyRepository
	cache       *APIKeyCache
	limiters    *RateLimiterRegistry
	globalAllow []string
	log         logger.Logger
}

// NewAuthService creates an AuthService. A nil config takes defaults.
func NewAuthService(repo APIKeyRepository, config *AuthServiceConfig) *AuthService {
	if config == nil {
		config = DefaultAuthServiceConfig()
	}
	log := config.Logger
	if log == nil {
		log = logger.Default()
	}
	return &AuthService{
		repo:        repo,
		cache:       NewAPIKeyCache(config.CacheSize, config.CacheTTL),
		limiters:    NewRateLimiterRegistry(),
		globalAllow: config.GlobalAllowlist,
		log:         log,
	}
}

// ValidateAPIKeyRequest carries the credentials presented by a client.
type ValidateAPIKeyRequest struct {
	KeyID     string
	KeySecret string
	ClientIP  string
}

// ValidateAPIKeyResponse is the outcome of a successful validation.
type ValidateAPIKeyResponse struct {
	Valid  bool
	APIKey *domain.APIKey
}

// ValidateAPIKey authenticates a key ID + secret pair and enforces the key's
// status, expiry, and IP allowlist. Recently validated keys are served from
// the cache so the Argon2 verification still runs but the repository is not
// hit on every request.
func (s *AuthService) ValidateAPIKey(ctx context.Context, req *ValidateAPIKeyRequest) (*ValidateAPIKeyResponse, error) {
	if cached := s.cache.Get(req.KeyID); cached != nil {
		if s.secretMatches(req.KeySecret, cached) {
			if cached.Status == domain.KeyStatusDisabled {
				return nil, domain.ErrAPIKeyDisabled
			}
			if cached.IsExpired() {
				return nil, domain.ErrAPIKeyInvalid.WithDetails("api key expired")
			}
			if err := s.allowlistPermits(req.ClientIP, cached.Allowlist); err != nil {
				return nil, err
			}
			cached.Touch()
			return &ValidateAPIKeyResponse{Valid: true, APIKey: cached}, nil
		}
		// Wrong secret against the cached hash can mean the key was
		// rotated since caching; fall through to the repository.
	}

	apiKey, err := s.repo.Get(ctx, req.KeyID)
	if err != nil {
		return nil, domain.ErrAPIKeyNotFound.WithCause(err)
	}
	if apiKey.Status != domain.KeyStatusActive {
		return nil, domain.ErrAPIKeyDisabled
	}
	if apiKey.IsExpired() {
		return nil, domain.ErrAPIKeyInvalid.WithDetails("api key expired")
	}
	if err := s.allowlistPermits(req.ClientIP, apiKey.Allowlist); err != nil {
		return nil, err
	}
	if !s.secretMatches(req.KeySecret, apiKey) {
		return nil, domain.ErrAPIKeyInvalid.WithDetails("invalid secret")
	}

	apiKey.Touch()
	if err := s.repo.Update(ctx, apiKey); err != nil {
		// Validation already succeeded; a stale last_used is tolerable.
		s.log.Warn("failed to persist api key last_used", "key_id", apiKey.KeyID, "error", err)
	}
	s.cache.Set(req.KeyID, apiKey)

	return &ValidateAPIKeyResponse{Valid: true, APIKey: apiKey}, nil
}

// CheckPermission verifies the key's role grants perm.
func (s *AuthService) CheckPermission(apiKey *domain.APIKey, perm domain.Permission) error {
	if !domain.HasPermission(apiKey.Role, perm) {
		return domain.ErrPermissionDenied.WithDetails(
			"role " + string(apiKey.Role) + " does not have permission " + string(perm),
		)
	}
	return nil
}

// CheckRateLimit enforces the key's per-second request budget.
func (s *AuthService) CheckRateLimit(ctx context.Context, keyID string, rateLimit int) error {
	limiter := s.limiters.GetOrCreate(keyID, rateLimit)
	if limiter.Allow() {
		return nil
	}

	res := limiter.Reserve()
	delay := res.Delay()
	res.Cancel()
	return domain.ErrRateLimited.WithDetails("rate limit exceeded, retry after " + delay.String())
}

// InvalidateCache drops a key from the validated-key cache, forcing the
// next validation through the repository.
func (s *AuthService) InvalidateCache(keyID string) {
	s.cache.Delete(keyID)
}

// allowlistPermits checks clientIP against the union of the global and
// per-key allowlists. An empty union means no restriction. Entries may be
// bare IPs or CIDR ranges; malformed entries are skipped.
func (s *AuthService) allowlistPermits(clientIP string, keyAllowlist []string) error {
	total := len(s.globalAllow) + len(keyAllowlist)
	if total == 0 {
		return nil
	}

	ip := net.ParseIP(clientIP)
	if ip == nil {
		return domain.ErrIPNotAllowed.WithDetails("invalid client IP format")
	}

	allowlist := make([]string, 0, total)
	allowlist = append(allowlist, s.globalAllow...)
	allowlist = append(allowlist, keyAllowlist...)

	for _, entry := range allowlist {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err == nil && ipNet.Contains(ip) {
				return nil
			}
			continue
		}
		if allowed := net.ParseIP(entry); allowed != nil && allowed.Equal(ip) {
			return nil
		}
	}
	return domain.ErrIPNotAllowed.WithDetails("client IP not in allowlist")
}

// secretMatches verifies secret against the key's current hash and, inside
// the rotation grace period, the previous hash.
func (s *AuthService) secretMatches(secret string, key *domain.APIKey) bool {
	if argonVerify(secret, key.SecretHash) {
		return true
	}
	if key.IsInGracePeriod() && key.OldSecretHash != "" {
		return argonVerify(secret, key.OldSecretHash)
	}
	return false
}

// argonVerify checks secret against an encoded Argon2id hash of the form
// $argon2id$v=19$m=...,t=...,p=...$<salt>$<hash>.
func argonVerify(secret, hash string) bool {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(secret), salt,
		domain.Argon2Time, domain.Argon2Memory, domain.Argon2Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// CreateAPIKeyRequest carries parameters for minting a new API key.
type CreateAPIKeyRequest struct {
	Name        string
	Role        string
	Description string
}

// CreateAPIKeyResponse returns the minted key. Secret is the plaintext,
// shown exactly once.
type CreateAPIKeyResponse struct {
	KeyID     string
	Secret    string
	Name      string
	Role      string
	CreatedAt time.Time
}

// CreateAPIKey mints and persists a new API key.
func (s *AuthService) CreateAPIKey(ctx context.Context, req *CreateAPIKeyRequest) (*CreateAPIKeyResponse, error) {
	apiKey, plainSecret, err := domain.NewAPIKey(req.Name, domain.Role(req.Role))
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}
	apiKey.Description = req.Description

	if err := s.repo.Create(ctx, apiKey); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	return &CreateAPIKeyResponse{
		KeyID:     apiKey.KeyID,
		Secret:    plainSecret,
		Name:      apiKey.Name,
		Role:      string(apiKey.Role),
		CreatedAt: apiKey.CreatedAtTime(),
	}, nil
}

// BootstrapAdminKey creates the initial admin key for a fresh keyring.
// When secret is empty a random one is generated. The plaintext secret
// is returned exactly once and cannot be recovered afterwards.
func (s *AuthService) BootstrapAdminKey(ctx context.Context, secret string) (*CreateAPIKeyResponse, error) {
	var (
		apiKey      *domain.APIKey
		plainSecret string
		err         error
	)
	if secret != "" {
		apiKey, err = domain.NewAPIKeyWithSecret("bootstrap-admin", domain.RoleAdmin, secret)
		plainSecret = secret
	} else {
		apiKey, plainSecret, err = domain.NewAPIKey("bootstrap-admin", domain.RoleAdmin)
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, apiKey); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	return &CreateAPIKeyResponse{
		KeyID:     apiKey.KeyID,
		Secret:    plainSecret,
		Name:      apiKey.Name,
		Role:      string(apiKey.Role),
		CreatedAt: apiKey.CreatedAtTime(),
	}, nil
}

// ListAPIKeysRequest optionally filters the listing by role.
type ListAPIKeysRequest struct {
	Role string
}

// ListAPIKeysResponse holds the listed keys, without secret material.
type ListAPIKeysResponse struct {
	Keys []*APIKeyInfo
}

// APIKeyInfo is an API key as presented to operators: no hashes.
type APIKeyInfo struct {
	KeyID       string
	Name        string
	Role        string
	Description string
	Enabled     bool
	CreatedAt   time.Time
	LastUsedAt  time.Time
}

// ListAPIKeys lists all keys, optionally filtered by role.
func (s *AuthService) ListAPIKeys(ctx context.Context, req *ListAPIKeysRequest) (*ListAPIKeysResponse, error) {
	keys, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	var out []*APIKeyInfo
	for _, key := range keys {
		if req.Role != "" && string(key.Role) != req.Role {
			continue
		}
		out = append(out, &APIKeyInfo{
			KeyID:       key.KeyID,
			Name:        key.Name,
			Role:        string(key.Role),
			Description: key.Description,
			Enabled:     key.Status == domain.KeyStatusActive,
			CreatedAt:   key.CreatedAtTime(),
			LastUsedAt:  key.LastUsedAtTime(),
		})
	}

	return &ListAPIKeysResponse{Keys: out}, nil
}

// UpdateAPIKeyStatusRequest enables or disables a key.
type UpdateAPIKeyStatusRequest struct {
	KeyID   string
	Enabled bool
}

// UpdateAPIKeyStatusResponse reports the update outcome.
type UpdateAPIKeyStatusResponse struct {
	Success bool
}

// UpdateAPIKeyStatus flips a key between active and disabled and drops it
// from the validation cache.
func (s *AuthService) UpdateAPIKeyStatus(ctx context.Context, req *UpdateAPIKeyStatusRequest) (*UpdateAPIKeyStatusResponse, error) {
	apiKey, err := s.repo.Get(ctx, req.KeyID)
	if err != nil {
		return nil, domain.ErrAPIKeyNotFound.WithCause(err)
	}

	if req.Enabled {
		apiKey.Status = domain.KeyStatusActive
	} else {
		apiKey.Status = domain.KeyStatusDisabled
	}

	if err := s.repo.Update(ctx, apiKey); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	s.cache.Delete(req.KeyID)

	return &UpdateAPIKeyStatusResponse{Success: true}, nil
}

// RotateAPIKeyRequest names the key whose secret to rotate.
type RotateAPIKeyRequest struct {
	KeyID string
}

// RotateAPIKeyResponse returns the replacement plaintext secret.
type RotateAPIKeyResponse struct {
	KeyID     string
	NewSecret string
}

// RotateAPIKey replaces the key's secret. The old secret keeps working for
// the rotation grace period; the cache entry is dropped immediately.
func (s *AuthService) RotateAPIKey(ctx context.Context, req *RotateAPIKeyRequest) (*RotateAPIKeyResponse, error) {
	apiKey, err := s.repo.Get(ctx, req.KeyID)
	if err != nil {
		return nil, domain.ErrAPIKeyNotFound.WithCause(err)
	}

	newSecret, err := apiKey.RotateSecret()
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	if err := s.repo.Update(ctx, apiKey); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	s.cache.Delete(req.KeyID)

	return &RotateAPIKeyResponse{KeyID: apiKey.KeyID, NewSecret: newSecret}, nil
}
