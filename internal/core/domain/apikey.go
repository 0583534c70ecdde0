package domain

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/argon2"
)

const (
	// APIKeyIDPrefix starts every key ID. IDs are public and use a hyphen.
	APIKeyIDPrefix = "jkak-"

	// APIKeySecretPrefix starts every secret. Secrets are sensitive and
	// use an underscore so redaction can tell the two apart.
	APIKeySecretPrefix = "jkas_"
)

// Argon2id parameters for secret hashing.
// @design DS-0201
const (
	Argon2Memory      uint32 = 16384 // KB
	Argon2Time        uint32 = 2
	Argon2Parallelism uint8  = 2
	Argon2KeyLen      uint32 = 32
	Argon2SaltLen            = 16
)

// APIKey field constraints.
const (
	MaxAllowlistEntries  = 100
	MaxDescriptionLength = 256
	MinRateLimit         = 1
	MaxRateLimit         = 1000000
	SecretLength         = 32 // bytes of entropy behind the prefix
	GracePeriodDuration  = 24 * time.Hour
)

// APIKey is an API access credential.
//
// The secret is stored only as an Argon2id hash. During rotation the
// previous hash is kept until GracePeriodEnd so in-flight clients keep
// working while they pick up the new secret.
type APIKey struct {
	// KeyID is jkak-{ulid, lowercased}, 31 characters total.
	KeyID string `json:"key_id"`

	Name string `json:"name"`

	SecretHash    string `json:"-"`
	OldSecretHash string `json:"-"`

	// GracePeriodEnd is when the rotated-out secret stops working
	// (Unix ms); zero means no rotation in progress.
	GracePeriodEnd int64 `json:"grace_period_end,omitempty"`

	Role Role `json:"role"`

	// Allowlist holds IP/CIDR entries; empty means unrestricted.
	Allowlist []string `json:"allowlist,omitempty"`

	// RateLimit is the per-second request budget.
	RateLimit int `json:"rate_limit"`

	// ExpiresAt is the absolute expiry (Unix ms); zero means never.
	ExpiresAt int64 `json:"expires_at,omitempty"`

	Status      KeyStatus `json:"status"`
	Description string    `json:"description,omitempty"`

	CreatedAt int64  `json:"created_at"`
	CreatedBy string `json:"created_by"`
	LastUsed  int64  `json:"last_used,omitempty"`

	// Version supports optimistic locking in the keyring.
	Version uint64 `json:"version"`
}

// NewAPIKey mints a key with a generated ID and secret. The plaintext
// secret is returned exactly once; only its hash is stored.
func NewAPIKey(name string, role Role) (*APIKey, string, error) {
	keyID, err := newKeyID()
	if err != nil {
		return nil, "", err
	}
	plainSecret, err := newSecret()
	if err != nil {
		return nil, "", err
	}
	key, err := buildKey(keyID, name, role, plainSecret)
	if err != nil {
		return nil, "", err
	}
	return key, plainSecret, nil
}

// NewAPIKeyWithSecret mints a key around a caller-provided secret, for
// provisioning flows where the bootstrap secret is fixed ahead of time.
// The secret must carry the standard prefix so masking recognizes it.
func NewAPIKeyWithSecret(name string, role Role, secret string) (*APIKey, error) {
	if !strings.HasPrefix(secret, APIKeySecretPrefix) {
		return nil, ErrInvalidArgument.WithDetails("secret must start with " + APIKeySecretPrefix)
	}
	keyID, err := newKeyID()
	if err != nil {
		return nil, err
	}
	return buildKey(keyID, name, role, secret)
}

func newKeyID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(timeNow()), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return APIKeyIDPrefix + strings.ToLower(id.String()), nil
}

func newSecret() (string, error) {
	raw := make([]byte, SecretLength)
	if _, err := rand.Read(raw); err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return APIKeySecretPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

func buildKey(keyID, name string, role Role, secret string) (*APIKey, error) {
	hash, err := hashSecret(secret)
	if err != nil {
		return nil, ErrInternalServer.WithCause(err)
	}
	return &APIKey{
		KeyID:      keyID,
		Name:       name,
		SecretHash: hash,
		Role:       role,
		Status:     KeyStatusActive,
		RateLimit:  1000,
		CreatedAt:  currentTimeMillis(),
		Version:    1,
	}, nil
}

// hashSecret produces an encoded Argon2id hash:
// $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>.
func hashSecret(secret string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(secret), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		Argon2Memory, Argon2Time, Argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// RotateSecret replaces the secret, keeping the old hash valid for
// GracePeriodDuration. Returns the new plaintext secret.
func (k *APIKey) RotateSecret() (string, error) {
	newSecret, err := newSecret()
	if err != nil {
		return "", err
	}
	newHash, err := hashSecret(newSecret)
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}

	k.OldSecretHash = k.SecretHash
	k.SecretHash = newHash
	k.GracePeriodEnd = currentTimeMillis() + GracePeriodDuration.Milliseconds()
	k.IncrVersion()
	return newSecret, nil
}

// IsExpired reports whether the key's absolute expiry has passed.
func (k *APIKey) IsExpired() bool {
	return k.ExpiresAt != 0 && currentTimeMillis() > k.ExpiresAt
}

// IsActive reports whether the key is usable: active status and not expired.
func (k *APIKey) IsActive() bool {
	return k.Status == KeyStatusActive && !k.IsExpired()
}

// IsInGracePeriod reports whether a rotated-out secret is still honored.
func (k *APIKey) IsInGracePeriod() bool {
	return k.OldSecretHash != "" && k.GracePeriodEnd != 0 && currentTimeMillis() < k.GracePeriodEnd
}

// Touch records a use of the key.
func (k *APIKey) Touch() {
	k.LastUsed = currentTimeMillis()
}

// IncrVersion bumps the optimistic-lock version.
func (k *APIKey) IncrVersion() {
	k.Version++
}

// CreatedAtTime returns CreatedAt as time.Time.
func (k *APIKey) CreatedAtTime() time.Time {
	return time.UnixMilli(k.CreatedAt)
}

// LastUsedAtTime returns LastUsed as time.Time, zero if never used.
func (k *APIKey) LastUsedAtTime() time.Time {
	if k.LastUsed == 0 {
		return time.Time{}
	}
	return time.UnixMilli(k.LastUsed)
}

// Validate checks the key's fields against the domain constraints and
// reports every violation at once.
func (k *APIKey) Validate() error {
	var violations []string

	switch {
	case k.KeyID == "":
		violations = append(violations, "key_id is required")
	case !IsValidAPIKeyID(k.KeyID):
		violations = append(violations, "key_id format invalid")
	}
	if k.SecretHash == "" {
		violations = append(violations, "secret_hash is required")
	}
	if !IsValidRole(string(k.Role)) {
		violations = append(violations, "invalid role")
	}
	if !IsValidKeyStatus(string(k.Status)) {
		violations = append(violations, "invalid status")
	}
	if len(k.Allowlist) > MaxAllowlistEntries {
		violations = append(violations, "allowlist exceeds 100 entries")
	}
	if k.RateLimit < MinRateLimit || k.RateLimit > MaxRateLimit {
		violations = append(violations, "rate_limit must be between 1 and 1,000,000")
	}
	if len(k.Description) > MaxDescriptionLength {
		violations = append(violations, "description exceeds 256 characters")
	}

	if len(violations) > 0 {
		return ErrAPIKeyValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// Clone deep-copies the key.
func (k *APIKey) Clone() *APIKey {
	clone := *k
	if k.Allowlist != nil {
		clone.Allowlist = append([]string(nil), k.Allowlist...)
	}
	return &clone
}

// IsValidAPIKeyID reports whether id is a well-formed key ID, tolerating
// uppercase input.
func IsValidAPIKeyID(id string) bool {
	id = strings.ToLower(id)
	if !strings.HasPrefix(id, APIKeyIDPrefix) {
		return false
	}
	// jkak- (5) + ULID (26)
	if len(id) != len(APIKeyIDPrefix)+ulid.EncodedSize {
		return false
	}
	_, err := ulid.Parse(strings.ToUpper(id[len(APIKeyIDPrefix):]))
	return err == nil
}

// NormalizeAPIKeyID lowercases id, returning "" when id is not a valid
// key ID.
func NormalizeAPIKeyID(id string) string {
	normalized := strings.ToLower(id)
	if !IsValidAPIKeyID(normalized) {
		return ""
	}
	return normalized
}

// MaskAPIKeySecret renders a secret safely for logs: prefix, three leading
// and three trailing characters, everything else elided.
func MaskAPIKeySecret(secret string) string {
	if len(secret) < 10 || !strings.HasPrefix(secret, APIKeySecretPrefix) {
		return "***REDACTED***"
	}
	body := secret[len(APIKeySecretPrefix):]
	if len(body) <= 6 {
		return APIKeySecretPrefix + "***"
	}
	return APIKeySecretPrefix + body[:3] + "..." + body[len(body)-3:]
}

// currentTimeMillis and timeNow are hooks for tests.
var currentTimeMillis = func() int64 {
	return timeNow().UnixMilli()
}

var timeNow = time.Now
