package logger

import (
	"log/slog"
	"strings"
)

// Value prefixes that mark a plaintext secret. IDs use hyphens,
// secrets use underscores (DS-0101).
var sensitiveValuePrefixes = []string{
	"jkas_", // API key secret
}

// Public identifier prefixes stay readable even under key names like
// "key_id".
var publicValuePrefixes = []string{
	"jkak-", // API key ID
}

// Key substrings that mark a field as secret-bearing regardless of
// its value.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"key",
	"credential",
	"auth",
	"bearer",
}

const redactedValue = "***REDACTED***"

// redactSensitive is the ReplaceAttr hook: secret values get masked,
// secret-named keys get fully redacted, groups recurse.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return redactStringAttr(a)
	case slog.KindGroup:
		members := a.Value.Group()
		redacted := make([]slog.Attr, len(members))
		for i, m := range members {
			redacted[i] = redactSensitive(m)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	default:
		return a
	}
}

func redactStringAttr(a slog.Attr) slog.Attr {
	val := a.Value.String()

	// A secret-format value is masked no matter what the key is called.
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(val, prefix) {
			return slog.String(a.Key, maskValue(val, prefix))
		}
	}

	// Public identifiers pass through even under sensitive key names.
	for _, prefix := range publicValuePrefixes {
		if strings.HasPrefix(val, prefix) {
			return a
		}
	}

	if val != "" && IsSensitiveKey(a.Key) {
		return slog.String(a.Key, redactedValue)
	}
	return a
}

// maskValue keeps the prefix plus three chars of head and tail:
// "jkas_abc...xyz". Short values collapse to "prefix***".
func maskValue(value, prefix string) string {
	body := value[len(prefix):]
	if len(body) <= 6 {
		return prefix + "***"
	}
	return prefix + body[:3] + "..." + body[len(body)-3:]
}

// RedactString masks a value ahead of logging, for call sites that
// build messages by hand.
func RedactString(value string) string {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(value, prefix) {
			return maskValue(value, prefix)
		}
	}
	// Unknown jk*_ values are treated as secrets too.
	if strings.HasPrefix(value, "jk") {
		if idx := strings.Index(value, "_"); idx > 0 && idx < 10 {
			return maskValue(value, value[:idx+1])
		}
	}
	return value
}

// IsSensitiveKey reports whether a key name suggests secret content.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether a value carries a secret prefix.
func IsSensitiveValue(value string) bool {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
