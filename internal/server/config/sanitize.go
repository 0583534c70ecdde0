package config

import "strings"

// Sanitize copies the config with secret values masked so the result
// can go to logs or the admin status endpoint.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	out := *cfg
	out.Auth.BootstrapSecret = maskSecret(out.Auth.BootstrapSecret)
	return &out
}

// maskSecret keeps the first and last two characters of a secret and
// stars out the middle. Short secrets are starred entirely.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
