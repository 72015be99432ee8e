package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

var sensitiveKeys = []string{"secret", "token", "password", "authorization", "dsn"}

// IsSensitive reports whether key names a credential-bearing field.
func IsSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	for _, marker := range sensitiveKeys {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// MaskField returns a slog.Attr that hides value when key names a secret.
// Empty values are kept so a missing secret is still visible in logs.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || !IsSensitive(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
