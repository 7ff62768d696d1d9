package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// Keys that may be logged verbatim through MaskField.
var redactionAllowlist = map[string]struct{}{
	"service":    {},
	"env":        {},
	"message":    {},
	"severity":   {},
	"timestamp":  {},
	"error":      {},
	"reason":     {},
	"component":  {},
	"method":     {},
	"from":       {},
	"nonce":      {},
	"contract":   {},
	"owner":      {},
	"key":        {},
	"amount":     {},
	"request_id": {},
}

// Keys masked unconditionally by the handler, whatever the call site does.
var sensitiveKeys = map[string]struct{}{
	"password":         {},
	"passwords":        {},
	"handler_password": {},
	"receiverpassword": {},
	"passphrase":       {},
	"secret":           {},
	"private_key":      {},
}

// IsAllowlisted reports whether the provided key is exempt from automatic redaction.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[normalizeKey(key)]
	return ok
}

// IsSensitive reports whether the handler must mask the key.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[normalizeKey(key)]
	return ok
}

// RedactionAllowlist returns a sorted copy of the allowlisted log keys.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField returns a slog.Attr that redacts the supplied value unless the key is
// explicitly allowlisted. The original key casing is preserved for readability.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || (IsAllowlisted(key) && !IsSensitive(key)) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
