package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PhoneKey returns a short, stable SHA-256 prefix for a phone number so logs can
// correlate submissions without storing the number itself.
func PhoneKey(phone string) string {
	if phone == "" {
		return ""
	}
	h := sha256.Sum256([]byte(phone))
	return hex.EncodeToString(h[:])[:12]
}

// Redact replaces every occurrence of the given secrets in text.
func Redact(text string, secrets ...string) string {
	for _, s := range secrets {
		if s == "" {
			continue
		}
		text = strings.ReplaceAll(text, s, "[REDACTED]")
	}
	return text
}
