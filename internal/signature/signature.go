// Package signature computes and checks the base64 HMAC-SHA256 codes used on
// both hops of the webhook relay.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// Sign returns base64(HMAC-SHA256(secret, payload)) over the exact bytes given.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether candidate is the signature of payload under secret.
// Malformed or truncated candidates simply fail.
func Verify(secret, payload []byte, candidate string) bool {
	if candidate == "" {
		return false
	}
	expected := Sign(secret, payload)
	// ConstantTimeCompare returns 0 immediately on length mismatch, which only
	// leaks the (public) signature length.
	return subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1
}
