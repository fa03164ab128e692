package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const (
	SignatureHeader = "X-Hub-Signature-256"
	SignaturePrefix = "sha256="
)

// Sign returns the X-Hub-Signature-256 value GitHub sends for payload:
// "sha256=" followed by the lowercase hex HMAC-SHA256 of payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is the expected header value for
// payload. The full header strings are compared in constant time; a missing
// prefix or a length mismatch simply fails.
func VerifySignature(payload []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
