package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// PlaceholderSecret is the documented default secret. A listener
	// configured with it skips signature verification entirely.
	PlaceholderSecret = "your-webhook-secret"

	// MinSecretLength matches the length GenerateSecret produces.
	MinSecretLength = 48

	// minEntropyBits is the per-character Shannon entropy below which a
	// secret is considered guessable.
	minEntropyBits = 3.5

	generatedSecretBytes = 36 // 48 base64 characters
)

// ErrPlaceholderSecret is returned by ValidateSecret for an empty or
// placeholder secret.
var ErrPlaceholderSecret = errors.New("no webhook secret configured")

// IsPlaceholderSecret reports whether secret is the documented default
// (or empty), meaning no real secret has been configured.
func IsPlaceholderSecret(secret string) bool {
	return secret == "" || secret == PlaceholderSecret
}

// ValidateSecret reports why secret is unfit for signing webhooks.
func ValidateSecret(secret string) error {
	if IsPlaceholderSecret(secret) {
		return ErrPlaceholderSecret
	}
	if strings.Contains(strings.ToLower(secret), PlaceholderSecret) {
		return fmt.Errorf("secret still contains the placeholder %q", PlaceholderSecret)
	}
	if len(secret) < MinSecretLength {
		return fmt.Errorf("secret too short (minimum %d characters, got %d)", MinSecretLength, len(secret))
	}
	if bits := entropyBits(secret); bits < minEntropyBits {
		return fmt.Errorf("secret is too repetitive (%.2f bits per character, want %.1f)", bits, minEntropyBits)
	}
	return nil
}

// GenerateSecret returns a random secret of MinSecretLength URL-safe
// characters.
func GenerateSecret() (string, error) {
	buf := make([]byte, generatedSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// entropyBits is the Shannon entropy of s in bits per byte.
func entropyBits(s string) float64 {
	if s == "" {
		return 0
	}

	var counts [256]int
	for i := 0; i < len(s); i++ {
		counts[s[i]]++
	}

	n := float64(len(s))
	var bits float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		bits -= p * math.Log2(p)
	}
	return bits
}
