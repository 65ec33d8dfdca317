package token

import (
	"crypto/rand"
	"fmt"
)

const (
	// Prefix makes link tokens recognizable in bot deep links and logs.
	Prefix = "proj_"

	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// DefaultLength is the number of random characters after the prefix.
	DefaultLength = 16
)

// New returns an opaque deep-link token: Prefix followed by n random
// characters from a case-sensitive alphanumeric alphabet.
func New(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return Prefix + string(out), nil
}
