package repository

import (
	"crypto/rand"
	"encoding/hex"
)

// randomToken generates a random hexadecimal string of n bytes (2n hex
// characters). It backs every capability token in the system: webhook
// settlement tokens and per-surface overlay tokens. crypto/rand keeps
// the tokens unguessable; 32 bytes gives a 64 character string.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
