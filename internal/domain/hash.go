package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SecureHash is an upper-case hex encoded SHA-256 digest. Attachments and
// transactions are identified by it.
type SecureHash string

func SHA256(data []byte) SecureHash {
	sum := sha256.Sum256(data)
	return SecureHash(strings.ToUpper(hex.EncodeToString(sum[:])))
}

// ParseSecureHash accepts upper or lower case hex and normalises it.
func ParseSecureHash(s string) (SecureHash, error) {
	s = strings.TrimSpace(s)
	if len(s) != sha256.Size*2 {
		return "", fmt.Errorf("invalid hash %q: want %d hex characters", s, sha256.Size*2)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid hash %q: %w", s, err)
	}
	return SecureHash(strings.ToUpper(s)), nil
}

func (h SecureHash) String() string { return string(h) }

func (h SecureHash) IsZero() bool { return h == "" }

// Short is the first 8 characters, used in log lines.
func (h SecureHash) Short() string {
	if len(h) <= 8 {
		return string(h)
	}
	return string(h[:8])
}
