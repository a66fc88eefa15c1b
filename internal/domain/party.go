package domain

import (
	"crypto/ed25519"
	"encoding/hex"
)

// Party is a named ledger identity and the key it signs with.
type Party struct {
	Name      string            `json:"name"`
	OwningKey ed25519.PublicKey `json:"owning_key"`
}

func (p Party) Equal(other Party) bool {
	return p.Name == other.Name && keysEqual(p.OwningKey, other.OwningKey)
}

func (p Party) IsZero() bool {
	return p.Name == "" && len(p.OwningKey) == 0
}

func (p Party) String() string { return p.Name }

// KeyString renders a public key as lower-case hex for logs and maps.
func KeyString(k ed25519.PublicKey) string {
	return hex.EncodeToString(k)
}

func keysEqual(a, b ed25519.PublicKey) bool {
	if len(a) != len(b) {
		return false
	}
	return a.Equal(b)
}

// ContainsKey reports whether keys holds k.
func ContainsKey(keys []ed25519.PublicKey, k ed25519.PublicKey) bool {
	for _, key := range keys {
		if keysEqual(key, k) {
			return true
		}
	}
	return false
}
