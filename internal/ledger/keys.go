package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

// KeyManager signs transaction ids with the node's owning key.
type KeyManager interface {
	PublicKey() ed25519.PublicKey
	Sign(ctx context.Context, id domain.SecureHash) (domain.TransactionSignature, error)
}

type LocalKeyManager struct {
	priv ed25519.PrivateKey
}

// NewKeyManagerFromSeed derives a stable key from an arbitrary seed string
// so dev nodes keep their identity across restarts.
func NewKeyManagerFromSeed(seed string) (*LocalKeyManager, error) {
	if seed == "" {
		return nil, fmt.Errorf("key seed is empty")
	}
	sum := sha256.Sum256([]byte(seed))
	return &LocalKeyManager{priv: ed25519.NewKeyFromSeed(sum[:])}, nil
}

func GenerateKeyManager() (*LocalKeyManager, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &LocalKeyManager{priv: priv}, nil
}

func (k *LocalKeyManager) PublicKey() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

func (k *LocalKeyManager) Sign(ctx context.Context, id domain.SecureHash) (domain.TransactionSignature, error) {
	if err := ctx.Err(); err != nil {
		return domain.TransactionSignature{}, err
	}
	return domain.TransactionSignature{
		By:    k.PublicKey(),
		Bytes: ed25519.Sign(k.priv, []byte(id)),
	}, nil
}
