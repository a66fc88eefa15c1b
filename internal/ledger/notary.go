package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

// Notary prevents double spends: it signs a transaction only if none of its
// inputs were consumed by a different transaction.
type Notary interface {
	Identity() domain.Party
	Notarise(ctx context.Context, stx *domain.SignedTransaction) (domain.TransactionSignature, error)
}

// UniquenessProvider is the notary's consumed-input set. Commit must be
// atomic across all inputs and idempotent for the same transaction.
type UniquenessProvider interface {
	Commit(ctx context.Context, inputs []domain.StateRef, txID domain.SecureHash) error
}

type NotaryService struct {
	identity   domain.Party
	keys       KeyManager
	uniqueness UniquenessProvider
}

func NewNotaryService(name string, keys KeyManager, uniqueness UniquenessProvider) *NotaryService {
	return &NotaryService{
		identity:   domain.Party{Name: name, OwningKey: keys.PublicKey()},
		keys:       keys,
		uniqueness: uniqueness,
	}
}

func (n *NotaryService) Identity() domain.Party { return n.identity }

func (n *NotaryService) Notarise(ctx context.Context, stx *domain.SignedTransaction) (domain.TransactionSignature, error) {
	if !stx.Tx.Notary.Equal(n.identity) {
		return domain.TransactionSignature{}, fmt.Errorf("transaction names notary %s, this is %s", stx.Tx.Notary, n.identity)
	}
	if err := stx.VerifySignaturesExcept(n.identity.OwningKey); err != nil {
		return domain.TransactionSignature{}, err
	}

	id := stx.ID()
	if err := n.uniqueness.Commit(ctx, stx.Tx.Inputs, id); err != nil {
		return domain.TransactionSignature{}, err
	}
	return n.keys.Sign(ctx, id)
}

type MemoryUniqueness struct {
	mu       sync.Mutex
	consumed map[domain.StateRef]domain.SecureHash
}

func NewMemoryUniqueness() *MemoryUniqueness {
	return &MemoryUniqueness{consumed: make(map[domain.StateRef]domain.SecureHash)}
}

func (u *MemoryUniqueness) Commit(ctx context.Context, inputs []domain.StateRef, txID domain.SecureHash) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	conflicts := make(map[domain.StateRef]domain.SecureHash)
	for _, in := range inputs {
		if by, ok := u.consumed[in]; ok && by != txID {
			conflicts[in] = by
		}
	}
	if len(conflicts) > 0 {
		return &domain.NotaryConflictError{TxID: txID, Conflicts: conflicts}
	}
	for _, in := range inputs {
		u.consumed[in] = txID
	}
	return nil
}
