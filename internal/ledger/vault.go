package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

// Vault is a node's record of committed transactions and the states they
// produced.
type Vault interface {
	// Record stores a notarised transaction, consumes its inputs and adds
	// its outputs. Recording the same transaction twice is a no-op; an input
	// already consumed by another transaction fails with ErrStateConsumed.
	Record(ctx context.Context, stx *domain.SignedTransaction) error
	Transaction(ctx context.Context, id domain.SecureHash) (*domain.SignedTransaction, error)
	// TransactionBytes returns the stored encoding of a transaction.
	TransactionBytes(ctx context.Context, id domain.SecureHash) ([]byte, error)
	// StateAndRef loads any recorded output, consumed or not.
	StateAndRef(ctx context.Context, ref domain.StateRef) (*domain.StateAndRef, error)
	Unconsumed(ctx context.Context) ([]domain.StateAndRef, error)
	LatestByLinearID(ctx context.Context, id domain.UniqueIdentifier) (*domain.StateAndRef, error)
}

type vaultState struct {
	sar        domain.StateAndRef
	consumedBy domain.SecureHash
	recordedAt time.Time
}

type MemoryVault struct {
	mu     sync.RWMutex
	txs    map[domain.SecureHash][]byte
	states map[domain.StateRef]*vaultState
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		txs:    make(map[domain.SecureHash][]byte),
		states: make(map[domain.StateRef]*vaultState),
	}
}

func (v *MemoryVault) Record(ctx context.Context, stx *domain.SignedTransaction) error {
	raw, err := stx.Encode()
	if err != nil {
		return err
	}
	id := stx.ID()

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.txs[id]; ok {
		return nil
	}
	for _, in := range stx.Tx.Inputs {
		if s, ok := v.states[in]; ok && !s.consumedBy.IsZero() {
			return fmt.Errorf("%w: %s was consumed by %s", domain.ErrStateConsumed, in, s.consumedBy.Short())
		}
	}
	v.txs[id] = raw

	now := time.Now()
	for _, in := range stx.Tx.Inputs {
		if s, ok := v.states[in]; ok {
			s.consumedBy = id
		}
	}
	for i, out := range stx.Tx.Outputs {
		ref := domain.StateRef{TxID: id, Index: i}
		v.states[ref] = &vaultState{
			sar:        domain.StateAndRef{State: out, Ref: ref},
			recordedAt: now,
		}
	}
	return nil
}

func (v *MemoryVault) TransactionBytes(ctx context.Context, id domain.SecureHash) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	raw, ok := v.txs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	return append([]byte(nil), raw...), nil
}

func (v *MemoryVault) Transaction(ctx context.Context, id domain.SecureHash) (*domain.SignedTransaction, error) {
	raw, err := v.TransactionBytes(ctx, id)
	if err != nil {
		return nil, err
	}
	return domain.DecodeSignedTransaction(raw)
}

func (v *MemoryVault) StateAndRef(ctx context.Context, ref domain.StateRef) (*domain.StateAndRef, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	s, ok := v.states[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrStateNotFound, ref)
	}
	sar := s.sar
	return &sar, nil
}

func (v *MemoryVault) Unconsumed(ctx context.Context) ([]domain.StateAndRef, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	live := make([]*vaultState, 0, len(v.states))
	for _, s := range v.states {
		if s.consumedBy.IsZero() {
			live = append(live, s)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		if !live[i].recordedAt.Equal(live[j].recordedAt) {
			return live[i].recordedAt.Before(live[j].recordedAt)
		}
		return live[i].sar.Ref.String() < live[j].sar.Ref.String()
	})

	out := make([]domain.StateAndRef, 0, len(live))
	for _, s := range live {
		out = append(out, s.sar)
	}
	return out, nil
}

func (v *MemoryVault) LatestByLinearID(ctx context.Context, id domain.UniqueIdentifier) (*domain.StateAndRef, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	for _, s := range v.states {
		if s.consumedBy.IsZero() && s.sar.State.Data.LinearID == id {
			sar := s.sar
			return &sar, nil
		}
	}
	return nil, fmt.Errorf("%w: no unconsumed state for %s", domain.ErrStateNotFound, id)
}
