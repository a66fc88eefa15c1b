package contract

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

// Contract decides whether a resolved transaction is valid. Implementations
// must be pure: the same transaction always yields the same result.
type Contract interface {
	Verify(tx *domain.LedgerTransaction) error
}

type Registry struct {
	mu        sync.RWMutex
	contracts map[domain.ContractID]Contract
}

// NewRegistry returns a registry with MessageContract bound to
// MessageContractID.
func NewRegistry() *Registry {
	r := &Registry{contracts: make(map[domain.ContractID]Contract)}
	_ = r.Register(MessageContractID, MessageContract{})
	return r
}

func (r *Registry) Register(id domain.ContractID, c Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contracts[id]; ok {
		return fmt.Errorf("contract %s already registered", id)
	}
	r.contracts[id] = c
	return nil
}

// Verify runs every distinct contract named by the transaction's inputs and
// outputs. Rejections are stamped with the contract and transaction id.
func (r *Registry) Verify(tx *domain.LedgerTransaction) error {
	ids := make(map[domain.ContractID]struct{})
	for _, in := range tx.Inputs {
		ids[in.State.Contract] = struct{}{}
	}
	for _, out := range tx.Outputs {
		ids[out.Contract] = struct{}{}
	}

	if len(ids) == 0 {
		return &domain.ContractRejection{
			TxID:   tx.ID,
			Reason: domain.ErrStructuralViolation,
			Detail: "transaction has no states",
		}
	}

	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, string(id))
	}
	sort.Strings(ordered)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range ordered {
		id := domain.ContractID(s)
		c, ok := r.contracts[id]
		if !ok {
			return &domain.ContractRejection{
				ContractID: id,
				TxID:       tx.ID,
				Reason:     domain.ErrUnknownContract,
			}
		}
		if err := c.Verify(tx); err != nil {
			var rej *domain.ContractRejection
			if errors.As(err, &rej) {
				rej.ContractID = id
				rej.TxID = tx.ID
				return rej
			}
			return &domain.ContractRejection{ContractID: id, TxID: tx.ID, Reason: err}
		}
	}
	return nil
}
