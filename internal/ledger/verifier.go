package ledger

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/attachment"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/contract"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

// Verifier resolves transactions against the vault and attachment index and
// runs their contracts.
type Verifier struct {
	vault       Vault
	attachments attachment.Index
	contracts   *contract.Registry
}

func NewVerifier(vault Vault, attachments attachment.Index, contracts *contract.Registry) *Verifier {
	return &Verifier{vault: vault, attachments: attachments, contracts: contracts}
}

// Resolve loads input states and attachment blobs. Inputs missing from the
// vault are looked up in deps, the transactions that produced them.
func (v *Verifier) Resolve(ctx context.Context, tx *domain.WireTransaction, deps ...*domain.SignedTransaction) (*domain.LedgerTransaction, error) {
	ltx := &domain.LedgerTransaction{
		ID:       tx.ID(),
		Outputs:  tx.Outputs,
		Commands: tx.Commands,
		Notary:   tx.Notary,
	}

	for _, ref := range tx.Inputs {
		sar, err := v.vault.StateAndRef(ctx, ref)
		if errors.Is(err, domain.ErrStateNotFound) {
			sar, err = resolveFromDeps(ref, deps)
		}
		if err != nil {
			return nil, err
		}
		ltx.Inputs = append(ltx.Inputs, *sar)
	}

	for _, id := range tx.Attachments {
		a, err := v.attachments.ResolveByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := a.Verify(); err != nil {
			return nil, err
		}
		ltx.Attachments = append(ltx.Attachments, *a)
	}
	return ltx, nil
}

func resolveFromDeps(ref domain.StateRef, deps []*domain.SignedTransaction) (*domain.StateAndRef, error) {
	for _, dep := range deps {
		if dep.ID() != ref.TxID {
			continue
		}
		if err := dep.VerifyRequiredSignatures(); err != nil {
			return nil, fmt.Errorf("dependency %s: %w", ref.TxID.Short(), err)
		}
		if ref.Index < 0 || ref.Index >= len(dep.Tx.Outputs) {
			break
		}
		return &domain.StateAndRef{State: dep.Tx.Outputs[ref.Index], Ref: ref}, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrStateNotFound, ref)
}

// VerifyLocally resolves tx and runs every contract it names.
func (v *Verifier) VerifyLocally(ctx context.Context, tx *domain.WireTransaction, deps ...*domain.SignedTransaction) error {
	ltx, err := v.Resolve(ctx, tx, deps...)
	if err != nil {
		return err
	}
	return v.contracts.Verify(ltx)
}

// VerifySigned checks signatures, tolerating the absence of allowedMissing,
// then verifies the transaction.
func (v *Verifier) VerifySigned(ctx context.Context, stx *domain.SignedTransaction, allowedMissing []ed25519.PublicKey, deps ...*domain.SignedTransaction) error {
	if err := stx.VerifySignaturesExcept(allowedMissing...); err != nil {
		return err
	}
	return v.VerifyLocally(ctx, &stx.Tx, deps...)
}
