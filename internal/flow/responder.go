package flow

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/attachment"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/messaging"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
)

// Responder verifies a proposed transaction, counter-signs it if the
// acceptance policy agrees and records the notarised result.
type Responder struct {
	machine
}

func NewResponder(svc *Services, session Session) *Responder {
	now := svc.now()
	return &Responder{machine: machine{
		svc:     svc,
		session: session,
		cp: Checkpoint{
			FlowID:       session.ID(),
			Role:         RoleResponder,
			State:        StateSessionOpened,
			Self:         svc.Identity.Name,
			Counterparty: session.Counterparty(),
			Deadline:     now.Add(svc.timeout()),
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}}
}

func RestoreResponder(svc *Services, session Session, cp *Checkpoint) *Responder {
	f := &Responder{machine: machine{svc: svc, session: session, cp: *cp}}
	if cp.State.Terminal() {
		f.err = cp.Err()
	}
	if cp.State == StateCommitted {
		f.result = cp.Transaction
	}
	return f
}

func (f *Responder) Start(ctx context.Context) error {
	return f.save(ctx)
}

func (f *Responder) Resume(ctx context.Context) error {
	ctx, span := observability.Tracer().Start(ctx, "flow.responder.resume")
	defer span.End()

	switch f.cp.State {
	case StateValidating:
		return f.validate(ctx)
	case StateSigned:
		return f.sendSignature(ctx)
	}
	return nil
}

func (f *Responder) Handle(ctx context.Context, env messaging.Envelope) error {
	ctx, span := observability.Tracer().Start(ctx, "flow.responder.handle")
	defer span.End()

	if f.cp.State.Terminal() {
		f.logger(ctx).Debug("ignoring message for finished flow", zap.String("type", env.Type))
		return nil
	}
	if env.From != f.cp.Counterparty {
		return unexpected(f.cp.State, env)
	}

	switch {
	case env.Type == MsgProposal && f.cp.State == StateSessionOpened:
		var msg ProposalMessage
		if err := env.Decode(&msg); err != nil {
			return f.decline(ctx, fmt.Errorf("%w: %v", domain.ErrUnexpectedMessage, err))
		}
		if msg.Transaction == nil {
			return f.decline(ctx, fmt.Errorf("%w: proposal without transaction", domain.ErrUnexpectedMessage))
		}
		f.cp.Transaction = msg.Transaction
		f.cp.Dependencies = msg.Dependencies
		f.cp.Attachments = msg.Attachments
		if err := f.transition(ctx, StateValidating); err != nil {
			return err
		}
		return f.validate(ctx)

	case env.Type == MsgFinality && f.cp.State == StateAwaitingFinality:
		var msg FinalityMessage
		if err := env.Decode(&msg); err != nil {
			return f.fail(ctx, StateFailed, fmt.Errorf("%w: %v", domain.ErrUnexpectedMessage, err))
		}
		return f.commit(ctx, msg.Transaction)

	case env.Type == MsgRejection:
		var msg RejectionMessage
		if err := env.Decode(&msg); err != nil {
			return err
		}
		return f.fail(ctx, StateFailed, &domain.CounterpartyRejection{
			Party:  f.cp.Counterparty,
			Cause:  domain.ErrorFromCode(msg.Code),
			Detail: msg.Detail,
		})
	}
	return unexpected(f.cp.State, env)
}

// validate re-runs full verification: attachments, signatures and
// contracts, then the acceptance policy.
func (f *Responder) validate(ctx context.Context) error {
	if err := f.importAttachments(ctx); err != nil {
		return f.decline(ctx, err)
	}

	stx := f.cp.Transaction
	own := f.svc.Keys.PublicKey()
	if !domain.ContainsKey(stx.Tx.RequiredSigningKeys(), own) {
		return f.decline(ctx, fmt.Errorf("%w: %s is not a required signer", domain.ErrInvalidMessage, f.svc.Identity))
	}

	allowedMissing := []ed25519.PublicKey{own, stx.Tx.Notary.OwningKey}
	if err := f.svc.Verifier.VerifySigned(ctx, stx, allowedMissing, f.cp.Dependencies...); err != nil {
		return f.decline(ctx, err)
	}
	if err := f.svc.policy().Accept(ctx, stx); err != nil {
		return f.decline(ctx, err)
	}

	sig, err := f.svc.Keys.Sign(ctx, stx.ID())
	if err != nil {
		return f.decline(ctx, err)
	}
	f.cp.Transaction = stx.WithSignature(sig)
	f.cp.ExpectedTxID = stx.ID()
	f.cp.Attachments = nil
	if err := f.transition(ctx, StateSigned); err != nil {
		return err
	}
	return f.sendSignature(ctx)
}

// importAttachments stores the shipped archives the transaction references.
// They are indexed by hash only.
func (f *Responder) importAttachments(ctx context.Context) error {
	pending := f.cp.Attachments
	if len(pending) == 0 {
		return nil
	}
	importer, ok := f.svc.Attachments.(attachment.Importer)
	if !ok {
		return nil
	}

	referenced := make(map[domain.SecureHash]struct{}, len(f.cp.Transaction.Tx.Attachments))
	for _, id := range f.cp.Transaction.Tx.Attachments {
		referenced[id] = struct{}{}
	}
	for i := range pending {
		a := &pending[i]
		if _, ok := referenced[a.ID]; !ok {
			continue
		}
		if err := importer.Import(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (f *Responder) sendSignature(ctx context.Context) error {
	own := f.svc.Keys.PublicKey()
	var sig *domain.TransactionSignature
	for i := range f.cp.Transaction.Sigs {
		if f.cp.Transaction.Sigs[i].By.Equal(own) {
			sig = &f.cp.Transaction.Sigs[i]
			break
		}
	}
	if sig == nil {
		return f.fail(ctx, StateFailed, fmt.Errorf("%w: own signature missing", domain.ErrMissingSignatures))
	}

	if err := f.session.Send(ctx, MsgSignature, SignatureMessage{Signature: *sig}); err != nil {
		return f.fail(ctx, StateFailed, fmt.Errorf("failed to return signature to %s: %w", f.cp.Counterparty, err))
	}
	return f.transition(ctx, StateAwaitingFinality)
}

// commit accepts only the transaction it signed, carrying a valid notary
// signature.
func (f *Responder) commit(ctx context.Context, stx *domain.SignedTransaction) error {
	if stx == nil || stx.ID() != f.cp.ExpectedTxID {
		got := domain.SecureHash("none")
		if stx != nil {
			got = stx.ID()
		}
		return f.fail(ctx, StateFailed, fmt.Errorf("%w: finality carried %s, expected %s",
			domain.ErrUnexpectedMessage, got.Short(), f.cp.ExpectedTxID.Short()))
	}
	if err := stx.VerifyRequiredSignatures(); err != nil {
		return f.fail(ctx, StateFailed, err)
	}
	if err := f.svc.Vault.Record(ctx, stx); err != nil {
		return f.fail(ctx, StateFailed, fmt.Errorf("failed to record transaction: %w", err))
	}

	f.cp.Transaction = stx
	f.result = stx
	return f.transition(ctx, StateCommitted)
}

func (f *Responder) decline(ctx context.Context, err error) error {
	f.abort(ctx, err)
	f.cp.Attachments = nil
	if f.cp.State == StateSessionOpened {
		// Declining is only reachable from Validating.
		if terr := f.transition(ctx, StateValidating); terr != nil {
			return terr
		}
	}
	return f.fail(ctx, StateDeclined, err)
}

// Expire fails a responder that has not signed yet. Once its signature is
// out, only the notary decides the outcome, so it waits for the initiator's
// finality or rejection instead.
func (f *Responder) Expire(ctx context.Context) error {
	if f.cp.State.Terminal() || f.signed() {
		return nil
	}
	return f.fail(ctx, StateFailed, f.timeoutError())
}

func (f *Responder) WakeAt() time.Time {
	if f.signed() {
		return time.Time{}
	}
	return f.machine.WakeAt()
}

func (f *Responder) signed() bool {
	return f.cp.State == StateSigned || f.cp.State == StateAwaitingFinality
}
