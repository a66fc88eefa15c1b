package flow

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/messaging"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
)

// Initiator proposes a transaction, collects the counterparty's signature,
// has it notarised and distributes the result.
type Initiator struct {
	machine
	// cause is the failure being reported to the counterparty, if any.
	cause error
}

// NewInitiator starts in Built with tx as the candidate. deps are the
// recorded transactions that produced tx's inputs.
func NewInitiator(svc *Services, session Session, tx *domain.WireTransaction, deps []*domain.SignedTransaction) *Initiator {
	now := svc.now()
	return &Initiator{machine: machine{
		svc:     svc,
		session: session,
		cp: Checkpoint{
			FlowID:       session.ID(),
			Role:         RoleInitiator,
			State:        StateBuilt,
			Self:         svc.Identity.Name,
			Counterparty: session.Counterparty(),
			Transaction:  &domain.SignedTransaction{Tx: *tx},
			Dependencies: deps,
			Deadline:     now.Add(svc.timeout()),
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}}
}

func RestoreInitiator(svc *Services, session Session, cp *Checkpoint) *Initiator {
	f := &Initiator{machine: machine{svc: svc, session: session, cp: *cp}}
	if cp.State.Terminal() {
		f.err = cp.Err()
	}
	if cp.State == StateCommitted {
		f.result = cp.Transaction
	}
	return f
}

// Start checkpoints the new flow and runs it up to the first suspension
// point. A transaction failing local verification ends in Rejected without
// contacting the counterparty.
func (f *Initiator) Start(ctx context.Context) error {
	if err := f.save(ctx); err != nil {
		return err
	}
	return f.Resume(ctx)
}

func (f *Initiator) Resume(ctx context.Context) error {
	ctx, span := observability.Tracer().Start(ctx, "flow.initiator.resume")
	defer span.End()

	for !f.cp.State.Terminal() {
		var err error
		switch f.cp.State {
		case StateBuilt:
			err = f.verify(ctx)
		case StateLocallyVerified:
			err = f.sign(ctx)
		case StateLocallySigned:
			err = f.propose(ctx)
		case StateFinalizing:
			err = f.finalise(ctx)
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
	return f.err
}

func (f *Initiator) verify(ctx context.Context) error {
	tx := &f.cp.Transaction.Tx
	if !domain.ContainsKey(tx.RequiredSigningKeys(), f.svc.Keys.PublicKey()) {
		return f.fail(ctx, StateRejected, fmt.Errorf("%w: %s is not a required signer", domain.ErrInvalidMessage, f.svc.Identity))
	}
	if _, err := f.counterpartyKey(); err != nil {
		return f.fail(ctx, StateRejected, err)
	}
	if err := f.svc.Verifier.VerifyLocally(ctx, tx, f.cp.Dependencies...); err != nil {
		return f.fail(ctx, StateRejected, err)
	}
	return f.transition(ctx, StateLocallyVerified)
}

func (f *Initiator) sign(ctx context.Context) error {
	sig, err := f.svc.Keys.Sign(ctx, f.cp.Transaction.ID())
	if err != nil {
		return f.fail(ctx, StateFailed, err)
	}
	f.cp.Transaction = f.cp.Transaction.WithSignature(sig)
	return f.transition(ctx, StateLocallySigned)
}

func (f *Initiator) propose(ctx context.Context) error {
	msg := ProposalMessage{
		Transaction:  f.cp.Transaction,
		Dependencies: f.cp.Dependencies,
	}
	for _, id := range f.cp.Transaction.Tx.Attachments {
		a, err := f.svc.Attachments.ResolveByID(ctx, id)
		if err != nil {
			return f.fail(ctx, StateFailed, err)
		}
		msg.Attachments = append(msg.Attachments, *a)
	}

	if err := f.session.Send(ctx, MsgProposal, msg); err != nil {
		return f.fail(ctx, StateFailed, fmt.Errorf("failed to open session with %s: %w", f.cp.Counterparty, err))
	}
	return f.transition(ctx, StateAwaitingCounterSignature)
}

func (f *Initiator) Handle(ctx context.Context, env messaging.Envelope) error {
	ctx, span := observability.Tracer().Start(ctx, "flow.initiator.handle")
	defer span.End()

	if f.cp.State.Terminal() {
		f.logger(ctx).Debug("ignoring message for finished flow", zap.String("type", env.Type))
		return nil
	}
	if f.cp.State != StateAwaitingCounterSignature || env.From != f.cp.Counterparty {
		return unexpected(f.cp.State, env)
	}

	switch env.Type {
	case MsgSignature:
		var msg SignatureMessage
		if err := env.Decode(&msg); err != nil {
			return err
		}
		return f.countersigned(ctx, msg.Signature)

	case MsgRejection:
		var msg RejectionMessage
		if err := env.Decode(&msg); err != nil {
			return err
		}
		return f.fail(ctx, StateRejected, &domain.CounterpartyRejection{
			Party:  f.cp.Counterparty,
			Cause:  domain.ErrorFromCode(msg.Code),
			Detail: msg.Detail,
		})
	}
	return unexpected(f.cp.State, env)
}

func (f *Initiator) countersigned(ctx context.Context, sig domain.TransactionSignature) error {
	key, err := f.counterpartyKey()
	if err != nil {
		return f.fail(ctx, StateFailed, err)
	}
	if !key.Equal(sig.By) {
		err := fmt.Errorf("%w: signature is not by %s", domain.ErrInvalidSignature, f.cp.Counterparty)
		f.abort(ctx, err)
		return f.fail(ctx, StateFailed, err)
	}
	if err := sig.Verify(f.cp.Transaction.ID()); err != nil {
		f.abort(ctx, err)
		return f.fail(ctx, StateFailed, err)
	}

	f.cp.Transaction = f.cp.Transaction.WithSignature(sig)
	if err := f.transition(ctx, StateFinalizing); err != nil {
		return err
	}
	return f.finalise(ctx)
}

// finalise notarises the countersigned transaction and hands it to
// distribute. Nothing is recorded unless notarisation succeeded. The
// counterparty has signed by now, so it is owed either the notarised
// transaction or a rejection; both are redelivered until sent.
func (f *Initiator) finalise(ctx context.Context) error {
	switch {
	case f.cp.ErrorCode != "":
		return f.deliverAbort(ctx)
	case f.notarised():
		return f.distribute(ctx)
	}

	stx := f.cp.Transaction
	if err := stx.VerifySignaturesExcept(stx.Tx.Notary.OwningKey); err != nil {
		return f.abandon(ctx, err)
	}
	sig, err := f.svc.Notary.Notarise(ctx, stx)
	if err != nil {
		return f.abandon(ctx, err)
	}
	notarised := stx.WithSignature(sig)
	if err := notarised.VerifyRequiredSignatures(); err != nil {
		return f.abandon(ctx, err)
	}

	f.cp.Transaction = notarised
	if err := f.save(ctx); err != nil {
		return err
	}
	return f.distribute(ctx)
}

func (f *Initiator) notarised() bool {
	return f.cp.Transaction.SignedBy(f.cp.Transaction.Tx.Notary.OwningKey)
}

// distribute records the notarised transaction and sends it to the
// counterparty. The flow is Committed only once both succeeded.
func (f *Initiator) distribute(ctx context.Context) error {
	stx := f.cp.Transaction
	if err := f.svc.Vault.Record(ctx, stx); err != nil {
		return f.retryLater(ctx, fmt.Errorf("failed to record transaction: %w", err))
	}
	if err := f.session.Send(ctx, MsgFinality, FinalityMessage{Transaction: stx}); err != nil {
		return f.retryLater(ctx, fmt.Errorf("failed to send transaction %s to %s: %w", stx.ID().Short(), f.cp.Counterparty, err))
	}

	f.delivered()
	f.result = stx
	return f.transition(ctx, StateCommitted)
}

// abandon records why the countersigned transaction will not commit, then
// tells the counterparty.
func (f *Initiator) abandon(ctx context.Context, err error) error {
	f.cp.ErrorCode = domain.ReasonCode(err)
	f.cp.ErrorDetail = err.Error()
	f.cause = err
	if serr := f.save(ctx); serr != nil {
		return serr
	}
	return f.deliverAbort(ctx)
}

func (f *Initiator) deliverAbort(ctx context.Context) error {
	cause := f.cause
	if cause == nil {
		cause = f.cp.cause()
	}
	if err := f.session.Send(ctx, MsgRejection, rejectionFor(cause)); err != nil {
		return f.retryLater(ctx, fmt.Errorf("failed to notify %s: %w", f.cp.Counterparty, err))
	}
	f.delivered()
	return f.fail(ctx, StateFailed, cause)
}

func (f *Initiator) Expire(ctx context.Context) error {
	if f.cp.State.Terminal() {
		return nil
	}
	if f.cp.State == StateFinalizing {
		return f.finalise(ctx)
	}
	err := f.timeoutError()
	if f.cp.State == StateAwaitingCounterSignature {
		f.abort(ctx, err)
	}
	return f.fail(ctx, StateFailed, err)
}

func (f *Initiator) counterpartyKey() (ed25519.PublicKey, error) {
	for _, p := range f.cp.Transaction.Tx.Participants() {
		if p.Name == f.cp.Counterparty {
			return p.OwningKey, nil
		}
	}
	return nil, fmt.Errorf("%w: %s is not a participant", domain.ErrUnknownParty, f.cp.Counterparty)
}
