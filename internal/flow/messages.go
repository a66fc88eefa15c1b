package flow

import (
	"context"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/messaging"
)

// Session message types.
const (
	MsgProposal  = "proposal"
	MsgSignature = "signature"
	MsgRejection = "rejection"
	MsgFinality  = "finality"
)

// ProposalMessage opens a session. It ships the attachments and input
// dependencies the responder needs to verify the transaction.
type ProposalMessage struct {
	Transaction  *domain.SignedTransaction   `json:"transaction"`
	Attachments  []domain.Attachment         `json:"attachments"`
	Dependencies []*domain.SignedTransaction `json:"dependencies,omitempty"`
}

type SignatureMessage struct {
	Signature domain.TransactionSignature `json:"signature"`
}

// RejectionMessage ends a session. The responder sends it to decline; the
// initiator sends it to abort after a failure.
type RejectionMessage struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

type FinalityMessage struct {
	Transaction *domain.SignedTransaction `json:"transaction"`
}

func rejectionFor(err error) RejectionMessage {
	return RejectionMessage{Code: domain.ReasonCode(err), Detail: err.Error()}
}

// Session is the ordered channel between the two parties of one flow.
type Session interface {
	ID() string
	Counterparty() string
	Send(ctx context.Context, typ string, payload any) error
}

type busSession struct {
	bus          messaging.Bus
	id           string
	self         string
	counterparty string
}

func NewSession(bus messaging.Bus, id, self, counterparty string) Session {
	return &busSession{bus: bus, id: id, self: self, counterparty: counterparty}
}

func (s *busSession) ID() string           { return s.id }
func (s *busSession) Counterparty() string { return s.counterparty }

func (s *busSession) Send(ctx context.Context, typ string, payload any) error {
	env, err := messaging.NewEnvelope(ctx, s.id, s.self, s.counterparty, typ, payload)
	if err != nil {
		return err
	}
	return s.bus.Send(ctx, env)
}
