package assembler

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/google/uuid"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/attachment"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/contract"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

// Proposal is what the initiator wants recorded. A nil Predecessor starts a
// new thread with Send; otherwise the predecessor is consumed by Reply.
type Proposal struct {
	Message            domain.MessageState
	Predecessor        *domain.StateAndRef
	AttachmentFilename string
}

type Assembler struct {
	index attachment.Index
}

func New(index attachment.Index) *Assembler {
	return &Assembler{index: index}
}

// Assemble builds the unsigned transaction for p. It never signs or submits.
func (a *Assembler) Assemble(ctx context.Context, p Proposal, notary domain.Party) (*domain.WireTransaction, error) {
	if err := p.Message.Validate(); err != nil {
		return nil, err
	}
	if notary.IsZero() {
		return nil, fmt.Errorf("%w: notary is required", domain.ErrInvalidMessage)
	}
	if p.Predecessor != nil && p.Predecessor.State.Data.LinearID != p.Message.LinearID {
		return nil, fmt.Errorf("%w: reply must keep linear id %s", domain.ErrInvalidMessage, p.Predecessor.State.Data.LinearID)
	}

	attachmentID, err := a.index.ResolveByFilename(ctx, p.AttachmentFilename)
	if err != nil {
		return nil, err
	}

	cmd := domain.Send(attachmentID)
	var inputs []domain.StateRef
	if p.Predecessor != nil {
		cmd = domain.Reply(attachmentID)
		inputs = []domain.StateRef{p.Predecessor.Ref}
	}

	signers := make([]ed25519.PublicKey, 0, 2)
	for _, party := range p.Message.Participants() {
		signers = append(signers, party.OwningKey)
	}

	return &domain.WireTransaction{
		Inputs: inputs,
		Outputs: []domain.TransactionState{{
			Data:     p.Message,
			Contract: contract.MessageContractID,
			Notary:   notary,
		}},
		Commands:    []domain.CommandWithSigners{{Value: cmd, Signers: signers}},
		Attachments: []domain.SecureHash{attachmentID},
		Notary:      notary,
		Salt:        uuid.NewString(),
	}, nil
}
