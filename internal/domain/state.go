package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UniqueIdentifier ties every version of a message thread together.
type UniqueIdentifier string

func NewUniqueIdentifier() UniqueIdentifier {
	return UniqueIdentifier(uuid.NewString())
}

func (u UniqueIdentifier) String() string { return string(u) }

// ContractID names the verification logic governing a state.
type ContractID string

// MessageState is one version of a message exchanged between two parties.
// A new version is created by every Send or Reply; versions are never
// mutated in place.
type MessageState struct {
	Sender    Party            `json:"sender"`
	Recipient Party            `json:"recipient"`
	Contents  string           `json:"contents"`
	LinearID  UniqueIdentifier `json:"linear_id"`
}

// NewMessage starts a new thread from sender to recipient.
func NewMessage(sender, recipient Party, contents string) (MessageState, error) {
	m := MessageState{
		Sender:    sender,
		Recipient: recipient,
		Contents:  contents,
		LinearID:  NewUniqueIdentifier(),
	}
	if err := m.Validate(); err != nil {
		return MessageState{}, err
	}
	return m, nil
}

func (m MessageState) Validate() error {
	switch {
	case strings.TrimSpace(m.Sender.Name) == "" || len(m.Sender.OwningKey) == 0:
		return fmt.Errorf("%w: sender is required", ErrInvalidMessage)
	case strings.TrimSpace(m.Recipient.Name) == "" || len(m.Recipient.OwningKey) == 0:
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	case m.Sender.Equal(m.Recipient):
		return fmt.Errorf("%w: sender and recipient must differ", ErrInvalidMessage)
	case m.LinearID == "":
		return fmt.Errorf("%w: linear id is required", ErrInvalidMessage)
	}
	return nil
}

// Participants are the parties that must sign and store the message.
func (m MessageState) Participants() []Party {
	return []Party{m.Sender, m.Recipient}
}

// ReplyWith returns the next version of the thread, sent back by the
// current recipient.
func (m MessageState) ReplyWith(contents string) MessageState {
	return MessageState{
		Sender:    m.Recipient,
		Recipient: m.Sender,
		Contents:  contents,
		LinearID:  m.LinearID,
	}
}

// TransactionState wraps a state with the contract and notary governing it.
type TransactionState struct {
	Data     MessageState `json:"data"`
	Contract ContractID   `json:"contract"`
	Notary   Party        `json:"notary"`
}

// StateRef points at an output of a recorded transaction.
type StateRef struct {
	TxID  SecureHash `json:"tx_id"`
	Index int        `json:"index"`
}

func (r StateRef) String() string {
	return fmt.Sprintf("%s(%d)", r.TxID, r.Index)
}

type StateAndRef struct {
	State TransactionState `json:"state"`
	Ref   StateRef         `json:"ref"`
}
