package domain

import "time"

const EventTransactionCommitted = "ledger.transaction.committed"

// TransactionCommitted is published after a node records a notarised
// transaction.
type TransactionCommitted struct {
	Node        string           `json:"node"`
	TxID        SecureHash       `json:"tx_id"`
	Command     CommandKind      `json:"command"`
	LinearID    UniqueIdentifier `json:"linear_id"`
	Sender      string           `json:"sender"`
	Recipient   string           `json:"recipient"`
	Contents    string           `json:"contents"`
	Inputs      []StateRef       `json:"inputs,omitempty"`
	CommittedAt time.Time        `json:"committed_at"`
}

func NewTransactionCommitted(node string, stx *SignedTransaction, at time.Time) TransactionCommitted {
	ev := TransactionCommitted{
		Node:        node,
		TxID:        stx.ID(),
		Inputs:      stx.Tx.Inputs,
		CommittedAt: at.UTC(),
	}
	if len(stx.Tx.Commands) > 0 {
		ev.Command = stx.Tx.Commands[0].Value.Kind
	}
	if len(stx.Tx.Outputs) > 0 {
		out := stx.Tx.Outputs[0].Data
		ev.LinearID = out.LinearID
		ev.Sender = out.Sender.Name
		ev.Recipient = out.Recipient.Name
		ev.Contents = out.Contents
	}
	return ev
}
