package domain

import "crypto/ed25519"

type CommandKind string

const (
	CommandSend  CommandKind = "send"
	CommandReply CommandKind = "reply"
)

func (k CommandKind) Valid() bool {
	return k == CommandSend || k == CommandReply
}

// Command is either Send or Reply, each naming the whitelist attachment
// that justifies it.
type Command struct {
	Kind         CommandKind `json:"kind"`
	AttachmentID SecureHash  `json:"attachment_id"`
}

func Send(attachmentID SecureHash) Command {
	return Command{Kind: CommandSend, AttachmentID: attachmentID}
}

func Reply(attachmentID SecureHash) Command {
	return Command{Kind: CommandReply, AttachmentID: attachmentID}
}

// Equal compares commands by kind only: two Send commands referencing
// different attachments are equal. Nothing in signer resolution depends on
// this; see DESIGN.md before changing it.
func (c Command) Equal(other Command) bool {
	return c.Kind == other.Kind
}

// CommandWithSigners pairs a command with the keys that must sign for it.
type CommandWithSigners struct {
	Value   Command             `json:"value"`
	Signers []ed25519.PublicKey `json:"signers"`
}
