package contract

import (
	"fmt"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/attachment"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

// MessageContractID binds MessageState outputs to MessageContract.
const MessageContractID domain.ContractID = "ledgermsg.contracts.MessageContract"

// MessageContract accepts a transaction when it carries exactly one Send or
// Reply command with the right shape and its single output appears in the
// whitelist attachment the command references.
type MessageContract struct{}

func (MessageContract) Verify(tx *domain.LedgerTransaction) error {
	cmd, err := singleCommand(tx)
	if err != nil {
		return err
	}

	switch cmd.Kind {
	case domain.CommandSend:
		if len(tx.Inputs) != 0 {
			return structural("No inputs should be consumed when sending a message.")
		}
		if len(tx.Outputs) != 1 {
			return structural("Only one output state should be created when sending a message.")
		}
	case domain.CommandReply:
		if len(tx.Inputs) != 1 {
			return structural("One input should be consumed when replying to a message.")
		}
		if len(tx.Outputs) != 1 {
			return structural("Only one output state should be created when replying to a message.")
		}
	}

	att, ok := tx.Attachment(cmd.AttachmentID)
	if !ok {
		return &domain.ContractRejection{
			Reason:       domain.ErrAttachmentNotFound,
			AttachmentID: cmd.AttachmentID,
			Detail:       fmt.Sprintf("attachment %s is not part of the transaction", cmd.AttachmentID),
		}
	}

	wl, err := attachment.ReadWhitelist(att.Data)
	if err != nil {
		return &domain.ContractRejection{Reason: err, AttachmentID: att.ID}
	}

	if !wl.Contains(tx.Outputs[0].Data.Contents) {
		return &domain.ContractRejection{
			Reason:       domain.ErrNotInWhitelist,
			AttachmentID: att.ID,
			Detail: "The output message must be contained within the csv of valid messages. " +
				"See attachment with hash = " + att.ID.String() + " for its contents",
		}
	}
	return nil
}

func singleCommand(tx *domain.LedgerTransaction) (domain.Command, error) {
	var found []domain.Command
	for _, c := range tx.Commands {
		if c.Value.Kind.Valid() {
			found = append(found, c.Value)
		}
	}
	if len(found) != 1 {
		return domain.Command{}, &domain.ContractRejection{
			Reason: domain.ErrMultipleOrMissingCommand,
			Detail: fmt.Sprintf("found %d message commands", len(found)),
		}
	}
	return found[0], nil
}

func structural(detail string) error {
	return &domain.ContractRejection{Reason: domain.ErrStructuralViolation, Detail: detail}
}
