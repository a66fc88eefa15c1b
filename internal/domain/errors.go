package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrStructuralViolation      = errors.New("structural violation")
	ErrMultipleOrMissingCommand = errors.New("exactly one message command is required")
	ErrAttachmentNotFound       = errors.New("attachment not found")
	ErrAttachmentResolution     = errors.New("attachment resolution failed")
	ErrNotInWhitelist           = errors.New("message not in whitelist")
	ErrCounterpartyRejected     = errors.New("counterparty rejected")
	ErrNotaryConflict           = errors.New("notary conflict")
	ErrTimeout                  = errors.New("flow timed out")

	ErrMalformedAttachment = errors.New("malformed attachment")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrMissingSignatures   = errors.New("missing signatures")
	ErrStateNotFound       = errors.New("state not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUnknownContract     = errors.New("unknown contract")
	ErrUnexpectedMessage   = errors.New("unexpected session message")
	ErrInvalidMessage      = errors.New("invalid message")
	ErrFlowNotFound        = errors.New("flow not found")
	ErrUnknownParty        = errors.New("unknown party")
	ErrStateConsumed       = errors.New("state already consumed")
)

// ContractRejection is returned when a contract refuses a transaction.
type ContractRejection struct {
	ContractID   ContractID
	TxID         SecureHash
	Reason       error
	AttachmentID SecureHash
	Detail       string
}

func (e *ContractRejection) Error() string {
	var b strings.Builder
	b.WriteString("contract verification failed")
	if e.ContractID != "" {
		fmt.Fprintf(&b, " for %s", e.ContractID)
	}
	if !e.TxID.IsZero() {
		fmt.Fprintf(&b, " on tx %s", e.TxID.Short())
	}
	fmt.Fprintf(&b, ": %v", e.Reason)
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

func (e *ContractRejection) Unwrap() error { return e.Reason }

// NotaryConflictError lists inputs that were already consumed by other
// transactions.
type NotaryConflictError struct {
	TxID      SecureHash
	Conflicts map[StateRef]SecureHash
}

func (e *NotaryConflictError) Error() string {
	refs := make([]string, 0, len(e.Conflicts))
	for ref, by := range e.Conflicts {
		refs = append(refs, fmt.Sprintf("%s consumed by %s", ref, by.Short()))
	}
	sort.Strings(refs)
	return fmt.Sprintf("notary conflict for tx %s: %s", e.TxID.Short(), strings.Join(refs, ", "))
}

func (e *NotaryConflictError) Unwrap() error { return ErrNotaryConflict }

// FlowError records the state a flow was in when it failed.
type FlowError struct {
	FlowID string
	State  string
	Err    error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("flow %s failed in %s: %v", e.FlowID, e.State, e.Err)
}

func (e *FlowError) Unwrap() error { return e.Err }

// CounterpartyRejection carries the reason the other party gave.
type CounterpartyRejection struct {
	Party  string
	Cause  error
	Detail string
}

func (e *CounterpartyRejection) Error() string {
	msg := fmt.Sprintf("%s rejected the transaction", e.Party)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *CounterpartyRejection) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrCounterpartyRejected}
	}
	return []error{ErrCounterpartyRejected, e.Cause}
}

var reasonCodes = []struct {
	code string
	err  error
}{
	{"structural_violation", ErrStructuralViolation},
	{"multiple_or_missing_command", ErrMultipleOrMissingCommand},
	{"attachment_not_found", ErrAttachmentNotFound},
	{"attachment_resolution", ErrAttachmentResolution},
	{"not_in_whitelist", ErrNotInWhitelist},
	{"counterparty_rejected", ErrCounterpartyRejected},
	{"notary_conflict", ErrNotaryConflict},
	{"timeout", ErrTimeout},
	{"malformed_attachment", ErrMalformedAttachment},
	{"invalid_signature", ErrInvalidSignature},
	{"missing_signatures", ErrMissingSignatures},
	{"state_not_found", ErrStateNotFound},
	{"transaction_not_found", ErrTransactionNotFound},
	{"unknown_contract", ErrUnknownContract},
	{"unexpected_message", ErrUnexpectedMessage},
	{"invalid_message", ErrInvalidMessage},
	{"state_consumed", ErrStateConsumed},
	{"unknown_party", ErrUnknownParty},
}

// ReasonCode returns a stable code for the first known sentinel err wraps,
// or "unknown".
func ReasonCode(err error) string {
	for _, rc := range reasonCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return "unknown"
}

// ErrorFromCode is the inverse of ReasonCode. Unknown codes yield nil.
func ErrorFromCode(code string) error {
	for _, rc := range reasonCodes {
		if rc.code == code {
			return rc.err
		}
	}
	return nil
}

// IsRetryable reports whether retrying the same operation later may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAttachmentResolution) || errors.Is(err, ErrTimeout)
}
