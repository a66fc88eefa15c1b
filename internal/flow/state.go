package flow

import "fmt"

type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

type State string

const (
	// Initiator states.
	StateBuilt                    State = "Built"
	StateLocallyVerified          State = "LocallyVerified"
	StateLocallySigned            State = "LocallySigned"
	StateAwaitingCounterSignature State = "AwaitingCounterSignature"
	StateFinalizing               State = "Finalizing"
	StateRejected                 State = "Rejected"

	// Responder states.
	StateSessionOpened    State = "SessionOpened"
	StateValidating       State = "Validating"
	StateSigned           State = "Signed"
	StateDeclined         State = "Declined"
	StateAwaitingFinality State = "AwaitingFinality"

	// Shared terminal states.
	StateCommitted State = "Committed"
	StateFailed    State = "Failed"
)

var transitions = map[Role]map[State][]State{
	RoleInitiator: {
		StateBuilt:                    {StateLocallyVerified, StateRejected, StateFailed},
		StateLocallyVerified:          {StateLocallySigned, StateFailed},
		StateLocallySigned:            {StateAwaitingCounterSignature, StateFailed},
		StateAwaitingCounterSignature: {StateFinalizing, StateRejected, StateFailed},
		StateFinalizing:               {StateCommitted, StateFailed},
	},
	RoleResponder: {
		StateSessionOpened:    {StateValidating, StateFailed},
		StateValidating:       {StateSigned, StateDeclined, StateFailed},
		StateSigned:           {StateAwaitingFinality, StateFailed},
		StateAwaitingFinality: {StateCommitted, StateFailed},
	},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StateCommitted, StateRejected, StateFailed, StateDeclined:
		return true
	}
	return false
}

// GuardResult represents the outcome of a transition guard.
type GuardResult struct {
	Allowed bool
	Reason  string
}

func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// CanTransition evaluates whether a flow of the given role may move from one
// state to another.
func CanTransition(role Role, from, to State) GuardResult {
	table, ok := transitions[role]
	if !ok {
		return GuardResult{Reason: fmt.Sprintf("unknown role %q", role)}
	}
	if from.Terminal() {
		return GuardResult{Reason: fmt.Sprintf("%s flow already finished in %s", role, from)}
	}
	for _, next := range table[from] {
		if next == to {
			return GuardResult{Allowed: true}
		}
	}
	return GuardResult{Reason: fmt.Sprintf("%s flow cannot move from %s to %s", role, from, to)}
}
