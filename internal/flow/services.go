package flow

import (
	"context"
	"time"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/attachment"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/ledger"
)

const (
	// DefaultTimeout bounds how long a flow waits for its counterparty.
	DefaultTimeout = 30 * time.Second
	// DefaultRetryInterval spaces redeliveries of finality and aborts.
	DefaultRetryInterval = 2 * time.Second
)

// AcceptancePolicy lets the responder refuse a transaction that passed
// verification. Returning an error declines it.
type AcceptancePolicy interface {
	Accept(ctx context.Context, stx *domain.SignedTransaction) error
}

type AcceptancePolicyFunc func(ctx context.Context, stx *domain.SignedTransaction) error

func (f AcceptancePolicyFunc) Accept(ctx context.Context, stx *domain.SignedTransaction) error {
	return f(ctx, stx)
}

// AcceptAll signs anything that verifies.
var AcceptAll AcceptancePolicy = AcceptancePolicyFunc(func(context.Context, *domain.SignedTransaction) error {
	return nil
})

// Services are the node facilities a flow uses.
type Services struct {
	Identity      domain.Party
	Keys          ledger.KeyManager
	Vault         ledger.Vault
	Attachments   attachment.Index
	Verifier      *ledger.Verifier
	Notary        ledger.Notary
	Checkpoints   CheckpointStore
	Policy        AcceptancePolicy
	Timeout       time.Duration
	RetryInterval time.Duration
	Now           func() time.Time
}

func (s *Services) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Services) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

func (s *Services) retryInterval() time.Duration {
	if s.RetryInterval > 0 {
		return s.RetryInterval
	}
	return DefaultRetryInterval
}

func (s *Services) policy() AcceptancePolicy {
	if s.Policy != nil {
		return s.Policy
	}
	return AcceptAll
}
