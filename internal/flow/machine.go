package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/messaging"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
)

// Machine is a flow advanced by session events. Implementations are not
// safe for concurrent use; the node feeds each machine from one goroutine.
type Machine interface {
	ID() string
	Checkpoint() Checkpoint
	// Resume continues any work that does not wait on the counterparty.
	Resume(ctx context.Context) error
	Handle(ctx context.Context, env messaging.Envelope) error
	// Expire runs when WakeAt passes. It fails a flow that missed its
	// deadline or retries a pending delivery.
	Expire(ctx context.Context) error
	// WakeAt is when Expire should run next. Zero means never.
	WakeAt() time.Time
	Terminal() bool
	Result() (*domain.SignedTransaction, error)
}

type machine struct {
	svc     *Services
	session Session
	cp      Checkpoint
	result  *domain.SignedTransaction
	err     error
}

func (m *machine) ID() string             { return m.cp.FlowID }
func (m *machine) Checkpoint() Checkpoint { return m.cp }
func (m *machine) Terminal() bool         { return m.cp.State.Terminal() }

func (m *machine) Result() (*domain.SignedTransaction, error) {
	return m.result, m.err
}

func (m *machine) WakeAt() time.Time {
	if !m.cp.RetryAt.IsZero() {
		return m.cp.RetryAt
	}
	return m.cp.Deadline
}

func (m *machine) logger(ctx context.Context) *zap.Logger {
	return observability.GetLogger(ctx).With(
		zap.String("flow_id", m.cp.FlowID),
		zap.String("role", string(m.cp.Role)),
		zap.String("state", string(m.cp.State)),
	)
}

func (m *machine) save(ctx context.Context) error {
	m.cp.UpdatedAt = m.svc.now()
	if err := m.svc.Checkpoints.Save(ctx, &m.cp); err != nil {
		return fmt.Errorf("failed to checkpoint flow %s: %w", m.cp.FlowID, err)
	}
	return nil
}

func (m *machine) transition(ctx context.Context, to State) error {
	if err := CanTransition(m.cp.Role, m.cp.State, to).Error(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnexpectedMessage, err)
	}

	from := m.cp.State
	m.cp.State = to
	if err := m.save(ctx); err != nil {
		return err
	}

	m.logger(ctx).Info("flow transition", zap.String("from", string(from)))
	if to.Terminal() {
		m.observeOutcome()
	}
	return nil
}

// fail moves the flow to a terminal state, recording err.
func (m *machine) fail(ctx context.Context, to State, err error) error {
	m.cp.FailedIn = m.cp.State
	m.cp.ErrorCode = domain.ReasonCode(err)
	m.cp.ErrorDetail = err.Error()
	m.err = &domain.FlowError{FlowID: m.cp.FlowID, State: string(m.cp.State), Err: err}

	var rej *domain.ContractRejection
	if errors.As(err, &rej) {
		observability.ContractRejectionsTotal.WithLabelValues(m.cp.ErrorCode).Inc()
	}
	if errors.Is(err, domain.ErrNotaryConflict) {
		observability.NotaryConflictsTotal.Inc()
	}

	m.logger(ctx).Warn("flow failed", zap.String("to", string(to)), zap.Error(err))
	if terr := m.transition(ctx, to); terr != nil {
		// Force the terminal state so the node stops driving the machine.
		m.cp.State = to
		m.logger(ctx).Error("failed to record flow failure", zap.Error(terr))
		m.observeOutcome()
	}
	return m.err
}

func (m *machine) observeOutcome() {
	reason := m.cp.ErrorCode
	if reason == "" {
		reason = "none"
	}
	observability.FlowOutcomesTotal.WithLabelValues(string(m.cp.Role), string(m.cp.State), reason).Inc()
	observability.FlowDuration.WithLabelValues(string(m.cp.Role)).Observe(m.svc.now().Sub(m.cp.CreatedAt).Seconds())
}

// abort tells the counterparty the session is over. Delivery is best effort.
func (m *machine) abort(ctx context.Context, err error) {
	if serr := m.session.Send(ctx, MsgRejection, rejectionFor(err)); serr != nil {
		m.logger(ctx).Warn("failed to notify counterparty", zap.Error(serr))
	}
}

// retryLater keeps the flow in its current state and schedules another
// attempt at a delivery that failed.
func (m *machine) retryLater(ctx context.Context, err error) error {
	m.cp.Attempts++
	m.cp.RetryAt = m.svc.now().Add(m.svc.retryInterval())
	m.logger(ctx).Warn("delivery failed, retrying",
		zap.Int("attempt", m.cp.Attempts),
		zap.Time("retry_at", m.cp.RetryAt),
		zap.Error(err),
	)
	if serr := m.save(ctx); serr != nil {
		return serr
	}
	return err
}

// delivered clears the retry schedule after a successful delivery.
func (m *machine) delivered() {
	m.cp.RetryAt = time.Time{}
	m.cp.Attempts = 0
}

func (m *machine) timeoutError() error {
	return fmt.Errorf("%w: no response from %s by %s", domain.ErrTimeout, m.cp.Counterparty, m.cp.Deadline.Format("15:04:05.000"))
}

func unexpected(state State, env messaging.Envelope) error {
	return fmt.Errorf("%w: %s from %s in %s", domain.ErrUnexpectedMessage, env.Type, env.From, state)
}
