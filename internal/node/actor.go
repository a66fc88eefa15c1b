package node

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/flow"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/messaging"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
)

type actor struct {
	machine flow.Machine
	inbox   chan messaging.Envelope
	done    chan struct{}
}

func (a *actor) run(ctx context.Context, start func(context.Context) error) {
	defer close(a.done)
	log := observability.GetLogger(ctx).With(zap.String("flow_id", a.machine.ID()))

	if err := start(ctx); err != nil {
		log.Debug("flow start returned error", zap.Error(err))
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	a.arm(timer)

	for !a.machine.Terminal() {
		select {
		case <-ctx.Done():
			log.Info("flow suspended: context canceled")
			return
		case env := <-a.inbox:
			if err := a.machine.Handle(env.Context(ctx), env); err != nil {
				log.Debug("flow event returned error", zap.String("type", env.Type), zap.Error(err))
			}
		case <-timer.C:
			if err := a.machine.Expire(ctx); err != nil {
				log.Info("flow expiry returned error", zap.Error(err))
			}
		}
		a.arm(timer)
	}
}

// arm points the timer at the machine's next wake-up, or disarms it.
func (a *actor) arm(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	if at := a.machine.WakeAt(); !at.IsZero() {
		timer.Reset(time.Until(at))
	}
}

// FlowHandle tracks a flow started by this node.
type FlowHandle struct {
	ID    string
	actor *actor
}

// Done is closed when the flow reaches a terminal state or the node stops.
func (h *FlowHandle) Done() <-chan struct{} { return h.actor.done }

// Result waits for the flow to finish and returns the committed
// transaction or the reason it did not commit.
func (h *FlowHandle) Result(ctx context.Context) (*domain.SignedTransaction, error) {
	select {
	case <-h.actor.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if !h.actor.machine.Terminal() {
		return nil, &domain.FlowError{FlowID: h.ID, State: string(h.actor.machine.Checkpoint().State), Err: context.Canceled}
	}
	return h.actor.machine.Result()
}
