package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
	"go.uber.org/zap"
)

const inboxSize = 256

// MemoryNetwork connects nodes living in one process. Each node has an
// inbox drained by a single goroutine, so delivery is ordered per node.
type MemoryNetwork struct {
	mu      sync.RWMutex
	inboxes map[string]chan Envelope
}

func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{inboxes: make(map[string]chan Envelope)}
}

func (n *MemoryNetwork) Send(ctx context.Context, env Envelope) error {
	n.mu.RLock()
	inbox, ok := n.inboxes[env.To]
	n.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s is not on the network", domain.ErrUnknownParty, env.To)
	}

	select {
	case inbox <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *MemoryNetwork) Subscribe(ctx context.Context, node string, h Handler) error {
	n.mu.Lock()
	if _, ok := n.inboxes[node]; ok {
		n.mu.Unlock()
		return fmt.Errorf("node %s already subscribed", node)
	}
	inbox := make(chan Envelope, inboxSize)
	n.inboxes[node] = inbox
	n.mu.Unlock()

	go func() {
		log := observability.GetLogger(ctx)
		defer func() {
			n.mu.Lock()
			delete(n.inboxes, node)
			n.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				log.Debug("memory network: subscription stopping", zap.String("node", node))
				return
			case env := <-inbox:
				h(env.Context(ctx), env)
			}
		}
	}()
	return nil
}
