package node

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/assembler"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/flow"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/ledger"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/messaging"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
)

// Node runs flows for one identity. Each flow is driven by its own
// goroutine, fed session messages through an inbox.
type Node struct {
	svc       *flow.Services
	bus       messaging.Bus
	assembler *assembler.Assembler
	netmap    ledger.NetworkMap

	mu     sync.Mutex
	actors map[string]*actor
	ctx    context.Context
	wg     sync.WaitGroup
}

func New(svc *flow.Services, bus messaging.Bus, netmap ledger.NetworkMap) (*Node, error) {
	if !svc.Identity.OwningKey.Equal(svc.Keys.PublicKey()) {
		return nil, fmt.Errorf("identity %s does not match the node key", svc.Identity)
	}
	return &Node{
		svc:       svc,
		bus:       bus,
		assembler: assembler.New(svc.Attachments),
		netmap:    netmap,
		actors:    make(map[string]*actor),
	}, nil
}

func (n *Node) Identity() domain.Party { return n.svc.Identity }

func (n *Node) Services() *flow.Services { return n.svc }

// Start registers the node, subscribes to its session traffic and resumes
// checkpointed flows. Flows stop when ctx is cancelled.
func (n *Node) Start(ctx context.Context) error {
	log := observability.GetLogger(ctx)

	n.mu.Lock()
	n.ctx = ctx
	n.mu.Unlock()

	if err := n.netmap.Register(ctx, n.svc.Identity); err != nil {
		return fmt.Errorf("failed to register %s: %w", n.svc.Identity, err)
	}
	if err := n.bus.Subscribe(ctx, n.svc.Identity.Name, n.deliver); err != nil {
		return err
	}

	active, err := n.svc.Checkpoints.Active(ctx)
	if err != nil {
		return fmt.Errorf("failed to load checkpoints: %w", err)
	}
	for _, cp := range active {
		session := flow.NewSession(n.bus, cp.FlowID, n.svc.Identity.Name, cp.Counterparty)
		var m flow.Machine
		switch cp.Role {
		case flow.RoleInitiator:
			m = flow.RestoreInitiator(n.svc, session, cp)
		case flow.RoleResponder:
			m = flow.RestoreResponder(n.svc, session, cp)
		default:
			log.Warn("skipping checkpoint with unknown role", zap.String("flow_id", cp.FlowID))
			continue
		}
		log.Info("resuming flow", zap.String("flow_id", cp.FlowID), zap.String("state", string(cp.State)))
		n.spawn(m, m.Resume)
	}
	return nil
}

// Wait blocks until every flow goroutine has exited.
func (n *Node) Wait() { n.wg.Wait() }

// SendMessage starts a new thread with recipient.
func (n *Node) SendMessage(ctx context.Context, recipient, contents, attachmentFilename string) (*FlowHandle, error) {
	to, err := n.netmap.Lookup(ctx, recipient)
	if err != nil {
		return nil, err
	}
	msg, err := domain.NewMessage(n.svc.Identity, to, contents)
	if err != nil {
		return nil, err
	}
	return n.initiate(ctx, assembler.Proposal{Message: msg, AttachmentFilename: attachmentFilename}, nil)
}

// Reply consumes the current version of a thread addressed to this node and
// proposes the next one back to its sender.
func (n *Node) Reply(ctx context.Context, linearID domain.UniqueIdentifier, contents, attachmentFilename string) (*FlowHandle, error) {
	prev, err := n.svc.Vault.LatestByLinearID(ctx, linearID)
	if err != nil {
		return nil, err
	}
	if !prev.State.Data.Recipient.Equal(n.svc.Identity) {
		return nil, fmt.Errorf("%w: only %s can reply to %s", domain.ErrInvalidMessage, prev.State.Data.Recipient, linearID)
	}
	dep, err := n.svc.Vault.Transaction(ctx, prev.Ref.TxID)
	if err != nil {
		return nil, err
	}
	return n.initiate(ctx, assembler.Proposal{
		Message:            prev.State.Data.ReplyWith(contents),
		Predecessor:        prev,
		AttachmentFilename: attachmentFilename,
	}, []*domain.SignedTransaction{dep})
}

func (n *Node) initiate(ctx context.Context, p assembler.Proposal, deps []*domain.SignedTransaction) (*FlowHandle, error) {
	n.mu.Lock()
	running := n.ctx
	n.mu.Unlock()
	if running == nil {
		return nil, errors.New("node is not started")
	}

	tx, err := n.assembler.Assemble(ctx, p, n.svc.Notary.Identity())
	if err != nil {
		return nil, err
	}

	id := string(domain.NewUniqueIdentifier())
	session := flow.NewSession(n.bus, id, n.svc.Identity.Name, p.Message.Recipient.Name)
	f := flow.NewInitiator(n.svc, session, tx, deps)

	observability.GetLogger(ctx).Info("starting flow",
		zap.String("flow_id", id),
		zap.String("tx_id", tx.ID().String()),
		zap.String("counterparty", p.Message.Recipient.Name),
	)
	a := n.spawn(f, f.Start)
	return &FlowHandle{ID: id, actor: a}, nil
}

// deliver routes an inbound envelope to its flow, opening a responder for
// an unknown session that starts with a proposal.
func (n *Node) deliver(ctx context.Context, env messaging.Envelope) {
	log := observability.GetLogger(ctx).With(
		zap.String("flow_id", env.SessionID),
		zap.String("from", env.From),
		zap.String("type", env.Type),
	)

	n.mu.Lock()
	a, ok := n.actors[env.SessionID]
	n.mu.Unlock()

	if !ok {
		if env.Type != flow.MsgProposal {
			log.Debug("dropping message for unknown session")
			return
		}
		session := flow.NewSession(n.bus, env.SessionID, n.svc.Identity.Name, env.From)
		f := flow.NewResponder(n.svc, session)
		a = n.spawn(f, f.Start)
	}

	select {
	case a.inbox <- env:
	case <-a.done:
		log.Debug("dropping message for finished flow")
	case <-ctx.Done():
	}
}

func (n *Node) spawn(m flow.Machine, start func(context.Context) error) *actor {
	n.mu.Lock()
	defer n.mu.Unlock()

	if existing, ok := n.actors[m.ID()]; ok {
		return existing
	}
	a := &actor{
		machine: m,
		inbox:   make(chan messaging.Envelope, 16),
		done:    make(chan struct{}),
	}
	n.actors[m.ID()] = a
	ctx := n.ctx

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		a.run(ctx, start)

		n.mu.Lock()
		delete(n.actors, m.ID())
		n.mu.Unlock()
	}()
	return a
}

// Flow returns the last checkpoint of a flow.
func (n *Node) Flow(ctx context.Context, id string) (*flow.Checkpoint, error) {
	return n.svc.Checkpoints.Load(ctx, id)
}
