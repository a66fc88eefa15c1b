package kafka

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
)

// CommittedHandler decodes TransactionCommitted records and hands them to Fn.
// Records that do not decode are logged and skipped.
type CommittedHandler struct {
	Fn func(ctx context.Context, ev domain.TransactionCommitted)
}

func (h CommittedHandler) Handle(ctx context.Context, record []byte) {
	var ev domain.TransactionCommitted
	if err := json.Unmarshal(record, &ev); err != nil || ev.TxID == "" {
		observability.GetLogger(ctx).Warn("skipping undecodable ledger event", zap.Error(err))
		return
	}
	h.Fn(ctx, ev)
}

// AuditLog returns a handler that logs every committed transaction seen on
// the topic.
func AuditLog() CommittedHandler {
	return CommittedHandler{Fn: func(ctx context.Context, ev domain.TransactionCommitted) {
		observability.GetLogger(ctx).Info("ledger transaction committed",
			zap.String("node", ev.Node),
			zap.String("tx_id", string(ev.TxID)),
			zap.String("command", string(ev.Command)),
			zap.String("linear_id", string(ev.LinearID)),
			zap.String("sender", ev.Sender),
			zap.String("recipient", ev.Recipient),
		)
	}}
}
