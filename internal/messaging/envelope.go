package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Envelope carries one session message between two nodes. Messages of a
// session are delivered in the order they were sent.
type Envelope struct {
	SessionID string            `json:"session_id"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Type      string            `json:"type"`
	Payload   json.RawMessage   `json:"payload"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// NewEnvelope marshals payload and injects the trace context from ctx.
func NewEnvelope(ctx context.Context, sessionID, from, to, typ string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", typ, err)
	}
	env := Envelope{
		SessionID: sessionID,
		From:      from,
		To:        to,
		Type:      typ,
		Payload:   raw,
		Headers:   make(map[string]string),
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(env.Headers))
	return env, nil
}

// Context returns ctx enriched with the trace context carried by the
// envelope.
func (e Envelope) Context(ctx context.Context) context.Context {
	if len(e.Headers) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(e.Headers))
}

func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Handler processes one inbound envelope.
type Handler func(ctx context.Context, env Envelope)

// Bus moves envelopes between named nodes.
type Bus interface {
	Send(ctx context.Context, env Envelope) error
	// Subscribe delivers envelopes addressed to node until ctx is done.
	Subscribe(ctx context.Context, node string, h Handler) error
}
