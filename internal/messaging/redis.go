package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
)

// RedisBus carries envelopes over redis pub/sub, one channel per node.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) channel(node string) string {
	return "ledger:node:" + node
}

func (b *RedisBus) Send(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	log := observability.GetLogger(ctx)
	log.Debug("publishing to node",
		zap.String("target", env.To),
		zap.String("session_id", env.SessionID),
		zap.String("type", env.Type),
	)

	n, err := b.client.Publish(ctx, b.channel(env.To), payload).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		log.Warn("no subscriber for node", zap.String("target", env.To))
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, node string, h Handler) error {
	channelName := b.channel(node)
	pubsub := b.client.Subscribe(ctx, channelName)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", channelName, err)
	}

	go func() {
		log := observability.GetLogger(ctx)
		log.Info("bus: subscribed to channel", zap.String("channel", channelName))
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				log.Info("bus: subscription loop stopping: context canceled")
				return
			case msg, ok := <-ch:
				if !ok {
					log.Warn("bus: pubsub channel closed")
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Error("bus: dropping malformed envelope", zap.Error(err))
					continue
				}
				h(env.Context(ctx), env)
			}
		}
	}()
	return nil
}
