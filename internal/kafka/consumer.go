package kafka

import (
	"context"
	"errors"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
)

type Handler interface {
	Handle(ctx context.Context, record []byte)
}

type kgoRecordCarrier struct {
	record *kgo.Record
}

func (c kgoRecordCarrier) Get(key string) string {
	for _, h := range c.record.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c kgoRecordCarrier) Set(key string, value string) {
	// Not needed for consumer
}

func (c kgoRecordCarrier) Keys() []string {
	keys := make([]string, 0, len(c.record.Headers))
	for _, h := range c.record.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

type Consumer struct {
	client  *kgo.Client
	handler Handler
}

// New joins group on the given topics. An empty group consumes without
// committing offsets, starting from the end of each partition.
func New(brokers, topics []string, group string, handler Handler) (*Consumer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topics...),
	}
	if group != "" {
		opts = append(opts,
			kgo.ConsumerGroup(group),
			kgo.OnPartitionsRevoked(func(ctx context.Context, _ *kgo.Client, _ map[string][]int32) {
				observability.GetLogger(ctx).Info("kafka partitions revoked")
			}),
			kgo.OnPartitionsAssigned(func(ctx context.Context, _ *kgo.Client, _ map[string][]int32) {
				observability.GetLogger(ctx).Info("kafka partitions assigned")
			}),
		)
	} else {
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &Consumer{client: cl, handler: handler}, nil
}

func (c *Consumer) Start(ctx context.Context) {
	go c.Run(ctx)
}

// Run polls until ctx is done.
func (c *Consumer) Run(ctx context.Context) {
	log := observability.GetLogger(ctx)
	log.Info("kafka consumer started")
	for {
		select {
		case <-ctx.Done():
			log.Info("kafka consumer loop stopping: context canceled")
			return
		default:
			fetches := c.client.PollFetches(ctx)
			if fetches.IsClientClosed() {
				return
			}
			if errs := fetches.Errors(); len(errs) > 0 {
				for _, ferr := range errs {
					if errors.Is(ferr.Err, context.Canceled) {
						return
					}
					log.Error("kafka fetch error", zap.String("topic", ferr.Topic), zap.Int32("partition", ferr.Partition), zap.Error(ferr.Err))
				}
				continue
			}

			fetches.EachRecord(func(r *kgo.Record) {
				ctx := otel.GetTextMapPropagator().Extract(ctx, kgoRecordCarrier{record: r})
				c.handler.Handle(ctx, r.Value)
			})
		}
	}
}

func (c *Consumer) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
