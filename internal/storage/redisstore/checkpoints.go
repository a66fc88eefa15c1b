package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/flow"
)

// FinishedTTL is how long checkpoints of finished flows stay queryable.
const FinishedTTL = 24 * time.Hour

// CheckpointStore keeps one JSON document per flow plus a per-node set of
// unfinished flow ids.
type CheckpointStore struct {
	R    *redis.Client
	Node string
}

func checkpointKey(node, flowID string) string { return "flow:" + node + ":" + flowID }
func activeKey(node string) string             { return "flow:" + node + ":active" }

func (s *CheckpointStore) Save(ctx context.Context, cp *flow.Checkpoint) error {
	b, err := json.Marshal(cp)
	if err != nil {
		return err
	}

	pipe := s.R.TxPipeline()
	if cp.State.Terminal() {
		pipe.Set(ctx, checkpointKey(s.Node, cp.FlowID), b, FinishedTTL)
		pipe.SRem(ctx, activeKey(s.Node), cp.FlowID)
	} else {
		pipe.Set(ctx, checkpointKey(s.Node, cp.FlowID), b, 0)
		pipe.SAdd(ctx, activeKey(s.Node), cp.FlowID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *CheckpointStore) Load(ctx context.Context, flowID string) (*flow.Checkpoint, error) {
	b, err := s.R.Get(ctx, checkpointKey(s.Node, flowID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, flowID)
	}
	if err != nil {
		return nil, err
	}
	var cp flow.Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", flowID, err)
	}
	return &cp, nil
}

func (s *CheckpointStore) Active(ctx context.Context) ([]*flow.Checkpoint, error) {
	ids, err := s.R.SMembers(ctx, activeKey(s.Node)).Result()
	if err != nil {
		return nil, err
	}

	var out []*flow.Checkpoint
	for _, id := range ids {
		cp, err := s.Load(ctx, id)
		if errors.Is(err, domain.ErrFlowNotFound) {
			s.R.SRem(ctx, activeKey(s.Node), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
