package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

const netmapKey = "ledger:netmap"

// NetworkMap shares party identities between nodes through one redis hash.
type NetworkMap struct {
	R *redis.Client
}

func (m *NetworkMap) Register(ctx context.Context, p domain.Party) error {
	if p.Name == "" || len(p.OwningKey) == 0 {
		return fmt.Errorf("%w: party needs a name and key", domain.ErrUnknownParty)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return m.R.HSet(ctx, netmapKey, p.Name, b).Err()
}

func (m *NetworkMap) Lookup(ctx context.Context, name string) (domain.Party, error) {
	b, err := m.R.HGet(ctx, netmapKey, name).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Party{}, fmt.Errorf("%w: %s", domain.ErrUnknownParty, name)
	}
	if err != nil {
		return domain.Party{}, err
	}
	var p domain.Party
	return p, json.Unmarshal(b, &p)
}

func (m *NetworkMap) Parties(ctx context.Context) ([]domain.Party, error) {
	all, err := m.R.HGetAll(ctx, netmapKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Party, 0, len(all))
	for name, raw := range all {
		var p domain.Party
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to decode party %s: %w", name, err)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
