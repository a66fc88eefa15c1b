package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

// NetworkMap resolves party names to identities.
type NetworkMap interface {
	Register(ctx context.Context, p domain.Party) error
	Lookup(ctx context.Context, name string) (domain.Party, error)
	Parties(ctx context.Context) ([]domain.Party, error)
}

type MemoryNetworkMap struct {
	mu      sync.RWMutex
	parties map[string]domain.Party
}

func NewMemoryNetworkMap() *MemoryNetworkMap {
	return &MemoryNetworkMap{parties: make(map[string]domain.Party)}
}

func (m *MemoryNetworkMap) Register(ctx context.Context, p domain.Party) error {
	if p.Name == "" || len(p.OwningKey) == 0 {
		return fmt.Errorf("%w: party needs a name and key", domain.ErrUnknownParty)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parties[p.Name] = p
	return nil
}

func (m *MemoryNetworkMap) Lookup(ctx context.Context, name string) (domain.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.parties[name]
	if !ok {
		return domain.Party{}, fmt.Errorf("%w: %s", domain.ErrUnknownParty, name)
	}
	return p, nil
}

func (m *MemoryNetworkMap) Parties(ctx context.Context) ([]domain.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Party, 0, len(m.parties))
	for _, p := range m.parties {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
