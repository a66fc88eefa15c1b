package redisstore

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/flow"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestCheckpointStore(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()
	store := &CheckpointStore{R: client, Node: "Alice"}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cp := &flow.Checkpoint{
		FlowID:       "f1",
		Role:         flow.RoleInitiator,
		State:        flow.StateAwaitingCounterSignature,
		Self:         "Alice",
		Counterparty: "Bob",
		Attachments:  []domain.Attachment{{ID: domain.SHA256([]byte("wl")), Filename: "whitelist.csv", Data: []byte("wl")}},
		Deadline:     now.Add(time.Minute),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, store.Save(ctx, cp))

	got, err := store.Load(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, cp.State, got.State)
	assert.True(t, cp.Deadline.Equal(got.Deadline))
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, []byte("wl"), got.Attachments[0].Data)

	active, err := store.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	cp.State = flow.StateFailed
	cp.FailedIn = flow.StateAwaitingCounterSignature
	cp.ErrorCode = "timeout"
	require.NoError(t, store.Save(ctx, cp))

	active, err = store.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err = store.Load(ctx, "f1")
	require.NoError(t, err)
	assert.ErrorIs(t, got.Err(), domain.ErrTimeout)
	assert.Greater(t, mr.TTL(checkpointKey("Alice", "f1")), time.Duration(0))

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestCheckpointStore_IsolatedPerNode(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()
	alice := &CheckpointStore{R: client, Node: "Alice"}
	bob := &CheckpointStore{R: client, Node: "Bob"}

	require.NoError(t, alice.Save(ctx, &flow.Checkpoint{FlowID: "f1", State: flow.StateBuilt}))
	require.NoError(t, bob.Save(ctx, &flow.Checkpoint{FlowID: "f1", State: flow.StateSessionOpened}))

	got, err := alice.Load(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, flow.StateBuilt, got.State)
}

func TestNetworkMap(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()
	m := &NetworkMap{R: client}

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	alice := domain.Party{Name: "Alice", OwningKey: pub}

	require.NoError(t, m.Register(ctx, alice))
	got, err := m.Lookup(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, got.Equal(alice))

	_, err = m.Lookup(ctx, "Bob")
	assert.ErrorIs(t, err, domain.ErrUnknownParty)

	all, err := m.Parties(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
