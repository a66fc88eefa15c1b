package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/attachment"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/contract"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

type node struct {
	party domain.Party
	keys  *LocalKeyManager
}

func newNode(t *testing.T, name string) node {
	t.Helper()
	km, err := NewKeyManagerFromSeed(name)
	require.NoError(t, err)
	return node{party: domain.Party{Name: name, OwningKey: km.PublicKey()}, keys: km}
}

type env struct {
	alice, bob node
	notary     *NotaryService
	index      *attachment.MemoryIndex
	attID      domain.SecureHash
}

func newEnv(t *testing.T) env {
	t.Helper()
	nk, err := GenerateKeyManager()
	require.NoError(t, err)
	idx := attachment.NewMemoryIndex()
	data, err := attachment.Wrap("whitelist.csv", []byte("valid_messages\nhello\nhi\n"))
	require.NoError(t, err)
	id, err := idx.Store(context.Background(), bytes.NewReader(data), "test", "whitelist.csv")
	require.NoError(t, err)
	return env{
		alice:  newNode(t, "Alice"),
		bob:    newNode(t, "Bob"),
		notary: NewNotaryService("Notary", nk, NewMemoryUniqueness()),
		index:  idx,
		attID:  id,
	}
}

func (e env) tx(inputs []domain.StateRef, msg domain.MessageState, cmd domain.Command) domain.WireTransaction {
	return domain.WireTransaction{
		Inputs:  inputs,
		Outputs: []domain.TransactionState{{Data: msg, Contract: contract.MessageContractID, Notary: e.notary.Identity()}},
		Commands: []domain.CommandWithSigners{{
			Value:   cmd,
			Signers: []ed25519.PublicKey{e.alice.party.OwningKey, e.bob.party.OwningKey},
		}},
		Attachments: []domain.SecureHash{e.attID},
		Notary:      e.notary.Identity(),
		Salt:        string(domain.NewUniqueIdentifier()),
	}
}

func (e env) signBoth(t *testing.T, wtx domain.WireTransaction) *domain.SignedTransaction {
	t.Helper()
	ctx := context.Background()
	stx := &domain.SignedTransaction{Tx: wtx}
	for _, n := range []node{e.alice, e.bob} {
		sig, err := n.keys.Sign(ctx, stx.ID())
		require.NoError(t, err)
		stx = stx.WithSignature(sig)
	}
	return stx
}

func (e env) notarise(t *testing.T, stx *domain.SignedTransaction) *domain.SignedTransaction {
	t.Helper()
	sig, err := e.notary.Notarise(context.Background(), stx)
	require.NoError(t, err)
	return stx.WithSignature(sig)
}

func TestKeyManagerFromSeedIsStable(t *testing.T) {
	a, err := NewKeyManagerFromSeed("alice")
	require.NoError(t, err)
	b, err := NewKeyManagerFromSeed("alice")
	require.NoError(t, err)
	assert.True(t, a.PublicKey().Equal(b.PublicKey()))

	_, err = NewKeyManagerFromSeed("")
	assert.Error(t, err)
}

func TestNotary_RequiresParticipantSignatures(t *testing.T) {
	e := newEnv(t)
	msg, err := domain.NewMessage(e.alice.party, e.bob.party, "hello")
	require.NoError(t, err)

	stx := &domain.SignedTransaction{Tx: e.tx(nil, msg, domain.Send(e.attID))}
	_, err = e.notary.Notarise(context.Background(), stx)
	assert.ErrorIs(t, err, domain.ErrMissingSignatures)
}

func TestNotary_IdempotentForSameTransaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	msg, err := domain.NewMessage(e.alice.party, e.bob.party, "hello")
	require.NoError(t, err)
	stx := e.signBoth(t, e.tx([]domain.StateRef{{TxID: domain.SHA256([]byte("x"))}}, msg, domain.Reply(e.attID)))

	_, err = e.notary.Notarise(ctx, stx)
	require.NoError(t, err)
	_, err = e.notary.Notarise(ctx, stx)
	assert.NoError(t, err)
}

func TestNotary_ConcurrentDoubleSpend(t *testing.T) {
	e := newEnv(t)
	msg, err := domain.NewMessage(e.alice.party, e.bob.party, "hello")
	require.NoError(t, err)
	input := domain.StateRef{TxID: domain.SHA256([]byte("prev")), Index: 0}

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		stx := e.signBoth(t, e.tx([]domain.StateRef{input}, msg.ReplyWith("hi"), domain.Reply(e.attID)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.notary.Notarise(context.Background(), stx)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			var nce *domain.NotaryConflictError
			if assert.ErrorAs(t, err, &nce) {
				conflicts++
				assert.Contains(t, nce.Conflicts, input)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, conflicts)
}

func TestVault_RecordConsumesInputs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	v := NewMemoryVault()

	msg, err := domain.NewMessage(e.alice.party, e.bob.party, "hello")
	require.NoError(t, err)
	first := e.notarise(t, e.signBoth(t, e.tx(nil, msg, domain.Send(e.attID))))
	require.NoError(t, v.Record(ctx, first))
	require.NoError(t, v.Record(ctx, first))

	latest, err := v.LatestByLinearID(ctx, msg.LinearID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateRef{TxID: first.ID(), Index: 0}, latest.Ref)

	second := e.notarise(t, e.signBoth(t, e.tx([]domain.StateRef{latest.Ref}, msg.ReplyWith("hi"), domain.Reply(e.attID))))
	require.NoError(t, v.Record(ctx, second))

	live, err := v.Unconsumed(ctx)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "hi", live[0].State.Data.Contents)

	consumed, err := v.StateAndRef(ctx, latest.Ref)
	require.NoError(t, err)
	assert.Equal(t, "hello", consumed.State.Data.Contents)

	// The notary would refuse this one; the vault must too.
	third := e.signBoth(t, e.tx([]domain.StateRef{latest.Ref}, msg.ReplyWith("again"), domain.Reply(e.attID)))
	assert.ErrorIs(t, v.Record(ctx, third), domain.ErrStateConsumed)
	_, err = v.Transaction(ctx, third.ID())
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	got, err := v.Transaction(ctx, second.ID())
	require.NoError(t, err)
	assert.Equal(t, second.ID(), got.ID())

	_, err = v.Transaction(ctx, domain.SHA256([]byte("none")))
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestVerifier(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	vault := NewMemoryVault()
	verifier := NewVerifier(vault, e.index, contract.NewRegistry())

	msg, err := domain.NewMessage(e.alice.party, e.bob.party, "hello")
	require.NoError(t, err)

	t.Run("valid send", func(t *testing.T) {
		wtx := e.tx(nil, msg, domain.Send(e.attID))
		assert.NoError(t, verifier.VerifyLocally(ctx, &wtx))
	})

	t.Run("not whitelisted", func(t *testing.T) {
		bad := msg
		bad.Contents = "nope"
		wtx := e.tx(nil, bad, domain.Send(e.attID))
		assert.ErrorIs(t, verifier.VerifyLocally(ctx, &wtx), domain.ErrNotInWhitelist)
	})

	t.Run("reply resolves input from dependency", func(t *testing.T) {
		first := e.notarise(t, e.signBoth(t, e.tx(nil, msg, domain.Send(e.attID))))
		ref := domain.StateRef{TxID: first.ID(), Index: 0}
		wtx := e.tx([]domain.StateRef{ref}, msg.ReplyWith("hi"), domain.Reply(e.attID))

		assert.ErrorIs(t, verifier.VerifyLocally(ctx, &wtx), domain.ErrStateNotFound)
		assert.NoError(t, verifier.VerifyLocally(ctx, &wtx, first))
	})

	t.Run("signatures", func(t *testing.T) {
		wtx := e.tx(nil, msg, domain.Send(e.attID))
		stx := &domain.SignedTransaction{Tx: wtx}
		sig, err := e.alice.keys.Sign(ctx, stx.ID())
		require.NoError(t, err)
		stx = stx.WithSignature(sig)

		allowed := []ed25519.PublicKey{e.bob.party.OwningKey, e.notary.Identity().OwningKey}
		assert.NoError(t, verifier.VerifySigned(ctx, stx, allowed))
		assert.ErrorIs(t, verifier.VerifySigned(ctx, stx, nil), domain.ErrMissingSignatures)
	})
}

func TestMemoryNetworkMap(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryNetworkMap()
	alice := newNode(t, "Alice").party

	require.NoError(t, m.Register(ctx, alice))
	got, err := m.Lookup(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, got.Equal(alice))

	_, err = m.Lookup(ctx, "Bob")
	assert.ErrorIs(t, err, domain.ErrUnknownParty)
	assert.Error(t, m.Register(ctx, domain.Party{Name: "x"}))
}
