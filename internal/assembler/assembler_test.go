package assembler

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/attachment"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/contract"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) ResolveByFilename(ctx context.Context, filename string) (domain.SecureHash, error) {
	args := m.Called(ctx, filename)
	return args.Get(0).(domain.SecureHash), args.Error(1)
}

func (m *MockIndex) ResolveByID(ctx context.Context, id domain.SecureHash) (*domain.Attachment, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*domain.Attachment)
	return a, args.Error(1)
}

func (m *MockIndex) Store(ctx context.Context, r io.Reader, uploader, filename string) (domain.SecureHash, error) {
	args := m.Called(ctx, uploader, filename)
	return args.Get(0).(domain.SecureHash), args.Error(1)
}

func parties(t *testing.T) (domain.Party, domain.Party, domain.Party) {
	t.Helper()
	mk := func(name string) domain.Party {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		return domain.Party{Name: name, OwningKey: pub}
	}
	return mk("Alice"), mk("Bob"), mk("Notary")
}

func TestAssemble_Send(t *testing.T) {
	ctx := context.Background()
	alice, bob, notary := parties(t)
	idx := attachment.NewMemoryIndex()
	data, err := attachment.Wrap("whitelist.csv", []byte("valid_messages\nhello\n"))
	require.NoError(t, err)
	id, err := idx.Store(ctx, bytes.NewReader(data), "alice", "whitelist.csv")
	require.NoError(t, err)

	msg, err := domain.NewMessage(alice, bob, "hello")
	require.NoError(t, err)

	tx, err := New(idx).Assemble(ctx, Proposal{Message: msg, AttachmentFilename: "whitelist.csv"}, notary)
	require.NoError(t, err)

	assert.Empty(t, tx.Inputs)
	require.Len(t, tx.Outputs, 1)
	assert.Equal(t, contract.MessageContractID, tx.Outputs[0].Contract)
	assert.Equal(t, notary, tx.Notary)
	require.Len(t, tx.Commands, 1)
	assert.Equal(t, domain.CommandSend, tx.Commands[0].Value.Kind)
	assert.Equal(t, id, tx.Commands[0].Value.AttachmentID)
	assert.Equal(t, []domain.SecureHash{id}, tx.Attachments)
	assert.True(t, domain.ContainsKey(tx.Commands[0].Signers, alice.OwningKey))
	assert.True(t, domain.ContainsKey(tx.Commands[0].Signers, bob.OwningKey))
}

func TestAssemble_Reply(t *testing.T) {
	ctx := context.Background()
	alice, bob, notary := parties(t)
	attID := domain.SHA256([]byte("wl"))

	idx := new(MockIndex)
	idx.On("ResolveByFilename", mock.Anything, "whitelist.csv").Return(attID, nil)

	first, err := domain.NewMessage(alice, bob, "hello")
	require.NoError(t, err)
	prev := &domain.StateAndRef{
		State: domain.TransactionState{Data: first, Contract: contract.MessageContractID, Notary: notary},
		Ref:   domain.StateRef{TxID: domain.SHA256([]byte("prev")), Index: 0},
	}

	tx, err := New(idx).Assemble(ctx, Proposal{
		Message:            first.ReplyWith("hi"),
		Predecessor:        prev,
		AttachmentFilename: "whitelist.csv",
	}, notary)
	require.NoError(t, err)

	assert.Equal(t, []domain.StateRef{prev.Ref}, tx.Inputs)
	assert.Equal(t, domain.CommandReply, tx.Commands[0].Value.Kind)
	assert.Equal(t, bob, tx.Outputs[0].Data.Sender)
	idx.AssertExpectations(t)
}

func TestAssemble_Errors(t *testing.T) {
	ctx := context.Background()
	alice, bob, notary := parties(t)
	msg, err := domain.NewMessage(alice, bob, "hello")
	require.NoError(t, err)

	t.Run("attachment resolution", func(t *testing.T) {
		_, err := New(attachment.NewMemoryIndex()).Assemble(ctx, Proposal{Message: msg, AttachmentFilename: "missing.csv"}, notary)
		assert.ErrorIs(t, err, domain.ErrAttachmentResolution)
	})

	t.Run("reply changes thread", func(t *testing.T) {
		other, err := domain.NewMessage(alice, bob, "x")
		require.NoError(t, err)
		prev := &domain.StateAndRef{State: domain.TransactionState{Data: other}}
		_, err = New(attachment.NewMemoryIndex()).Assemble(ctx, Proposal{Message: msg, Predecessor: prev}, notary)
		assert.ErrorIs(t, err, domain.ErrInvalidMessage)
	})

	t.Run("missing notary", func(t *testing.T) {
		_, err := New(attachment.NewMemoryIndex()).Assemble(ctx, Proposal{Message: msg}, domain.Party{})
		assert.ErrorIs(t, err, domain.ErrInvalidMessage)
	})
}

func TestAssemble_DistinctIDs(t *testing.T) {
	ctx := context.Background()
	alice, bob, notary := parties(t)
	idx := new(MockIndex)
	idx.On("ResolveByFilename", mock.Anything, "w").Return(domain.SHA256([]byte("w")), nil)
	msg, err := domain.NewMessage(alice, bob, "hello")
	require.NoError(t, err)

	a, err := New(idx).Assemble(ctx, Proposal{Message: msg, AttachmentFilename: "w"}, notary)
	require.NoError(t, err)
	b, err := New(idx).Assemble(ctx, Proposal{Message: msg, AttachmentFilename: "w"}, notary)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
}
