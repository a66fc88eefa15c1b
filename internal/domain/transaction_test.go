package domain

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testIdentity struct {
	party Party
	priv  ed25519.PrivateKey
}

func newTestIdentity(t *testing.T, name string) testIdentity {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return testIdentity{party: Party{Name: name, OwningKey: pub}, priv: priv}
}

func (i testIdentity) sign(id SecureHash) TransactionSignature {
	return TransactionSignature{By: i.party.OwningKey, Bytes: ed25519.Sign(i.priv, []byte(id))}
}

func sampleTx(t *testing.T, alice, bob, notary testIdentity) WireTransaction {
	t.Helper()
	msg, err := NewMessage(alice.party, bob.party, "hello")
	require.NoError(t, err)
	return WireTransaction{
		Outputs: []TransactionState{{Data: msg, Contract: "c", Notary: notary.party}},
		Commands: []CommandWithSigners{{
			Value:   Send(SHA256([]byte("wl"))),
			Signers: []ed25519.PublicKey{alice.party.OwningKey, bob.party.OwningKey},
		}},
		Attachments: []SecureHash{SHA256([]byte("wl"))},
		Notary:      notary.party,
		Salt:        "s1",
	}
}

func TestWireTransaction_IDStableAcrossEncoding(t *testing.T) {
	alice, bob, notary := newTestIdentity(t, "Alice"), newTestIdentity(t, "Bob"), newTestIdentity(t, "Notary")
	stx := &SignedTransaction{Tx: sampleTx(t, alice, bob, notary)}

	raw, err := stx.Encode()
	require.NoError(t, err)
	decoded, err := DecodeSignedTransaction(raw)
	require.NoError(t, err)

	assert.Equal(t, stx.ID(), decoded.ID())
}

func TestWireTransaction_SaltChangesID(t *testing.T) {
	alice, bob, notary := newTestIdentity(t, "Alice"), newTestIdentity(t, "Bob"), newTestIdentity(t, "Notary")
	a := sampleTx(t, alice, bob, notary)
	b := a
	b.Salt = "s2"
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestSignedTransaction_Signatures(t *testing.T) {
	alice, bob, notary := newTestIdentity(t, "Alice"), newTestIdentity(t, "Bob"), newTestIdentity(t, "Notary")
	stx := &SignedTransaction{Tx: sampleTx(t, alice, bob, notary)}
	id := stx.ID()

	stx = stx.WithSignature(alice.sign(id))
	require.NoError(t, stx.VerifySignaturesExcept(bob.party.OwningKey, notary.party.OwningKey))

	err := stx.VerifySignaturesExcept(notary.party.OwningKey)
	assert.ErrorIs(t, err, ErrMissingSignatures)

	stx = stx.WithSignature(bob.sign(id)).WithSignature(notary.sign(id))
	assert.NoError(t, stx.VerifyRequiredSignatures())
}

func TestSignedTransaction_RejectsForgedSignature(t *testing.T) {
	alice, bob, notary := newTestIdentity(t, "Alice"), newTestIdentity(t, "Bob"), newTestIdentity(t, "Notary")
	stx := &SignedTransaction{Tx: sampleTx(t, alice, bob, notary)}

	forged := TransactionSignature{By: alice.party.OwningKey, Bytes: ed25519.Sign(bob.priv, []byte(stx.ID()))}
	stx = stx.WithSignature(forged)

	assert.ErrorIs(t, stx.VerifySignaturesExcept(bob.party.OwningKey, notary.party.OwningKey), ErrInvalidSignature)
}

func TestWireTransaction_RequiredSigningKeysDeduplicated(t *testing.T) {
	alice, bob, notary := newTestIdentity(t, "Alice"), newTestIdentity(t, "Bob"), newTestIdentity(t, "Notary")
	tx := sampleTx(t, alice, bob, notary)
	tx.Commands = append(tx.Commands, CommandWithSigners{
		Value:   Reply(""),
		Signers: []ed25519.PublicKey{alice.party.OwningKey},
	})

	keys := tx.RequiredSigningKeys()
	assert.Len(t, keys, 2)
	assert.Len(t, tx.Participants(), 2)
}
