package domain

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
)

// WireTransaction is the unsigned, serialisable form of a transaction. Its
// id is the SHA-256 of its JSON encoding; Salt keeps otherwise identical
// proposals distinct.
type WireTransaction struct {
	Inputs      []StateRef           `json:"inputs"`
	Outputs     []TransactionState   `json:"outputs"`
	Commands    []CommandWithSigners `json:"commands"`
	Attachments []SecureHash         `json:"attachments"`
	Notary      Party                `json:"notary"`
	Salt        string               `json:"salt"`
}

func (tx *WireTransaction) ID() SecureHash {
	// Encoding cannot fail: every field is a plain value type.
	b, _ := json.Marshal(tx)
	return SHA256(b)
}

// RequiredSigningKeys is the de-duplicated union of all command signers.
func (tx *WireTransaction) RequiredSigningKeys() []ed25519.PublicKey {
	var keys []ed25519.PublicKey
	for _, c := range tx.Commands {
		for _, k := range c.Signers {
			if !ContainsKey(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Participants of every output, de-duplicated by name.
func (tx *WireTransaction) Participants() []Party {
	seen := make(map[string]struct{})
	var out []Party
	for _, o := range tx.Outputs {
		for _, p := range o.Data.Participants() {
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// TransactionSignature is an ed25519 signature over a transaction id.
type TransactionSignature struct {
	By    ed25519.PublicKey `json:"by"`
	Bytes []byte            `json:"bytes"`
}

func (s TransactionSignature) Verify(id SecureHash) error {
	if len(s.By) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: malformed public key", ErrInvalidSignature)
	}
	if !ed25519.Verify(s.By, []byte(id), s.Bytes) {
		return fmt.Errorf("%w: by %s over %s", ErrInvalidSignature, KeyString(s.By), id.Short())
	}
	return nil
}

type SignedTransaction struct {
	Tx   WireTransaction        `json:"tx"`
	Sigs []TransactionSignature `json:"sigs"`
}

func (s *SignedTransaction) ID() SecureHash { return s.Tx.ID() }

// WithSignature returns a copy carrying sig in addition to the existing ones.
func (s *SignedTransaction) WithSignature(sig TransactionSignature) *SignedTransaction {
	sigs := make([]TransactionSignature, 0, len(s.Sigs)+1)
	sigs = append(sigs, s.Sigs...)
	sigs = append(sigs, sig)
	return &SignedTransaction{Tx: s.Tx, Sigs: sigs}
}

// SignedBy reports whether a signature by k is present. Validity is
// checked separately.
func (s *SignedTransaction) SignedBy(k ed25519.PublicKey) bool {
	for _, sig := range s.Sigs {
		if keysEqual(sig.By, k) {
			return true
		}
	}
	return false
}

// VerifySignaturesExcept checks every attached signature and that all
// required signers except allowedMissing have signed. The notary key is
// always required.
func (s *SignedTransaction) VerifySignaturesExcept(allowedMissing ...ed25519.PublicKey) error {
	id := s.ID()
	for _, sig := range s.Sigs {
		if err := sig.Verify(id); err != nil {
			return err
		}
	}

	required := append(s.Tx.RequiredSigningKeys(), s.Tx.Notary.OwningKey)
	var missing []string
	for _, k := range required {
		if ContainsKey(allowedMissing, k) || s.SignedBy(k) {
			continue
		}
		missing = append(missing, KeyString(k))
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: transaction %s missing %v", ErrMissingSignatures, id.Short(), missing)
	}
	return nil
}

func (s *SignedTransaction) VerifyRequiredSignatures() error {
	return s.VerifySignaturesExcept()
}

func (s *SignedTransaction) Encode() ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSignedTransaction(b []byte) (*SignedTransaction, error) {
	var stx SignedTransaction
	if err := json.Unmarshal(b, &stx); err != nil {
		return nil, fmt.Errorf("failed to decode signed transaction: %w", err)
	}
	return &stx, nil
}

// LedgerTransaction is a WireTransaction with its inputs and attachments
// resolved. Contracts verify this form.
type LedgerTransaction struct {
	ID          SecureHash           `json:"id"`
	Inputs      []StateAndRef        `json:"inputs"`
	Outputs     []TransactionState   `json:"outputs"`
	Commands    []CommandWithSigners `json:"commands"`
	Attachments []Attachment         `json:"attachments"`
	Notary      Party                `json:"notary"`
}

func (l *LedgerTransaction) Attachment(id SecureHash) (*Attachment, bool) {
	for i := range l.Attachments {
		if l.Attachments[i].ID == id {
			return &l.Attachments[i], true
		}
	}
	return nil, false
}
