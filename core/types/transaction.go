package types

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	coreerrors "atlaschain/core/errors"
	"atlaschain/crypto"
)

// MaxMemoBytes bounds the free-form memo carried by a transaction.
const MaxMemoBytes = 256

var (
	ErrFeePayerSignatureMissing = errors.New("transaction missing fee payer signature")
	ErrFeePayerSignatureInvalid = errors.New("invalid fee payer signature")
)

// Transaction is a single double-entry transfer order between two accounts.
// Amounts are unsigned 128-bit integers denominated in the named asset.
type Transaction struct {
	From      string       `json:"from"`
	To        string       `json:"to"`
	Amount    *uint256.Int `json:"amount"`
	Asset     string       `json:"asset"`
	Nonce     uint64       `json:"nonce"`
	Timestamp uint64       `json:"timestamp"`
	Memo      string       `json:"memo,omitempty"`
}

// SigningBytes returns the canonical binary encoding of the seven transaction
// fields in declared order. Every node must agree on these bytes bit-exactly.
func (tx *Transaction) SigningBytes() []byte {
	w := &binWriter{}
	w.writeString(tx.From)
	w.writeString(tx.To)
	w.writeAmount(tx.Amount)
	w.writeString(tx.Asset)
	w.writeUint64(tx.Nonce)
	w.writeUint64(tx.Timestamp)
	if tx.Memo != "" {
		w.writeByte(1)
		w.writeString(tx.Memo)
	} else {
		w.writeByte(0)
	}
	return w.bytes()
}

// SignedTransaction couples a transaction with the sender's authenticity
// proof and an optional delegated fee payer co-signature over the same bytes.
type SignedTransaction struct {
	Transaction Transaction `json:"transaction"`
	Signature   []byte      `json:"signature"`
	PublicKey   []byte      `json:"public_key"`

	FeePayer          string `json:"fee_payer,omitempty"`
	FeePayerSignature []byte `json:"fee_payer_signature,omitempty"`
	FeePayerPublicKey []byte `json:"fee_payer_public_key,omitempty"`
}

// NewSignedTransaction signs tx with key and fills in the derived sender
// address when absent.
func NewSignedTransaction(tx Transaction, key *crypto.PrivateKey) (*SignedTransaction, error) {
	if key == nil {
		return nil, errors.New("nil signing key")
	}
	if tx.From == "" {
		tx.From = key.PubKey().Address().String()
	}
	st := &SignedTransaction{Transaction: tx, PublicKey: key.PubKey().Bytes()}
	st.Signature = key.Sign(st.Transaction.SigningBytes())
	return st, nil
}

// AttachFeePayer co-signs the transaction's signing bytes with the delegated
// fee payer key.
func (st *SignedTransaction) AttachFeePayer(key *crypto.PrivateKey) error {
	if key == nil {
		return errors.New("nil fee payer key")
	}
	st.FeePayer = key.PubKey().Address().String()
	st.FeePayerPublicKey = key.PubKey().Bytes()
	st.FeePayerSignature = key.Sign(st.Transaction.SigningBytes())
	return nil
}

// Hash returns the idempotency hash for the transaction: SHA-256 over the
// canonical signing bytes followed by the sender signature, hex encoded.
func (st *SignedTransaction) Hash() string {
	h := sha256.New()
	h.Write(st.Transaction.SigningBytes())
	h.Write(st.Signature)
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateStateless performs every check that needs no account state:
// amount and memo bounds, key and signature shapes, sender address
// derivation, destination format and both Ed25519 verifications.
func (st *SignedTransaction) ValidateStateless() error {
	tx := &st.Transaction

	if tx.Amount == nil || tx.Amount.IsZero() {
		return fmt.Errorf("%w: transaction amount must be greater than 0", coreerrors.ErrInvalidPayload)
	}
	if tx.Amount.BitLen() > 128 {
		return fmt.Errorf("%w: transaction amount exceeds 128 bits", coreerrors.ErrInvalidPayload)
	}
	if len(tx.Memo) > MaxMemoBytes {
		return fmt.Errorf("%w: memo too long (max %d bytes)", coreerrors.ErrInvalidPayload, MaxMemoBytes)
	}
	if len(st.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key must be %d bytes", coreerrors.ErrInvalidPayload, ed25519.PublicKeySize)
	}
	if len(st.Signature) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signature must be %d bytes", coreerrors.ErrInvalidPayload, ed25519.SignatureSize)
	}

	expectedFrom, err := crypto.AddressFromPubKey(st.PublicKey, crypto.ExposedPrefix)
	if err != nil {
		return fmt.Errorf("%w: invalid sender public key: %v", coreerrors.ErrInvalidPayload, err)
	}
	if tx.From != expectedFrom.String() {
		return fmt.Errorf("%w: 'from' must be %s, got %s", coreerrors.ErrInvalidPayload, expectedFrom, tx.From)
	}

	if !strings.HasPrefix(tx.To, "system:") && tx.To != "mint" {
		if _, err := crypto.DecodeAddress(tx.To); err != nil {
			return fmt.Errorf("%w: invalid 'to' address %q: %v", coreerrors.ErrInvalidPayload, tx.To, err)
		}
	}

	msg := tx.SigningBytes()
	if !crypto.VerifyBytes(st.PublicKey, msg, st.Signature) {
		return fmt.Errorf("%w: sender signature does not verify", coreerrors.ErrInvalidSignature)
	}

	if st.FeePayer != "" {
		if len(st.FeePayerPublicKey) != ed25519.PublicKeySize || len(st.FeePayerSignature) != ed25519.SignatureSize {
			return fmt.Errorf("%w: %v", coreerrors.ErrInvalidSignature, ErrFeePayerSignatureMissing)
		}
		payerAddr, err := crypto.AddressFromPubKey(st.FeePayerPublicKey, crypto.ExposedPrefix)
		if err != nil || st.FeePayer != payerAddr.String() {
			return fmt.Errorf("%w: %v", coreerrors.ErrInvalidSignature, ErrFeePayerSignatureInvalid)
		}
		if !crypto.VerifyBytes(st.FeePayerPublicKey, msg, st.FeePayerSignature) {
			return fmt.Errorf("%w: %v", coreerrors.ErrInvalidSignature, ErrFeePayerSignatureInvalid)
		}
	}
	return nil
}

// FeePayerAccount returns the address that settles the fee: the delegated
// payer when present, the sender otherwise.
func (st *SignedTransaction) FeePayerAccount() string {
	if st.FeePayer != "" {
		return st.FeePayer
	}
	return st.Transaction.From
}
