package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"lukechampine.com/blake3"

	"atlaschain/crypto"
)

// Proposal is one atomically-committed consensus unit. Content is opaque to
// the consensus layer: by contract it holds either a single signed
// transaction or a JSON array of them.
type Proposal struct {
	ID                string `json:"id"`
	Height            uint64 `json:"height"`
	Content           []byte `json:"content"`
	Hash              string `json:"hash"`
	ProposerID        string `json:"proposer_id"`
	ProposerPublicKey []byte `json:"proposer_public_key"`
	Signature         []byte `json:"signature"`
	Timestamp         uint64 `json:"timestamp"`
}

// ContentID derives the content-addressed proposal id. Two proposals with
// identical content collapse onto the same id.
func ContentID(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// NewProposal assembles and signs a proposal for the given content.
func NewProposal(content []byte, proposerID string, key *crypto.PrivateKey, timestamp uint64) (*Proposal, error) {
	if key == nil {
		return nil, errors.New("nil proposer key")
	}
	p := &Proposal{
		ID:                ContentID(content),
		Content:           append([]byte(nil), content...),
		ProposerID:        proposerID,
		ProposerPublicKey: key.PubKey().Bytes(),
		Timestamp:         timestamp,
	}
	p.Hash = p.ComputeHash()
	p.Signature = key.Sign(p.SigningBytes())
	return p, nil
}

// SigningBytes is the canonical binary of (height, content, proposer_id,
// timestamp) in that order.
func (p *Proposal) SigningBytes() []byte {
	w := &binWriter{}
	w.writeUint64(p.Height)
	w.writeBytes(p.Content)
	w.writeString(p.ProposerID)
	w.writeUint64(p.Timestamp)
	return w.bytes()
}

// ComputeHash digests the authenticity fields of the proposal.
func (p *Proposal) ComputeHash() string {
	sum := sha256.Sum256(p.SigningBytes())
	return hex.EncodeToString(sum[:])
}

// Verify checks the content id, hash and proposer signature.
func (p *Proposal) Verify() error {
	if p.ID != ContentID(p.Content) {
		return errors.New("proposal id does not match content")
	}
	if p.Hash != p.ComputeHash() {
		return errors.New("proposal hash mismatch")
	}
	if !crypto.VerifyBytes(p.ProposerPublicKey, p.SigningBytes(), p.Signature) {
		return errors.New("invalid proposer signature")
	}
	return nil
}

// MarshalBinary encodes the proposal in the canonical wire form.
func (p *Proposal) MarshalBinary() ([]byte, error) {
	w := &binWriter{}
	w.writeString(p.ID)
	w.writeUint64(p.Height)
	w.writeBytes(p.Content)
	w.writeString(p.Hash)
	w.writeString(p.ProposerID)
	w.writeBytes(p.ProposerPublicKey)
	w.writeBytes(p.Signature)
	w.writeUint64(p.Timestamp)
	return w.bytes(), nil
}

// UnmarshalBinary decodes a proposal from the canonical wire form.
func (p *Proposal) UnmarshalBinary(data []byte) error {
	r := newBinReader(data)
	p.ID = r.readString()
	p.Height = r.readUint64()
	p.Content = r.readBytes()
	p.Hash = r.readString()
	p.ProposerID = r.readString()
	p.ProposerPublicKey = r.readBytes()
	p.Signature = r.readBytes()
	p.Timestamp = r.readUint64()
	if err := r.finish(); err != nil {
		return fmt.Errorf("decode proposal: %w", err)
	}
	return nil
}

// Equal reports whether two proposals carry the same identity and content.
func (p *Proposal) Equal(other *Proposal) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.ID == other.ID && bytes.Equal(p.Content, other.Content)
}
