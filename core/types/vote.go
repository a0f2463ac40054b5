package types

import (
	"fmt"

	"atlaschain/crypto"
)

// Vote is a validator's stance on a proposal within one phase.
type Vote uint8

const (
	VoteYes Vote = iota
	VoteNo
	VoteAbstain
)

func (v Vote) String() string {
	switch v {
	case VoteYes:
		return "Yes"
	case VoteNo:
		return "No"
	case VoteAbstain:
		return "Abstain"
	default:
		return fmt.Sprintf("Vote(%d)", uint8(v))
	}
}

// Valid reports whether v is a known vote value.
func (v Vote) Valid() bool {
	return v <= VoteAbstain
}

// Phase identifies one of the three voting stages a proposal passes in order.
type Phase uint8

const (
	PhasePrepare Phase = iota
	PhasePreCommit
	PhaseCommit
)

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "Prepare"
	case PhasePreCommit:
		return "PreCommit"
	case PhaseCommit:
		return "Commit"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// Next returns the phase that follows p. Commit has no successor.
func (p Phase) Next() (Phase, bool) {
	switch p {
	case PhasePrepare:
		return PhasePreCommit, true
	case PhasePreCommit:
		return PhaseCommit, true
	default:
		return p, false
	}
}

// VoteRecord is a signed vote as it travels between validators.
type VoteRecord struct {
	ProposalID string `json:"proposal_id"`
	Phase      Phase  `json:"phase"`
	Voter      string `json:"voter"`
	Vote       Vote   `json:"vote"`
	View       uint64 `json:"view"`
	Signature  []byte `json:"signature"`
	PublicKey  []byte `json:"public_key"`
}

// SigningBytes is the canonical binary of (proposal_id, vote, voter, phase,
// view) in that order. Implementations must agree on these bytes bit-exactly.
func (v *VoteRecord) SigningBytes() []byte {
	w := &binWriter{}
	w.writeString(v.ProposalID)
	w.writeByte(byte(v.Vote))
	w.writeString(v.Voter)
	w.writeByte(byte(v.Phase))
	w.writeUint64(v.View)
	return w.bytes()
}

// SignVote builds a signed vote record for the given proposal and phase.
func SignVote(proposalID string, phase Phase, vote Vote, voter string, view uint64, key *crypto.PrivateKey) *VoteRecord {
	rec := &VoteRecord{
		ProposalID: proposalID,
		Phase:      phase,
		Voter:      voter,
		Vote:       vote,
		View:       view,
		PublicKey:  key.PubKey().Bytes(),
	}
	rec.Signature = key.Sign(rec.SigningBytes())
	return rec
}

// VerifySignature checks the Ed25519 signature over the canonical bytes.
func (v *VoteRecord) VerifySignature() bool {
	return crypto.VerifyBytes(v.PublicKey, v.SigningBytes(), v.Signature)
}

// MarshalBinary encodes the vote record in the canonical wire form.
func (v *VoteRecord) MarshalBinary() ([]byte, error) {
	w := &binWriter{}
	w.writeString(v.ProposalID)
	w.writeByte(byte(v.Vote))
	w.writeString(v.Voter)
	w.writeByte(byte(v.Phase))
	w.writeUint64(v.View)
	w.writeBytes(v.Signature)
	w.writeBytes(v.PublicKey)
	return w.bytes(), nil
}

// UnmarshalBinary decodes a vote record from the canonical wire form.
func (v *VoteRecord) UnmarshalBinary(data []byte) error {
	r := newBinReader(data)
	v.ProposalID = r.readString()
	v.Vote = Vote(r.readByte())
	v.Voter = r.readString()
	v.Phase = Phase(r.readByte())
	v.View = r.readUint64()
	v.Signature = r.readBytes()
	v.PublicKey = r.readBytes()
	if err := r.finish(); err != nil {
		return fmt.Errorf("decode vote: %w", err)
	}
	if !v.Vote.Valid() {
		return fmt.Errorf("unknown vote value %d", v.Vote)
	}
	return nil
}

// ConsensusResult reports a phase outcome for one proposal.
type ConsensusResult struct {
	ProposalID string `json:"proposal_id"`
	Phase      Phase  `json:"phase"`
	Approved   bool   `json:"approved"`
	YesVotes   int    `json:"yes_votes"`
}
