package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVoteSigningBytesShape(t *testing.T) {
	key := testKey(t)
	voter := key.PubKey().Address().String()

	a := SignVote("prop-1", PhasePrepare, VoteYes, voter, 0, key)
	b := SignVote("prop-1", PhasePrepare, VoteYes, voter, 0, key)
	require.Equal(t, a.SigningBytes(), b.SigningBytes())

	// Each field shifts the canonical bytes.
	differing := []*VoteRecord{
		{ProposalID: "prop-2", Phase: PhasePrepare, Voter: voter, Vote: VoteYes, View: 0},
		{ProposalID: "prop-1", Phase: PhasePreCommit, Voter: voter, Vote: VoteYes, View: 0},
		{ProposalID: "prop-1", Phase: PhasePrepare, Voter: "other", Vote: VoteYes, View: 0},
		{ProposalID: "prop-1", Phase: PhasePrepare, Voter: voter, Vote: VoteNo, View: 0},
		{ProposalID: "prop-1", Phase: PhasePrepare, Voter: voter, Vote: VoteYes, View: 7},
	}
	for i, rec := range differing {
		require.NotEqual(t, a.SigningBytes(), rec.SigningBytes(), "case %d", i)
	}
}

func TestVoteRecordWireRoundTrip(t *testing.T) {
	key := testKey(t)
	voter := key.PubKey().Address().String()

	rec := SignVote("prop-1", PhaseCommit, VoteAbstain, voter, 3, key)
	require.True(t, rec.VerifySignature())

	wire, err := rec.MarshalBinary()
	require.NoError(t, err)

	decoded := &VoteRecord{}
	require.NoError(t, decoded.UnmarshalBinary(wire))
	require.Equal(t, rec, decoded)
	require.True(t, decoded.VerifySignature())
}

func TestVoteRecordRejectsTruncatedWire(t *testing.T) {
	key := testKey(t)
	rec := SignVote("prop-1", PhasePrepare, VoteYes, key.PubKey().Address().String(), 0, key)

	wire, err := rec.MarshalBinary()
	require.NoError(t, err)

	decoded := &VoteRecord{}
	require.Error(t, decoded.UnmarshalBinary(wire[:len(wire)-5]))
}

func TestPhaseOrdering(t *testing.T) {
	next, ok := PhasePrepare.Next()
	require.True(t, ok)
	require.Equal(t, PhasePreCommit, next)

	next, ok = PhasePreCommit.Next()
	require.True(t, ok)
	require.Equal(t, PhaseCommit, next)

	_, ok = PhaseCommit.Next()
	require.False(t, ok)
}
