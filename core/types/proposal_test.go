package types

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func amount(n uint64) *uint256.Int { return uint256.NewInt(n) }

func TestProposalContentAddressing(t *testing.T) {
	key := testKey(t)
	id := key.PubKey().Address().String()

	a, err := NewProposal([]byte(`{"k":"v"}`), id, key, 1700000000)
	require.NoError(t, err)
	b, err := NewProposal([]byte(`{"k":"v"}`), id, key, 1700000042)
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)

	c, err := NewProposal([]byte(`{"k":"other"}`), id, key, 1700000000)
	require.NoError(t, err)
	require.NotEqual(t, a.ID, c.ID)
}

func TestProposalVerify(t *testing.T) {
	key := testKey(t)
	p, err := NewProposal([]byte("payload"), key.PubKey().Address().String(), key, 1700000000)
	require.NoError(t, err)
	require.NoError(t, p.Verify())

	tampered := *p
	tampered.Content = []byte("other payload")
	require.Error(t, tampered.Verify())
}

func TestProposalWireRoundTrip(t *testing.T) {
	key := testKey(t)
	p, err := NewProposal([]byte(`[{"a":1}]`), key.PubKey().Address().String(), key, 1700000000)
	require.NoError(t, err)

	wire, err := p.MarshalBinary()
	require.NoError(t, err)

	decoded := &Proposal{}
	require.NoError(t, decoded.UnmarshalBinary(wire))
	require.Equal(t, p.ID, decoded.ID)
	require.Equal(t, p.Content, decoded.Content)
	require.Equal(t, p.Hash, decoded.Hash)
	require.NoError(t, decoded.Verify())
	require.True(t, p.Equal(decoded))
}

func TestLedgerEntryBalanceCheck(t *testing.T) {
	balanced := NewLedgerEntry("e1", []Leg{
		{Account: "liability:wallet:alice", Asset: "wallet:mint/ATLAS", Kind: Debit, Amount: amount(100)},
		{Account: "liability:wallet:bob", Asset: "wallet:mint/ATLAS", Kind: Credit, Amount: amount(100)},
	}, "h1", 1, 1700000000, "")
	require.NoError(t, balanced.CheckBalanced())

	unbalanced := NewLedgerEntry("e2", []Leg{
		{Account: "liability:wallet:alice", Asset: "wallet:mint/ATLAS", Kind: Debit, Amount: amount(100)},
		{Account: "liability:wallet:bob", Asset: "wallet:mint/ATLAS", Kind: Credit, Amount: amount(99)},
	}, "h2", 1, 1700000000, "")
	require.Error(t, unbalanced.CheckBalanced())

	// Balance holds per asset, not across assets.
	crossAsset := NewLedgerEntry("e3", []Leg{
		{Account: "liability:wallet:alice", Asset: "a/X", Kind: Debit, Amount: amount(100)},
		{Account: "liability:wallet:bob", Asset: "b/Y", Kind: Credit, Amount: amount(100)},
	}, "h3", 1, 1700000000, "")
	require.Error(t, crossAsset.CheckBalanced())
}

func TestWalletAccountWrapping(t *testing.T) {
	require.Equal(t, "liability:wallet:nbex1abc", WalletAccount("nbex1abc"))
	require.Equal(t, "equity:fees", WalletAccount("equity:fees"))
	require.Equal(t, "liability:wallet:mint", WalletAccount("mint"))
}
