package ledger

import (
	"encoding/json"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"atlaschain/core/types"
	"atlaschain/crypto"
)

const issuanceReserve = 1_000_000

func testKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func walletOf(key *crypto.PrivateKey) string {
	return types.WalletAccount(key.PubKey().Address().String())
}

func signedTransfer(t *testing.T, sender *crypto.PrivateKey, to string, n, nonce uint64) *types.SignedTransaction {
	t.Helper()
	st, err := types.NewSignedTransaction(types.Transaction{
		To:        to,
		Amount:    uint256.NewInt(n),
		Asset:     AtlasAssetID,
		Nonce:     nonce,
		Timestamp: 1700000000,
	}, sender)
	require.NoError(t, err)
	return st
}

func batchProposal(t *testing.T, proposer *crypto.PrivateKey, height uint64, txs ...*types.SignedTransaction) *types.Proposal {
	t.Helper()
	content, err := json.Marshal(txs)
	require.NoError(t, err)
	p, err := types.NewProposal(content, proposer.PubKey().Address().String(), proposer, 1700000000)
	require.NoError(t, err)
	p.Height = height
	return p
}

func fundedEngine(t *testing.T, accounts map[string]uint64) (*Engine, *State) {
	t.Helper()
	state := NewState()
	state.Credit(IssuanceAccount, AtlasAssetID, uint256.NewInt(issuanceReserve))
	for account, n := range accounts {
		state.Credit(account, AtlasAssetID, uint256.NewInt(n))
	}
	return NewEngine(state, nil, nil, nil), state
}

func balanceOf(t *testing.T, state *State, account string) *uint256.Int {
	t.Helper()
	acct, ok := state.Account(account)
	if !ok {
		return uint256.NewInt(0)
	}
	return acct.BalanceOf(AtlasAssetID)
}

func TestBasicTransfer(t *testing.T) {
	alice, bob, proposer := testKey(t), testKey(t), testKey(t)
	engine, state := fundedEngine(t, map[string]uint64{walletOf(alice): 100000})

	st := signedTransfer(t, alice, bob.PubKey().Address().String(), 1000, 1)
	fee := Fee(&st.Transaction).Uint64()
	reward := fee * 9000 / 10000
	system := fee - reward

	p := batchProposal(t, proposer, 1, st)
	require.NoError(t, engine.Apply(p, false))

	// Alice pays amount plus fee and, as the batch's fee payer, collects
	// the issuance cashback.
	require.Equal(t, 100000-1000-fee+feePayerShare, balanceOf(t, state, walletOf(alice)).Uint64())
	require.Equal(t, uint64(1000), balanceOf(t, state, walletOf(bob)).Uint64())
	require.Equal(t, reward+proposerShare, balanceOf(t, state, walletOf(proposer)).Uint64())
	require.Equal(t, system, balanceOf(t, state, FeesAccount).Uint64())
	require.Equal(t, uint64(treasuryShare), balanceOf(t, state, TreasuryAccount).Uint64())
	require.Equal(t, uint64(issuanceReserve-issuanceAmount), balanceOf(t, state, IssuanceAccount).Uint64())
	require.Equal(t, uint64(1), state.Nonce(walletOf(alice)))
}

func TestNonceGapRejected(t *testing.T) {
	alice, bob, proposer := testKey(t), testKey(t), testKey(t)
	engine, state := fundedEngine(t, map[string]uint64{walletOf(alice): 100000})

	// Nonce 2 before nonce 1: the proposal commits but the transfer is
	// rejected and Alice's balance is untouched.
	gap := signedTransfer(t, alice, bob.PubKey().Address().String(), 1000, 2)
	require.NoError(t, engine.Apply(batchProposal(t, proposer, 1, gap), false))
	require.Equal(t, uint64(100000), balanceOf(t, state, walletOf(alice)).Uint64())
	require.Equal(t, uint64(0), state.Nonce(walletOf(alice)))

	// In-order resubmission applies.
	first := signedTransfer(t, alice, bob.PubKey().Address().String(), 1000, 1)
	require.NoError(t, engine.Apply(batchProposal(t, proposer, 2, first), false))
	require.Equal(t, uint64(1), state.Nonce(walletOf(alice)))
	require.Equal(t, uint64(1000), balanceOf(t, state, walletOf(bob)).Uint64())
}

func TestNonceReuseRejected(t *testing.T) {
	alice, bob, proposer := testKey(t), testKey(t), testKey(t)
	engine, state := fundedEngine(t, map[string]uint64{walletOf(alice): 100000})

	require.NoError(t, engine.Apply(batchProposal(t, proposer, 1,
		signedTransfer(t, alice, bob.PubKey().Address().String(), 1000, 1)), false))

	replay := signedTransfer(t, alice, bob.PubKey().Address().String(), 500, 1)
	require.NoError(t, engine.Apply(batchProposal(t, proposer, 2, replay), false))
	require.Equal(t, uint64(1000), balanceOf(t, state, walletOf(bob)).Uint64())
	require.Equal(t, uint64(1), state.Nonce(walletOf(alice)))
}

func TestFeeDelegation(t *testing.T) {
	alice, bob, payer, proposer := testKey(t), testKey(t), testKey(t), testKey(t)
	engine, state := fundedEngine(t, map[string]uint64{
		walletOf(alice): 100000,
		walletOf(payer): 50000,
	})

	st := signedTransfer(t, alice, bob.PubKey().Address().String(), 1000, 1)
	require.NoError(t, st.AttachFeePayer(payer))
	fee := Fee(&st.Transaction).Uint64()

	require.NoError(t, engine.Apply(batchProposal(t, proposer, 1, st), false))

	// Alice's balance decreases by the amount only; the delegated payer
	// settles the fee and collects the issuance cashback.
	require.Equal(t, uint64(100000-1000), balanceOf(t, state, walletOf(alice)).Uint64())
	require.Equal(t, 50000-fee+uint64(feePayerShare), balanceOf(t, state, walletOf(payer)).Uint64())
	require.Equal(t, uint64(1000), balanceOf(t, state, walletOf(bob)).Uint64())
	require.Equal(t, fee*9000/10000+proposerShare, balanceOf(t, state, walletOf(proposer)).Uint64())
	require.Equal(t, fee-fee*9000/10000, balanceOf(t, state, FeesAccount).Uint64())
}

func TestInsufficientFundsRejected(t *testing.T) {
	alice, bob, proposer := testKey(t), testKey(t), testKey(t)
	engine, state := fundedEngine(t, map[string]uint64{walletOf(alice): 100})

	st := signedTransfer(t, alice, bob.PubKey().Address().String(), 5000, 1)
	require.NoError(t, engine.Apply(batchProposal(t, proposer, 1, st), false))
	require.Equal(t, uint64(100), balanceOf(t, state, walletOf(alice)).Uint64())
	require.Equal(t, uint64(0), balanceOf(t, state, walletOf(bob)).Uint64())
	require.Equal(t, uint64(0), state.Nonce(walletOf(alice)))
}

func TestRejectedSiblingDoesNotPoisonBatch(t *testing.T) {
	alice, carol, bob, proposer := testKey(t), testKey(t), testKey(t), testKey(t)
	engine, state := fundedEngine(t, map[string]uint64{
		walletOf(alice): 100000,
		walletOf(carol): 100000,
	})

	bad := signedTransfer(t, alice, bob.PubKey().Address().String(), 1000, 5) // nonce gap
	good := signedTransfer(t, carol, bob.PubKey().Address().String(), 700, 1)
	require.NoError(t, engine.Apply(batchProposal(t, proposer, 1, bad, good), false))

	require.Equal(t, uint64(100000), balanceOf(t, state, walletOf(alice)).Uint64())
	require.Equal(t, uint64(700), balanceOf(t, state, walletOf(bob)).Uint64())
	require.Equal(t, uint64(1), state.Nonce(walletOf(carol)))
}

func TestIssuanceTransferRequiresAdminKey(t *testing.T) {
	admin, alice, proposer := testKey(t), testKey(t), testKey(t)

	state := NewState()
	state.Credit(IssuanceAccount, AtlasAssetID, uint256.NewInt(issuanceReserve))
	state.Credit(walletOf(alice), AtlasAssetID, uint256.NewInt(100000))
	engine := NewEngine(state, nil, admin.PubKey().Bytes(), nil)

	// Unauthorized key cannot target the mint.
	forged := signedTransfer(t, alice, "mint", 500, 1)
	require.NoError(t, engine.Apply(batchProposal(t, proposer, 1, forged), false))
	require.Equal(t, uint64(0), balanceOf(t, state, "liability:wallet:mint").Uint64())

	// The genesis admin draws on the issuance reserve; its wallet needs
	// funds only for the fee.
	state.Credit(walletOf(admin), AtlasAssetID, uint256.NewInt(100000))
	mint := signedTransfer(t, admin, "mint", 500, 1)
	fee := Fee(&mint.Transaction).Uint64()
	before := balanceOf(t, state, IssuanceAccount).Uint64()
	require.NoError(t, engine.Apply(batchProposal(t, proposer, 2, mint), false))
	require.Equal(t, uint64(500), balanceOf(t, state, "liability:wallet:mint").Uint64())
	require.Equal(t, before-500-issuanceAmount, balanceOf(t, state, IssuanceAccount).Uint64())
	require.Equal(t, 100000-fee+uint64(feePayerShare), balanceOf(t, state, walletOf(admin)).Uint64())
}

func TestSingleTransactionContent(t *testing.T) {
	alice, bob, proposer := testKey(t), testKey(t), testKey(t)
	engine, state := fundedEngine(t, map[string]uint64{walletOf(alice): 100000})

	st := signedTransfer(t, alice, bob.PubKey().Address().String(), 1000, 1)
	content, err := json.Marshal(st)
	require.NoError(t, err)
	p, err := types.NewProposal(content, proposer.PubKey().Address().String(), proposer, 1700000000)
	require.NoError(t, err)
	p.Height = 1

	require.NoError(t, engine.Apply(p, false))
	require.Equal(t, uint64(1000), balanceOf(t, state, walletOf(bob)).Uint64())
}

func TestUnparsableContentRejected(t *testing.T) {
	proposer := testKey(t)
	engine, state := fundedEngine(t, nil)

	p, err := types.NewProposal([]byte("opaque bytes"), proposer.PubKey().Address().String(), proposer, 1700000000)
	require.NoError(t, err)
	p.Height = 1
	require.Error(t, engine.Apply(p, false))
	// No issuance either: the proposal produced no entries at all.
	require.Equal(t, uint64(issuanceReserve), balanceOf(t, state, IssuanceAccount).Uint64())
}

func TestDeterministicReplay(t *testing.T) {
	alice, bob, proposer := testKey(t), testKey(t), testKey(t)

	var proposals []*types.Proposal
	proposals = append(proposals,
		batchProposal(t, proposer, 1, signedTransfer(t, alice, bob.PubKey().Address().String(), 1000, 1)),
		batchProposal(t, proposer, 2, signedTransfer(t, alice, bob.PubKey().Address().String(), 250, 2)),
	)

	run := func(dir string) (*State, *Journal) {
		journal, err := OpenJournal(dir)
		require.NoError(t, err)
		state := NewState()
		state.Credit(IssuanceAccount, AtlasAssetID, uint256.NewInt(issuanceReserve))
		state.Credit(walletOf(alice), AtlasAssetID, uint256.NewInt(100000))
		engine := NewEngine(state, journal, nil, nil)
		for _, p := range proposals {
			require.NoError(t, engine.Apply(p, true))
		}
		return state, journal
	}

	stateA, journalA := run(t.TempDir())
	stateB, journalB := run(t.TempDir())

	require.Equal(t, stateA.Root(), stateB.Root())

	for _, account := range stateA.Accounts() {
		entriesA, err := journalA.Read(account)
		require.NoError(t, err)
		entriesB, err := journalB.Read(account)
		require.NoError(t, err)
		require.Equal(t, entriesA, entriesB, "journal for %s", account)
	}
}
