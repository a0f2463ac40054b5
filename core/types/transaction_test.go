package types

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	coreerrors "atlaschain/core/errors"
	"atlaschain/crypto"
)

func testKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func testTransfer(t *testing.T, sender *crypto.PrivateKey, to string, amount, nonce uint64) *SignedTransaction {
	t.Helper()
	st, err := NewSignedTransaction(Transaction{
		To:        to,
		Amount:    uint256.NewInt(amount),
		Asset:     "wallet:mint/ATLAS",
		Nonce:     nonce,
		Timestamp: 1700000000,
	}, sender)
	require.NoError(t, err)
	return st
}

func TestSigningBytesDeterministic(t *testing.T) {
	sender := testKey(t)
	recipient := testKey(t).PubKey().Address().String()

	a := testTransfer(t, sender, recipient, 1000, 1)
	b := testTransfer(t, sender, recipient, 1000, 1)
	require.Equal(t, a.Transaction.SigningBytes(), b.Transaction.SigningBytes())
	require.Equal(t, a.Hash(), b.Hash())

	c := testTransfer(t, sender, recipient, 1000, 2)
	require.NotEqual(t, a.Transaction.SigningBytes(), c.Transaction.SigningBytes())
}

func TestSigningBytesCoverMemo(t *testing.T) {
	sender := testKey(t)
	recipient := testKey(t).PubKey().Address().String()

	plain := testTransfer(t, sender, recipient, 1, 1)
	withMemo := plain.Transaction
	withMemo.Memo = "invoice 42"
	require.NotEqual(t, plain.Transaction.SigningBytes(), withMemo.SigningBytes())
}

func TestValidateStateless(t *testing.T) {
	sender := testKey(t)
	recipient := testKey(t).PubKey().Address().String()

	st := testTransfer(t, sender, recipient, 1000, 1)
	require.NoError(t, st.ValidateStateless())
}

func TestValidateRejectsZeroAmount(t *testing.T) {
	sender := testKey(t)
	recipient := testKey(t).PubKey().Address().String()

	st, err := NewSignedTransaction(Transaction{
		To:        recipient,
		Amount:    uint256.NewInt(0),
		Asset:     "wallet:mint/ATLAS",
		Nonce:     1,
		Timestamp: 1700000000,
	}, sender)
	require.NoError(t, err)
	require.ErrorIs(t, st.ValidateStateless(), coreerrors.ErrInvalidPayload)
}

func TestValidateRejectsTamperedContent(t *testing.T) {
	sender := testKey(t)
	recipient := testKey(t).PubKey().Address().String()

	st := testTransfer(t, sender, recipient, 1000, 1)
	st.Transaction.Amount = uint256.NewInt(9999)
	require.ErrorIs(t, st.ValidateStateless(), coreerrors.ErrInvalidSignature)
}

func TestValidateRejectsForeignFrom(t *testing.T) {
	sender := testKey(t)
	other := testKey(t)
	recipient := testKey(t).PubKey().Address().String()

	st := testTransfer(t, sender, recipient, 1000, 1)
	st.Transaction.From = other.PubKey().Address().String()
	err := st.ValidateStateless()
	require.Error(t, err)
	require.True(t, errors.Is(err, coreerrors.ErrInvalidPayload) || errors.Is(err, coreerrors.ErrInvalidSignature))
}

func TestValidateRejectsLongMemo(t *testing.T) {
	sender := testKey(t)
	recipient := testKey(t).PubKey().Address().String()

	long := make([]byte, MaxMemoBytes+1)
	for i := range long {
		long[i] = 'a'
	}
	st, err := NewSignedTransaction(Transaction{
		To:        recipient,
		Amount:    uint256.NewInt(1),
		Asset:     "wallet:mint/ATLAS",
		Nonce:     1,
		Timestamp: 1700000000,
		Memo:      string(long),
	}, sender)
	require.NoError(t, err)
	require.ErrorIs(t, st.ValidateStateless(), coreerrors.ErrInvalidPayload)
}

func TestValidateAcceptsSystemDestinations(t *testing.T) {
	sender := testKey(t)

	for _, to := range []string{"mint", "system:treasury"} {
		st := testTransfer(t, sender, to, 5, 1)
		require.NoError(t, st.ValidateStateless(), "destination %s", to)
	}
}

func TestFeePayerCoSignature(t *testing.T) {
	sender := testKey(t)
	payer := testKey(t)
	recipient := testKey(t).PubKey().Address().String()

	st := testTransfer(t, sender, recipient, 1000, 1)
	require.NoError(t, st.AttachFeePayer(payer))
	require.NoError(t, st.ValidateStateless())
	require.Equal(t, payer.PubKey().Address().String(), st.FeePayerAccount())

	// A payer signature over different bytes must not verify.
	st.Transaction.Memo = "tampered after co-signing"
	st.Signature = sender.Sign(st.Transaction.SigningBytes())
	require.ErrorIs(t, st.ValidateStateless(), coreerrors.ErrInvalidSignature)
}

func TestFeePayerAccountDefaultsToSender(t *testing.T) {
	sender := testKey(t)
	recipient := testKey(t).PubKey().Address().String()

	st := testTransfer(t, sender, recipient, 1000, 1)
	require.Equal(t, st.Transaction.From, st.FeePayerAccount())
}
