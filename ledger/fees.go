package ledger

import (
	"github.com/holiman/uint256"

	"atlaschain/core/types"
	"atlaschain/crypto"
)

// Fee schedule: a flat base plus a per-byte charge on the canonical signing
// bytes, denominated in the smallest unit of the native token. 90% rewards
// the proposer, the remainder accrues to the system fee account.
const (
	baseFee         = 1000
	perByteFee      = 10
	proposerFeeBips = 9000
)

// Fee returns the total fee owed for one transaction.
func Fee(tx *types.Transaction) *uint256.Int {
	size := uint64(len(tx.SigningBytes()))
	return uint256.NewInt(baseFee + perByteFee*size)
}

// proposerWallet derives the proposer's liability wallet account from its
// public key, falling back to the opaque node id when the key is unusable.
func proposerWallet(proposerPK []byte, proposerID string) string {
	if addr, err := crypto.AddressFromPubKey(proposerPK, crypto.ExposedPrefix); err == nil {
		return types.WalletAccount(addr.String())
	}
	return types.WalletAccount(proposerID)
}

// FeeLegs produces the three fee legs for one transaction: the payer debit,
// the proposer reward credit and the system revenue credit.
func FeeLegs(st *types.SignedTransaction, proposerPK []byte, proposerID string) []types.Leg {
	fee := Fee(&st.Transaction)
	reward := new(uint256.Int).Mul(fee, uint256.NewInt(proposerFeeBips))
	reward.Div(reward, uint256.NewInt(10000))
	system := new(uint256.Int).Sub(fee, reward)

	payerAccount := types.WalletAccount(st.FeePayerAccount())

	return []types.Leg{
		{Account: payerAccount, Asset: AtlasAssetID, Kind: types.Debit, Amount: fee},
		{Account: proposerWallet(proposerPK, proposerID), Asset: AtlasAssetID, Kind: types.Credit, Amount: reward},
		{Account: FeesAccount, Asset: AtlasAssetID, Kind: types.Credit, Amount: system},
	}
}
