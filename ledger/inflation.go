package ledger

import (
	"github.com/holiman/uint256"

	"atlaschain/core/types"
)

// Issuance schedule per committed proposal: the issuance reserve is debited
// and the credit splits between treasury, proposer and fee payer.
const (
	issuanceAmount = 10000
	treasuryShare  = 4000
	proposerShare  = 4000
	feePayerShare  = 2000
)

// InflationEntry builds the per-proposal issuance entry. feePayer is the fee
// payer of the first transaction of the committed batch that applied; when
// it is empty (no transaction applied) the proposer receives that share as
// well.
func InflationEntry(p *types.Proposal, proposerPK []byte, proposerID, feePayer string, timestamp int64) *types.LedgerEntry {
	proposerAccount := proposerWallet(proposerPK, proposerID)
	payerAccount := proposerAccount
	if feePayer != "" {
		payerAccount = types.WalletAccount(feePayer)
	}

	legs := []types.Leg{
		{Account: IssuanceAccount, Asset: AtlasAssetID, Kind: types.Debit, Amount: uint256.NewInt(issuanceAmount)},
		{Account: TreasuryAccount, Asset: AtlasAssetID, Kind: types.Credit, Amount: uint256.NewInt(treasuryShare)},
		{Account: proposerAccount, Asset: AtlasAssetID, Kind: types.Credit, Amount: uint256.NewInt(proposerShare)},
		{Account: payerAccount, Asset: AtlasAssetID, Kind: types.Credit, Amount: uint256.NewInt(feePayerShare)},
	}
	return types.NewLedgerEntry(entryID("issuance", p.Hash), legs, p.Hash, p.Height, timestamp, "")
}
