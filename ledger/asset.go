package ledger

// Native token identity. Asset ids are namespaced as `issuer/symbol`.
const (
	SystemMintIssuer = "wallet:mint"
	AtlasSymbol      = "ATLAS"
	AtlasAssetID     = "wallet:mint/ATLAS"
)

// System accounts referenced by fee and issuance legs.
const (
	FeesAccount     = "equity:fees"
	IssuanceAccount = "equity:issuance"
	TreasuryAccount = "equity:treasury"
)
