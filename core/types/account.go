package types

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// AccountType is one of the five classes of the double-entry chart of
// accounts. The canonical prefix set is English only.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountEquity    AccountType = "equity"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
)

// ParseAccountType maps a path prefix onto its account class.
func ParseAccountType(s string) (AccountType, bool) {
	switch AccountType(s) {
	case AccountAsset, AccountLiability, AccountEquity, AccountRevenue, AccountExpense:
		return AccountType(s), true
	default:
		return "", false
	}
}

// ValidAccountPath reports whether path starts with a known type prefix
// followed by a colon. The subtype and detail segments of the
// `type:subtype:detail` convention are not checked.
func ValidAccountPath(path string) bool {
	parts := strings.SplitN(path, ":", 2)
	if len(parts) < 2 {
		return false
	}
	_, ok := ParseAccountType(parts[0])
	return ok
}

// WalletAccount wraps a bare address into its liability wallet account. Paths
// that already carry a valid type prefix pass through unchanged.
func WalletAccount(addr string) string {
	if ValidAccountPath(addr) {
		return addr
	}
	return fmt.Sprintf("%s:wallet:%s", AccountLiability, addr)
}

// AccountState is the per-account view mutated only by committed entries.
type AccountState struct {
	Balances    map[string]*uint256.Int `json:"balances"`
	LastEntryID string                  `json:"last_entry_id,omitempty"`
	Nonce       uint64                  `json:"nonce"`
}

func NewAccountState() *AccountState {
	return &AccountState{Balances: make(map[string]*uint256.Int)}
}

// BalanceOf returns the stored balance for asset, zero when absent.
func (a *AccountState) BalanceOf(asset string) *uint256.Int {
	if a == nil || a.Balances == nil {
		return new(uint256.Int)
	}
	if bal, ok := a.Balances[asset]; ok && bal != nil {
		return new(uint256.Int).Set(bal)
	}
	return new(uint256.Int)
}

// Clone returns a deep copy safe to hand to readers.
func (a *AccountState) Clone() *AccountState {
	if a == nil {
		return nil
	}
	out := &AccountState{
		Balances:    make(map[string]*uint256.Int, len(a.Balances)),
		LastEntryID: a.LastEntryID,
		Nonce:       a.Nonce,
	}
	for asset, bal := range a.Balances {
		out.Balances[asset] = new(uint256.Int).Set(bal)
	}
	return out
}
