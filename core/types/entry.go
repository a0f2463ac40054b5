package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

// LegKind tags the direction of a ledger movement. Sign conventions live in
// the journal layer; amounts stay unsigned.
type LegKind string

const (
	Debit  LegKind = "debit"
	Credit LegKind = "credit"
)

// Leg is one directional movement of a single asset on a single account.
type Leg struct {
	Account string       `json:"account"`
	Asset   string       `json:"asset"`
	Kind    LegKind      `json:"kind"`
	Amount  *uint256.Int `json:"amount"`
}

// LedgerEntry is one balanced double-entry journal record produced by a
// committed proposal.
type LedgerEntry struct {
	EntryID        string            `json:"entry_id"`
	Legs           []Leg             `json:"legs"`
	TxHash         string            `json:"tx_hash"`
	BlockHeight    uint64            `json:"block_height"`
	Timestamp      int64             `json:"timestamp"`
	Memo           string            `json:"memo,omitempty"`
	PrevForAccount map[string]string `json:"prev_for_account"`
}

// NewLedgerEntry builds an entry with an empty prev-chain map.
func NewLedgerEntry(entryID string, legs []Leg, txHash string, blockHeight uint64, timestamp int64, memo string) *LedgerEntry {
	return &LedgerEntry{
		EntryID:        entryID,
		Legs:           legs,
		TxHash:         txHash,
		BlockHeight:    blockHeight,
		Timestamp:      timestamp,
		Memo:           memo,
		PrevForAccount: make(map[string]string),
	}
}

// CheckBalanced enforces the double-entry law: for every asset referenced by
// the legs, the credits must equal the debits.
func (e *LedgerEntry) CheckBalanced() error {
	credits := make(map[string]*uint256.Int)
	debits := make(map[string]*uint256.Int)
	for _, leg := range e.Legs {
		if leg.Amount == nil {
			return fmt.Errorf("leg on %s has no amount", leg.Account)
		}
		totals := credits
		if leg.Kind == Debit {
			totals = debits
		} else if leg.Kind != Credit {
			return fmt.Errorf("unknown leg kind %q", leg.Kind)
		}
		sum, ok := totals[leg.Asset]
		if !ok {
			sum = new(uint256.Int)
			totals[leg.Asset] = sum
		}
		if _, overflow := sum.AddOverflow(sum, leg.Amount); overflow {
			return fmt.Errorf("leg total overflow for asset %s", leg.Asset)
		}
	}
	for asset, credit := range credits {
		debit := debits[asset]
		if debit == nil {
			debit = new(uint256.Int)
		}
		if !credit.Eq(debit) {
			return fmt.Errorf("unbalanced entry for asset %s: credits %s, debits %s", asset, credit, debit)
		}
	}
	for asset, debit := range debits {
		if _, ok := credits[asset]; !ok && !debit.IsZero() {
			return fmt.Errorf("unbalanced entry for asset %s: credits 0, debits %s", asset, debit)
		}
	}
	return nil
}

// Accounts returns the distinct accounts touched by the entry, in leg order.
func (e *LedgerEntry) Accounts() []string {
	seen := make(map[string]struct{}, len(e.Legs))
	out := make([]string, 0, len(e.Legs))
	for _, leg := range e.Legs {
		if _, ok := seen[leg.Account]; ok {
			continue
		}
		seen[leg.Account] = struct{}{}
		out = append(out, leg.Account)
	}
	return out
}
