package ledger

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	coreerrors "atlaschain/core/errors"
	"atlaschain/core/types"
)

// State is the in-memory account map, rebuilt from the binlog on startup and
// mutated only by committed entries. Readers observe either the pre-entry or
// the post-entry state, never a partial application.
type State struct {
	mu       sync.RWMutex
	accounts map[string]*types.AccountState
}

func NewState() *State {
	return &State{accounts: make(map[string]*types.AccountState)}
}

// ApplyEntry validates the double-entry law, stages every balance mutation
// and commits them atomically. The prev_for_account chain is recorded before
// last_entry_id is overwritten.
func (s *State) ApplyEntry(entry *types.LedgerEntry) error {
	if err := entry.CheckBalanced(); err != nil {
		return fmt.Errorf("%w: %v", coreerrors.ErrInvalidPayload, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage: work on copies so a failing leg leaves nothing half-applied.
	staged := make(map[string]*types.AccountState)
	stage := func(account string) *types.AccountState {
		if acct, ok := staged[account]; ok {
			return acct
		}
		var acct *types.AccountState
		if existing, ok := s.accounts[account]; ok {
			acct = existing.Clone()
		} else {
			acct = types.NewAccountState()
		}
		staged[account] = acct
		return acct
	}

	for _, leg := range entry.Legs {
		acct := stage(leg.Account)
		balance := acct.BalanceOf(leg.Asset)
		switch leg.Kind {
		case types.Credit:
			if _, overflow := balance.AddOverflow(balance, leg.Amount); overflow {
				return fmt.Errorf("%w: balance overflow on %s", coreerrors.ErrInvalidPayload, leg.Account)
			}
		case types.Debit:
			if _, underflow := balance.SubOverflow(balance, leg.Amount); underflow {
				return fmt.Errorf("%w: account %s asset %s", coreerrors.ErrInsufficientFunds, leg.Account, leg.Asset)
			}
		default:
			return fmt.Errorf("%w: unknown leg kind %q", coreerrors.ErrInvalidPayload, leg.Kind)
		}
		acct.Balances[leg.Asset] = balance
	}

	for account, acct := range staged {
		entry.PrevForAccount[account] = ""
		if existing, ok := s.accounts[account]; ok {
			entry.PrevForAccount[account] = existing.LastEntryID
		}
		acct.LastEntryID = entry.EntryID
		s.accounts[account] = acct
	}
	return nil
}

// Account returns a deep copy of one account's state.
func (s *State) Account(id string) (*types.AccountState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	return acct.Clone(), true
}

// Nonce returns the stored nonce for an account, zero when absent.
func (s *State) Nonce(account string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if acct, ok := s.accounts[account]; ok {
		return acct.Nonce
	}
	return 0
}

// IncrementNonce bumps the per-sender counter after a successful apply.
func (s *State) IncrementNonce(account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[account]
	if !ok {
		acct = types.NewAccountState()
		s.accounts[account] = acct
	}
	acct.Nonce++
}

// Credit seeds an account balance directly. Genesis only.
func (s *State) Credit(account, asset string, amount *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[account]
	if !ok {
		acct = types.NewAccountState()
		s.accounts[account] = acct
	}
	balance := acct.BalanceOf(asset)
	balance.Add(balance, amount)
	acct.Balances[asset] = balance
}

// Accounts returns the sorted account ids currently present.
func (s *State) Accounts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Root computes the Merkle root over the sorted list of
// (account_id, SHA-256(serialized state)) leaves.
func (s *State) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	leaves := make([][]byte, 0, len(ids))
	for _, id := range ids {
		h := sha256.New()
		h.Write([]byte(id))
		serialized, err := json.Marshal(s.accounts[id])
		if err == nil {
			h.Write(serialized)
		}
		leaves = append(leaves, h.Sum(nil))
	}
	return MerkleRoot(leaves)
}
