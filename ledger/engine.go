package ledger

import (
	"bytes"
	"encoding/json"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	coreerrors "atlaschain/core/errors"
	"atlaschain/core/types"
	"atlaschain/observability"
)

// Engine is the transaction engine (C5). It owns no state of its own: it
// borrows the account state map and the journal from the store that drives
// it, once per committed proposal.
type Engine struct {
	state       *State
	journal     *Journal
	adminPubKey []byte
	log         *slog.Logger
	metrics     *observability.LedgerMetrics
}

func NewEngine(state *State, journal *Journal, adminPubKey []byte, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		state:       state,
		journal:     journal,
		adminPubKey: append([]byte(nil), adminPubKey...),
		log:         log.With("component", "txengine"),
		metrics:     observability.Ledger(),
	}
}

// ParseBatch decodes proposal content as either a single signed transaction
// or a JSON array of them.
func ParseBatch(content []byte) ([]*types.SignedTransaction, error) {
	var batch []*types.SignedTransaction
	if err := json.Unmarshal(content, &batch); err == nil && len(batch) > 0 {
		return batch, nil
	}
	single := &types.SignedTransaction{}
	if err := json.Unmarshal(content, single); err == nil && single.Transaction.From != "" {
		return []*types.SignedTransaction{single}, nil
	}
	return nil, fmt.Errorf("%w: proposal content is neither a signed transaction nor a batch", coreerrors.ErrInvalidPayload)
}

// Apply executes the content of one committed proposal against account
// state. A failing transaction is rejected on its own; sibling transactions
// in the batch still apply. The issuance entry lands once per proposal.
// Journal persistence is suppressed during startup replay of records whose
// effects already reached disk.
func (e *Engine) Apply(p *types.Proposal, persistJournal bool) error {
	batch, err := ParseBatch(p.Content)
	if err != nil {
		return err
	}

	timestamp := int64(p.Timestamp)
	firstFeePayer := ""
	for _, st := range batch {
		if err := e.applyTx(p, st, timestamp, persistJournal); err != nil {
			e.metrics.TxRejected.WithLabelValues(rejectReason(err)).Inc()
			e.log.Warn("transaction rejected", "proposal", p.ID, "from", st.Transaction.From, "error", err)
			continue
		}
		if firstFeePayer == "" {
			firstFeePayer = st.FeePayerAccount()
		}
	}

	inflation := InflationEntry(p, p.ProposerPublicKey, p.ProposerID, firstFeePayer, timestamp)
	if err := e.state.ApplyEntry(inflation); err != nil {
		e.log.Error("issuance entry rejected", "proposal", p.ID, "error", err)
		return nil
	}
	e.metrics.EntriesApplied.Inc()
	if persistJournal {
		e.persist(inflation)
	}
	return nil
}

func (e *Engine) applyTx(p *types.Proposal, st *types.SignedTransaction, timestamp int64, persistJournal bool) error {
	if err := st.ValidateStateless(); err != nil {
		return err
	}
	tx := &st.Transaction

	fromWallet := types.WalletAccount(tx.From)
	stored := e.state.Nonce(fromWallet)
	if tx.Nonce <= stored {
		return fmt.Errorf("%w: got %d, last applied %d", coreerrors.ErrNonceReuse, tx.Nonce, stored)
	}
	if tx.Nonce != stored+1 {
		return fmt.Errorf("%w: got %d, expected %d", coreerrors.ErrNonceGap, tx.Nonce, stored+1)
	}

	debitAccount := fromWallet
	if tx.To == "mint" {
		// Issuance path: only the genesis admin may originate it, and the
		// transfer draws on the issuance reserve rather than the sender
		// wallet.
		if len(e.adminPubKey) == 0 || !bytes.Equal(st.PublicKey, e.adminPubKey) {
			return fmt.Errorf("%w: issuance transfer from unauthorized key", coreerrors.ErrInvalidPayload)
		}
		debitAccount = IssuanceAccount
	} else {
		if acct, ok := e.state.Account(fromWallet); !ok || acct.BalanceOf(tx.Asset).Lt(tx.Amount) {
			return fmt.Errorf("%w: account %s asset %s", coreerrors.ErrInsufficientFunds, fromWallet, tx.Asset)
		}
	}

	legs := []types.Leg{
		{Account: debitAccount, Asset: tx.Asset, Kind: types.Debit, Amount: tx.Amount},
		{Account: types.WalletAccount(tx.To), Asset: tx.Asset, Kind: types.Credit, Amount: tx.Amount},
	}
	legs = append(legs, FeeLegs(st, p.ProposerPublicKey, p.ProposerID)...)

	entry := types.NewLedgerEntry(entryID("entry", st.Hash()), legs, st.Hash(), p.Height, timestamp, tx.Memo)
	if err := e.state.ApplyEntry(entry); err != nil {
		return err
	}
	e.state.IncrementNonce(fromWallet)
	e.metrics.EntriesApplied.Inc()

	if persistJournal {
		e.persist(entry)
	}
	return nil
}

// entryID derives a deterministic entry identifier so that every node
// produces byte-identical journals for the same committed sequence.
func entryID(kind, seed string) string {
	sum := sha256.Sum256([]byte(kind + ":" + seed))
	return hex.EncodeToString(sum[:])
}

func (e *Engine) persist(entry *types.LedgerEntry) {
	if e.journal == nil {
		return
	}
	for _, account := range entry.Accounts() {
		if err := e.journal.Append(account, entry); err != nil {
			e.log.Error("journal append failed", "account", account, "entry", entry.EntryID, "error", err)
		}
	}
}

// StateRoot exposes the Merkle root over current account state.
func (e *Engine) StateRoot() string {
	return e.state.Root()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, coreerrors.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, coreerrors.ErrNonceGap):
		return "nonce_gap"
	case errors.Is(err, coreerrors.ErrNonceReuse):
		return "nonce_reuse"
	case errors.Is(err, coreerrors.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, coreerrors.ErrInvalidPayload):
		return "invalid_payload"
	default:
		return "other"
	}
}
