package ledger

import (
	"fmt"
	"log/slog"
	"sync"

	coreerrors "atlaschain/core/errors"
	"atlaschain/core/types"
	"atlaschain/observability"
	"atlaschain/storage"
)

// Store is the ledger store (C4): binlog plus index, with the transaction
// engine driven once per committed proposal. The binlog and the index sit
// behind their own locks, released before the engine applies state, so a
// re-entrant read from the apply path cannot deadlock.
type Store struct {
	binlog  *Binlog
	index   *Index
	state   *State
	journal *Journal
	engine  *Engine

	mu     sync.Mutex
	height uint64

	log     *slog.Logger
	metrics *observability.LedgerMetrics
}

// Open mounts the on-disk layout under dataDir, seeds genesis state and
// replays the binlog. Records missing from the index — a crash between
// binlog write and index write — are reindexed and their journal effects
// persisted; everything else replays into memory only.
func Open(dataDir string, db storage.Database, gen *Genesis, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "ledger")

	binlog, err := OpenBinlog(dataDir)
	if err != nil {
		return nil, err
	}
	journal, err := OpenJournal(dataDir)
	if err != nil {
		binlog.Close()
		return nil, err
	}

	state := NewState()
	var adminPK []byte
	if gen != nil {
		gen.Seed(state)
		if adminPK, err = gen.AdminKeyBytes(); err != nil {
			binlog.Close()
			return nil, err
		}
	}

	s := &Store{
		binlog:  binlog,
		index:   NewIndex(db),
		state:   state,
		journal: journal,
		engine:  NewEngine(state, journal, adminPK, log),
		log:     log,
		metrics: observability.Ledger(),
	}
	if err := s.recover(); err != nil {
		binlog.Close()
		return nil, err
	}
	return s, nil
}

// recover rebuilds in-memory state from the binlog, the sole source of truth.
func (s *Store) recover() error {
	proposals, locations, err := s.binlog.ReadAll()
	if err != nil {
		return fmt.Errorf("replay binlog: %w", err)
	}
	for i, p := range proposals {
		indexed, err := s.index.HasProposal(p.ID)
		if err != nil {
			return err
		}
		if !indexed {
			if err := s.indexProposal(p, locations[i]); err != nil {
				return err
			}
			s.metrics.ReplayedRecords.Inc()
			s.log.Info("reindexed binlog record", "proposal", p.ID, "height", p.Height)
		}
		// Journal writes only for freshly recovered records; replayed
		// state for already-indexed proposals reached the journal before
		// the crash.
		if err := s.engine.Apply(p, !indexed); err != nil {
			s.log.Error("replay apply failed", "proposal", p.ID, "error", err)
		}
		if p.Height > s.height {
			s.height = p.Height
		}
	}
	if len(proposals) > 0 {
		s.log.Info("binlog replay complete", "records", len(proposals), "height", s.height)
	}
	return nil
}

func (s *Store) indexProposal(p *types.Proposal, loc Location) error {
	if err := s.index.IndexProposal(p.ID, loc); err != nil {
		return err
	}
	for _, hash := range txHashes(p) {
		if err := s.index.IndexTxHash(hash, p.ID); err != nil {
			return err
		}
	}
	return nil
}

// txHashes extracts the idempotency hashes carried by a proposal: one per
// parsed signed transaction, falling back to the proposal hash when the
// content is not a recognisable batch.
func txHashes(p *types.Proposal) []string {
	batch, err := ParseBatch(p.Content)
	if err != nil || len(batch) == 0 {
		return []string{p.Hash}
	}
	hashes := make([]string, 0, len(batch))
	for _, st := range batch {
		hashes = append(hashes, st.Hash())
	}
	return hashes
}

// AppendProposal makes a committed proposal durable and applies its content.
// Resubmission of any transaction whose hash is already indexed is refused
// with Duplicate regardless of the network path that delivered it.
func (s *Store) AppendProposal(p *types.Proposal) error {
	hashes := txHashes(p)
	for _, hash := range hashes {
		exists, err := s.index.ExistsTx(hash)
		if err != nil {
			return fmt.Errorf("index lookup: %w", err)
		}
		if exists {
			s.metrics.Duplicates.Inc()
			return fmt.Errorf("%w: tx %s", coreerrors.ErrDuplicate, hash)
		}
	}

	s.mu.Lock()
	s.height++
	p.Height = s.height
	s.mu.Unlock()

	loc, err := s.binlog.Append(p)
	if err != nil {
		return err
	}
	s.metrics.BinlogAppends.Inc()

	if err := s.index.IndexProposal(p.ID, loc); err != nil {
		return err
	}
	for _, hash := range hashes {
		if err := s.index.IndexTxHash(hash, p.ID); err != nil {
			return err
		}
	}

	// Binlog and index locks are released; the engine takes the state lock
	// on its own. A failure here leaves the record in the binlog for the
	// recovery replay to retry.
	return s.engine.Apply(p, true)
}

// ExistsTransaction reports whether a transaction hash has been indexed.
func (s *Store) ExistsTransaction(hash string) (bool, error) {
	return s.index.ExistsTx(hash)
}

// GetProposal reads one proposal back through the index.
func (s *Store) GetProposal(id string) (*types.Proposal, error) {
	loc, ok, err := s.index.ProposalLocation(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.ErrNotFound
	}
	return s.binlog.ReadAt(loc)
}

// GetAllProposals streams the full binlog in append order.
func (s *Store) GetAllProposals() ([]*types.Proposal, error) {
	proposals, _, err := s.binlog.ReadAll()
	return proposals, err
}

// GetProposalsAfter linear-scans the binlog for proposals above height.
func (s *Store) GetProposalsAfter(height uint64) ([]*types.Proposal, error) {
	all, _, err := s.binlog.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]*types.Proposal, 0, len(all))
	for _, p := range all {
		if p.Height > height {
			out = append(out, p)
		}
	}
	return out, nil
}

// Height returns the height of the last committed proposal.
func (s *Store) Height() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

// Account exposes a read-only copy of one account's state.
func (s *Store) Account(id string) (*types.AccountState, bool) {
	return s.state.Account(id)
}

// StateRoot exposes the Merkle root for cross-node verification.
func (s *Store) StateRoot() string {
	return s.state.Root()
}

// JournalEntries reads one account's journal file.
func (s *Store) JournalEntries(account string) ([]*types.LedgerEntry, error) {
	return s.journal.Read(account)
}

// Close releases file and database handles.
func (s *Store) Close() error {
	if err := s.binlog.Close(); err != nil {
		return err
	}
	return s.index.Close()
}
