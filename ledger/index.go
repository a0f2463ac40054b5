package ledger

import (
	"encoding/json"
	"fmt"
	"sync"

	"atlaschain/storage"
)

// Key prefixes for the two index tables.
const (
	propKeyPrefix = "prop:"
	txKeyPrefix   = "tx:"
)

// Index maps proposal ids to binlog locations and transaction hashes to
// proposal ids for idempotency across batches.
type Index struct {
	mu sync.Mutex
	db storage.Database
}

func NewIndex(db storage.Database) *Index {
	return &Index{db: db}
}

// IndexProposal stores the binlog location under the proposal id.
func (i *Index) IndexProposal(id string, loc Location) error {
	value, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.db.Put([]byte(propKeyPrefix+id), value)
}

// IndexTxHash points a transaction hash at its carrying proposal.
func (i *Index) IndexTxHash(hash, proposalID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.db.Put([]byte(txKeyPrefix+hash), []byte(proposalID))
}

// ProposalLocation resolves a proposal id to its binlog location.
func (i *Index) ProposalLocation(id string) (Location, bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	value, ok, err := i.db.Get([]byte(propKeyPrefix + id))
	if err != nil || !ok {
		return Location{}, false, err
	}
	var loc Location
	if err := json.Unmarshal(value, &loc); err != nil {
		return Location{}, false, fmt.Errorf("decode location: %w", err)
	}
	return loc, true, nil
}

// HasProposal reports whether the proposal id is indexed.
func (i *Index) HasProposal(id string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.db.Has([]byte(propKeyPrefix + id))
}

// ExistsTx reports whether a transaction hash is already indexed.
func (i *Index) ExistsTx(hash string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.db.Has([]byte(txKeyPrefix + hash))
}

// TxProposal resolves a transaction hash to the proposal that carried it.
func (i *Index) TxProposal(hash string) (string, bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	value, ok, err := i.db.Get([]byte(txKeyPrefix + hash))
	if err != nil || !ok {
		return "", false, err
	}
	return string(value), true, nil
}

// Close releases the backing store.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.db.Close()
}
