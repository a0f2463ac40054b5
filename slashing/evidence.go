package slashing

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	coreerrors "atlaschain/core/errors"
)

var evidenceBucket = []byte("equivocations")

// Evidence is one observed equivocation, retained for operator audits and
// eventual penalty handling.
type Evidence struct {
	Voter      string `json:"voter"`
	ProposalID string `json:"proposal_id"`
	Phase      string `json:"phase"`
	PriorVote  string `json:"prior_vote"`
	Conflict   string `json:"conflict_vote"`
	ObservedAt int64  `json:"observed_at"`
}

// EvidenceStore persists equivocation observations in an embedded bbolt
// database. It implements the consensus engine's slashing sink.
type EvidenceStore struct {
	db *bolt.DB
}

// OpenEvidenceStore opens or creates the evidence database at path.
func OpenEvidenceStore(path string) (*EvidenceStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open evidence store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(evidenceBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &EvidenceStore{db: db}, nil
}

// RecordEquivocation stores the observation keyed by voter, proposal and
// phase. Re-recording the same key overwrites with the latest observation.
func (s *EvidenceStore) RecordEquivocation(ev *coreerrors.EquivocationError, observedAt time.Time) error {
	if ev == nil {
		return nil
	}
	record := Evidence{
		Voter:      ev.Voter,
		ProposalID: ev.ProposalID,
		Phase:      ev.Phase,
		PriorVote:  ev.Prior,
		Conflict:   ev.Conflict,
		ObservedAt: observedAt.Unix(),
	}
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s|%s|%s", record.Voter, record.ProposalID, record.Phase)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(evidenceBucket).Put([]byte(key), value)
	})
}

// List returns every retained observation.
func (s *EvidenceStore) List() ([]Evidence, error) {
	var out []Evidence
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(evidenceBucket).ForEach(func(_, v []byte) error {
			var record Evidence
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			out = append(out, record)
			return nil
		})
	})
	return out, err
}

// Close releases the database handle.
func (s *EvidenceStore) Close() error {
	return s.db.Close()
}
