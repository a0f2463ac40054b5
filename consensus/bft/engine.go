package bft

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	coreerrors "atlaschain/core/errors"
	"atlaschain/core/types"
	"atlaschain/crypto"
	"atlaschain/network"
	"atlaschain/observability"
)

// Committer receives a proposal once it clears the Commit phase. The ledger
// store implements it.
type Committer interface {
	AppendProposal(p *types.Proposal) error
}

// SlashingSink receives equivocation observations for later evidence
// handling. Implementations must not block.
type SlashingSink interface {
	RecordEquivocation(ev *coreerrors.EquivocationError, observedAt time.Time) error
}

// PhaseTimeouts bounds the wall-clock each voting phase may take.
type PhaseTimeouts struct {
	Prepare   time.Duration
	PreCommit time.Duration
	Commit    time.Duration
}

func DefaultPhaseTimeouts() PhaseTimeouts {
	return PhaseTimeouts{
		Prepare:   2 * time.Second,
		PreCommit: 2 * time.Second,
		Commit:    5 * time.Second,
	}
}

// For returns the wall-clock bound of one phase.
func (t PhaseTimeouts) For(phase types.Phase) time.Duration {
	switch phase {
	case types.PhasePrepare:
		return t.Prepare
	case types.PhasePreCommit:
		return t.PreCommit
	default:
		return t.Commit
	}
}

// Option mutates the engine during construction.
type Option func(*Engine)

// WithTimeouts overrides the phase timers when the provided durations are
// positive.
func WithTimeouts(t PhaseTimeouts) Option {
	return func(e *Engine) {
		if t.Prepare > 0 {
			e.timeouts.Prepare = t.Prepare
		}
		if t.PreCommit > 0 {
			e.timeouts.PreCommit = t.PreCommit
		}
		if t.Commit > 0 {
			e.timeouts.Commit = t.Commit
		}
	}
}

// WithSlashingSink wires an evidence store for equivocation events.
func WithSlashingSink(sink SlashingSink) Option {
	return func(e *Engine) { e.slashing = sink }
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine sequences proposals through Prepare, PreCommit and Commit. It owns
// the proposal pool and the vote registry; the evaluator receives read-only
// handles per call. All mutable state sits behind a single mutex.
// ReceiveVote holds it only while recording the vote; EvaluateProposals
// releases it before handing approved proposals to the committer.
type Engine struct {
	mu        sync.Mutex
	peers     *network.PeerManager
	pool      *ProposalPool
	registry  *VoteRegistry
	evaluator *Evaluator
	committer Committer
	slashing  SlashingSink

	phases    map[string]types.Phase
	deadlines map[string]time.Time

	timeouts PhaseTimeouts
	view     uint64
	now      func() time.Time
	log      *slog.Logger
	metrics  *observability.ConsensusMetrics
}

func NewEngine(peers *network.PeerManager, policy QuorumPolicy, committer Committer, opts ...Option) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	engine := &Engine{
		peers:     peers,
		pool:      NewProposalPool(),
		registry:  NewVoteRegistry(),
		evaluator: NewEvaluator(policy),
		committer: committer,
		phases:    make(map[string]types.Phase),
		deadlines: make(map[string]time.Time),
		timeouts:  DefaultPhaseTimeouts(),
		now:       time.Now,
		log:       slog.Default().With("component", "consensus"),
		metrics:   observability.Consensus(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	return engine, nil
}

// AddProposal pushes a proposal into the pool and opens its Prepare phase.
// A second submission of identical content is a no-op; the return reports
// whether the proposal was new.
func (e *Engine) AddProposal(p *types.Proposal) bool {
	if p == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.pool.Add(p) {
		return false
	}
	e.registry.RegisterProposal(p.ID)
	e.phases[p.ID] = types.PhasePrepare
	e.deadlines[p.ID] = e.now().Add(e.timeouts.For(types.PhasePrepare))
	e.metrics.ProposalsAdded.Inc()
	e.metrics.PoolSize.Set(float64(e.pool.Len()))
	e.log.Info("proposal entered pool", "proposal", p.ID, "proposer", p.ProposerID)
	return true
}

// ReceiveVote verifies and records a vote. Votes from unknown peers are
// dropped with a warning. Votes for proposals not yet in the pool are
// buffered in the registry; evaluation ignores them until AddProposal runs.
// Votes for a past phase are recorded for slashing audits but do not affect
// evaluation. Equivocations go to the slashing sink and surface as errors;
// the prior vote stands.
func (e *Engine) ReceiveVote(rec *types.VoteRecord) error {
	if rec == nil || !rec.Vote.Valid() {
		return coreerrors.ErrInvalidPayload
	}
	if !rec.VerifySignature() {
		return coreerrors.ErrInvalidSignature
	}
	if addr, err := crypto.AddressFromPubKey(rec.PublicKey, crypto.ExposedPrefix); err != nil || addr.String() != rec.Voter {
		return fmt.Errorf("%w: voter does not match signing key", coreerrors.ErrInvalidSignature)
	}

	active := e.peers.ActivePeers()
	if _, ok := active[rec.Voter]; !ok {
		e.log.Warn("dropping vote from inactive peer", "voter", rec.Voter, "proposal", rec.ProposalID)
		e.metrics.VotesDropped.Inc()
		return nil
	}

	e.mu.Lock()
	err := e.registry.RegisterVote(rec.ProposalID, rec.Phase, rec.Voter, rec.Vote)
	e.mu.Unlock()

	if err != nil {
		var eq *coreerrors.EquivocationError
		if errors.As(err, &eq) {
			e.metrics.Equivocations.Inc()
			e.log.Warn("equivocation detected", "voter", eq.Voter, "proposal", eq.ProposalID, "phase", eq.Phase)
			if e.slashing != nil {
				if serr := e.slashing.RecordEquivocation(eq, e.now()); serr != nil {
					e.log.Error("failed to record equivocation evidence", "error", serr)
				}
			}
		}
		return err
	}

	e.metrics.VotesReceived.WithLabelValues(rec.Phase.String()).Inc()
	e.log.Debug("vote recorded", "voter", rec.Voter, "proposal", rec.ProposalID, "phase", rec.Phase.String(), "vote", rec.Vote.String())
	return nil
}

// EvaluateProposals asks the evaluator for every proposal in its current
// phase, advances the newly approved ones and rejects the expired ones. A
// proposal approved in Commit is handed to the committer for durability and
// removed from the pool afterwards; the registry keeps its votes for audits.
func (e *Engine) EvaluateProposals() []types.ConsensusResult {
	active := e.peers.ActivePeers()

	e.mu.Lock()
	now := e.now()

	var results []types.ConsensusResult
	for id, deadline := range e.deadlines {
		if now.Before(deadline) {
			continue
		}
		phase := e.phases[id]
		e.log.Warn("proposal timed out", "proposal", id, "phase", phase.String())
		results = append(results, types.ConsensusResult{
			ProposalID: id,
			Phase:      phase,
			Approved:   false,
			YesVotes:   e.registry.CountYes(id, phase),
		})
		e.dropLocked(id)
		e.metrics.ProposalsRejected.Inc()
	}

	approved := e.evaluator.Evaluate(e.registry, active, e.phases)
	var commits []*types.Proposal
	for _, res := range approved {
		next, ok := e.phases[res.ProposalID]
		if !ok {
			continue
		}
		if next == types.PhaseCommit {
			if p, found := e.pool.Find(res.ProposalID); found {
				commits = append(commits, p)
			}
		} else {
			advanced, _ := next.Next()
			e.phases[res.ProposalID] = advanced
			e.deadlines[res.ProposalID] = now.Add(e.timeouts.For(advanced))
			e.log.Info("proposal advanced", "proposal", res.ProposalID, "phase", advanced.String(), "yes_votes", res.YesVotes)
		}
		results = append(results, res)
	}
	e.metrics.PoolSize.Set(float64(e.pool.Len()))
	e.mu.Unlock()

	// Durability runs outside the engine lock: the store takes its own
	// locks and hands off to the transaction engine.
	for _, p := range commits {
		if err := e.commit(p); err != nil {
			e.log.Error("commit failed", "proposal", p.ID, "error", err)
		}
	}
	return results
}

func (e *Engine) commit(p *types.Proposal) error {
	err := e.committer.AppendProposal(p)
	switch {
	case err == nil:
		e.metrics.ProposalsCommitted.Inc()
		e.log.Info("proposal committed", "proposal", p.ID, "height", p.Height)
	case errors.Is(err, coreerrors.ErrDuplicate):
		// Already durable; idempotent success.
		e.log.Info("proposal already committed", "proposal", p.ID)
		err = nil
	default:
		e.metrics.ProposalsRejected.Inc()
	}

	e.mu.Lock()
	e.dropLocked(p.ID)
	e.metrics.PoolSize.Set(float64(e.pool.Len()))
	e.mu.Unlock()

	if err != nil {
		return fmt.Errorf("append proposal %s: %w", p.ID, err)
	}
	return nil
}

func (e *Engine) dropLocked(id string) {
	e.pool.Remove(id)
	delete(e.phases, id)
	delete(e.deadlines, id)
	e.evaluator.Forget(id)
}

// CurrentPhase reports the phase a pooled proposal sits in.
func (e *Engine) CurrentPhase(id string) (types.Phase, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	phase, ok := e.phases[id]
	return phase, ok
}

// Votes exposes the recorded votes for audits.
func (e *Engine) Votes(id string, phase types.Phase) map[string]types.Vote {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Votes(id, phase)
}

// CountYes exposes the Yes tally for one proposal and phase.
func (e *Engine) CountYes(id string, phase types.Phase) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.CountYes(id, phase)
}

// PoolLen reports the number of proposals awaiting a terminal state.
func (e *Engine) PoolLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Len()
}

// PendingProposal returns a pooled proposal by id.
func (e *Engine) PendingProposal(id string) (*types.Proposal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Find(id)
}

// View returns the engine's current view number.
func (e *Engine) View() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// SetView updates the view number used when casting votes.
func (e *Engine) SetView(view uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view = view
}

// RestoreVotes bulk-loads persisted vote state during recovery.
func (e *Engine) RestoreVotes(state map[string]map[types.Phase]map[string]types.Vote) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry.Replace(state)
}
