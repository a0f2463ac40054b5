package core

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"atlaschain/consensus/bft"
	coreerrors "atlaschain/core/errors"
	"atlaschain/core/types"
	"atlaschain/crypto"
	"atlaschain/network"
)

// Ledger is the durability surface the node drives on commit and queries
// for status. The ledger store implements it.
type Ledger interface {
	bft.Committer
	Height() uint64
	StateRoot() string
	Account(id string) (*types.AccountState, bool)
	GetProposal(id string) (*types.Proposal, error)
	GetAllProposals() ([]*types.Proposal, error)
	GetProposalsAfter(height uint64) ([]*types.Proposal, error)
	ExistsTransaction(hash string) (bool, error)
}

// Status is the operator-facing node snapshot.
type Status struct {
	NodeID   string `json:"node_id"`
	LeaderID string `json:"leader_id"`
	Height   uint64 `json:"height"`
	View     uint64 `json:"view"`
}

// Node is the composition root: it owns the consensus engine and the ledger
// handle, ingests proposals and votes from outside and drives the evaluate
// loop. Cyclic references between engine, registry and evaluator are
// resolved here by composition.
type Node struct {
	id        string
	key       *crypto.PrivateKey
	auth      network.Authenticator
	engine    *bft.Engine
	ledger    Ledger
	peers     *network.PeerManager
	publisher network.Publisher
	leader    bft.LeaderPolicy
	log       *slog.Logger

	mu   sync.Mutex
	view uint64

	quit chan struct{}
	wg   sync.WaitGroup
}

// NodeOption mutates the node during construction.
type NodeOption func(*Node)

// WithLeaderPolicy replaces the default round-robin leader policy.
func WithLeaderPolicy(policy bft.LeaderPolicy) NodeOption {
	return func(n *Node) {
		if policy != nil {
			n.leader = policy
		}
	}
}

// WithNodeLogger replaces the default logger.
func WithNodeLogger(log *slog.Logger) NodeOption {
	return func(n *Node) {
		if log != nil {
			n.log = log
		}
	}
}

func NewNode(key *crypto.PrivateKey, engine *bft.Engine, ledger Ledger, peers *network.PeerManager, publisher network.Publisher, opts ...NodeOption) *Node {
	node := &Node{
		id:        key.PubKey().Address().String(),
		key:       key,
		auth:      network.NewKeyAuthenticator(key),
		engine:    engine,
		ledger:    ledger,
		peers:     peers,
		publisher: publisher,
		leader:    bft.RoundRobinLeader{},
		log:       slog.Default().With("component", "node"),
		quit:      make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(node)
		}
	}
	// The local validator always takes part in its own quorum.
	peers.Register(node.id, network.PeerStats{Address: "local"})
	return node
}

// ID returns the node's canonical address string.
func (n *Node) ID() string {
	return n.id
}

// Start runs the evaluation loop until Stop is called.
func (n *Node) Start(tick time.Duration) {
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-n.quit:
				return
			case <-ticker.C:
				n.Evaluate()
			}
		}
	}()
	n.log.Info("node started", "node", n.id)
}

// Stop terminates the evaluation loop.
func (n *Node) Stop() {
	close(n.quit)
	n.wg.Wait()
}

// SubmitContent wraps raw content into a signed proposal, registers it with
// the consensus engine and gossips it. Identical content collapses onto the
// same proposal id and is a no-op on resubmission.
func (n *Node) SubmitContent(content []byte) (*types.Proposal, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty proposal content", coreerrors.ErrInvalidPayload)
	}
	p, err := types.NewProposal(content, n.id, n.key, uint64(time.Now().Unix()))
	if err != nil {
		return nil, err
	}
	if !n.engine.AddProposal(p) {
		n.log.Info("duplicate proposal submission ignored", "proposal", p.ID)
		return p, nil
	}

	wire, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := n.publisher.Publish(network.TopicProposal, wire); err != nil {
		n.log.Warn("proposal broadcast failed", "proposal", p.ID, "error", err)
	}

	n.castVote(p.ID, types.PhasePrepare)
	return p, nil
}

// HandleProposal ingests a proposal received from the network.
func (n *Node) HandleProposal(wire []byte) error {
	p := &types.Proposal{}
	if err := p.UnmarshalBinary(wire); err != nil {
		return fmt.Errorf("%w: %v", coreerrors.ErrInvalidPayload, err)
	}
	if err := p.Verify(); err != nil {
		return fmt.Errorf("%w: %v", coreerrors.ErrInvalidSignature, err)
	}
	if n.engine.AddProposal(p) {
		n.castVote(p.ID, types.PhasePrepare)
	}
	return nil
}

// HandleVote ingests a wire-encoded vote received from the network.
func (n *Node) HandleVote(wire []byte) error {
	rec := &types.VoteRecord{}
	if err := rec.UnmarshalBinary(wire); err != nil {
		return fmt.Errorf("%w: %v", coreerrors.ErrInvalidPayload, err)
	}
	return n.engine.ReceiveVote(rec)
}

// Evaluate drives one evaluation pass and casts this validator's vote for
// every phase a proposal newly entered.
func (n *Node) Evaluate() []types.ConsensusResult {
	results := n.engine.EvaluateProposals()
	for _, res := range results {
		if !res.Approved || res.Phase == types.PhaseCommit {
			continue
		}
		if next, ok := res.Phase.Next(); ok {
			n.castVote(res.ProposalID, next)
		}
	}
	return results
}

// castVote signs and records this node's Yes vote, then gossips it.
func (n *Node) castVote(proposalID string, phase types.Phase) {
	rec := types.SignVote(proposalID, phase, types.VoteYes, n.id, n.View(), n.key)
	if err := n.engine.ReceiveVote(rec); err != nil && !coreerrors.IsEquivocation(err) {
		n.log.Warn("self vote rejected", "proposal", proposalID, "phase", phase.String(), "error", err)
		return
	}
	wire, err := rec.MarshalBinary()
	if err != nil {
		n.log.Error("vote encode failed", "proposal", proposalID, "error", err)
		return
	}
	if err := n.publisher.Publish(network.TopicVote, wire); err != nil {
		n.log.Warn("vote broadcast failed", "proposal", proposalID, "error", err)
	}
}

// View returns the current consensus view.
func (n *Node) View() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.view
}

// AdvanceView moves to the next view and re-seats the leader.
func (n *Node) AdvanceView() {
	n.mu.Lock()
	n.view++
	view := n.view
	n.mu.Unlock()
	n.engine.SetView(view)
}

// LeaderID resolves the current leader under the configured policy.
func (n *Node) LeaderID() string {
	active := n.peers.ActivePeers()
	ids := make([]string, 0, len(active))
	for id := range active {
		ids = append(ids, id)
	}
	return n.leader.Leader(n.View(), ids)
}

// Status reports the operator-facing snapshot.
func (n *Node) Status() Status {
	return Status{
		NodeID:   n.id,
		LeaderID: n.LeaderID(),
		Height:   n.ledger.Height(),
		View:     n.View(),
	}
}

// Ledger exposes the node's ledger handle to the RPC layer.
func (n *Node) Ledger() Ledger {
	return n.ledger
}

// Peers exposes the peer manager for registration paths.
func (n *Node) Peers() *network.PeerManager {
	return n.peers
}
