package bft

import (
	"atlaschain/core/types"
)

// ProposalPool holds proposals from submission until they reach a terminal
// state. Owned by the Engine.
type ProposalPool struct {
	proposals map[string]*types.Proposal
}

func NewProposalPool() *ProposalPool {
	return &ProposalPool{proposals: make(map[string]*types.Proposal)}
}

// Add inserts a proposal. Content-addressed ids make a second submission of
// identical content a no-op; Add reports whether the proposal was new.
func (p *ProposalPool) Add(proposal *types.Proposal) bool {
	if _, exists := p.proposals[proposal.ID]; exists {
		return false
	}
	p.proposals[proposal.ID] = proposal
	return true
}

func (p *ProposalPool) Remove(id string) {
	delete(p.proposals, id)
}

func (p *ProposalPool) Find(id string) (*types.Proposal, bool) {
	proposal, ok := p.proposals[id]
	return proposal, ok
}

func (p *ProposalPool) Len() int {
	return len(p.proposals)
}

// All returns the pooled proposals keyed by id.
func (p *ProposalPool) All() map[string]*types.Proposal {
	out := make(map[string]*types.Proposal, len(p.proposals))
	for id, proposal := range p.proposals {
		out[id] = proposal
	}
	return out
}

func (p *ProposalPool) Clear() {
	p.proposals = make(map[string]*types.Proposal)
}
