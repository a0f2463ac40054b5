package bft

import (
	coreerrors "atlaschain/core/errors"
	"atlaschain/core/types"
)

// VoteRegistry records, per proposal and phase, which voter cast which vote.
// It is owned by the Engine and is not safe for unguarded concurrent use.
type VoteRegistry struct {
	// proposal id -> phase -> voter -> vote
	votes map[string]map[types.Phase]map[string]types.Vote
}

func NewVoteRegistry() *VoteRegistry {
	return &VoteRegistry{votes: make(map[string]map[types.Phase]map[string]types.Vote)}
}

// RegisterProposal creates the outer entry for a proposal. Idempotent.
func (r *VoteRegistry) RegisterProposal(id string) {
	if _, ok := r.votes[id]; !ok {
		r.votes[id] = make(map[types.Phase]map[string]types.Vote)
	}
}

// RegisterVote inserts a vote. A second, identical vote is a silent no-op. A
// contradicting vote returns an EquivocationError and leaves the prior vote
// standing: the protocol treats equivocation as a slashable observation, not
// a correction.
func (r *VoteRegistry) RegisterVote(id string, phase types.Phase, voter string, vote types.Vote) error {
	r.RegisterProposal(id)
	phaseVotes, ok := r.votes[id][phase]
	if !ok {
		phaseVotes = make(map[string]types.Vote)
		r.votes[id][phase] = phaseVotes
	}
	if existing, ok := phaseVotes[voter]; ok {
		if existing == vote {
			return nil
		}
		return &coreerrors.EquivocationError{
			ProposalID: id,
			Phase:      phase.String(),
			Voter:      voter,
			Prior:      existing.String(),
			Conflict:   vote.String(),
		}
	}
	phaseVotes[voter] = vote
	return nil
}

// CountYes returns the number of Yes votes recorded for (id, phase).
func (r *VoteRegistry) CountYes(id string, phase types.Phase) int {
	count := 0
	for _, vote := range r.votes[id][phase] {
		if vote == types.VoteYes {
			count++
		}
	}
	return count
}

// Votes returns a copy of the voter->vote map for (id, phase).
func (r *VoteRegistry) Votes(id string, phase types.Phase) map[string]types.Vote {
	src := r.votes[id][phase]
	out := make(map[string]types.Vote, len(src))
	for voter, vote := range src {
		out[voter] = vote
	}
	return out
}

// Proposals lists every proposal id the registry has seen.
func (r *VoteRegistry) Proposals() []string {
	out := make([]string, 0, len(r.votes))
	for id := range r.votes {
		out = append(out, id)
	}
	return out
}

// Remove drops every record for a proposal once it reaches a terminal state.
func (r *VoteRegistry) Remove(id string) {
	delete(r.votes, id)
}

// Replace bulk-loads persisted vote state. Used only during recovery.
func (r *VoteRegistry) Replace(state map[string]map[types.Phase]map[string]types.Vote) {
	r.votes = make(map[string]map[types.Phase]map[string]types.Vote, len(state))
	for id, phases := range state {
		r.votes[id] = make(map[types.Phase]map[string]types.Vote, len(phases))
		for phase, voters := range phases {
			inner := make(map[string]types.Vote, len(voters))
			for voter, vote := range voters {
				inner[voter] = vote
			}
			r.votes[id][phase] = inner
		}
	}
}
