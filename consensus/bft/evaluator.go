package bft

import (
	"fmt"
	"math"

	"atlaschain/core/types"
)

// QuorumPolicy derives the Yes-vote threshold from the active voter set.
type QuorumPolicy struct {
	Fraction  float64
	MinVoters int
}

// Validate rejects fractions outside (0, 1].
func (p QuorumPolicy) Validate() error {
	if p.Fraction <= 0 || p.Fraction > 1 {
		return fmt.Errorf("quorum fraction %v outside (0, 1]", p.Fraction)
	}
	if p.MinVoters < 0 {
		return fmt.Errorf("negative min voters %d", p.MinVoters)
	}
	return nil
}

// Threshold is max(min_voters, ceil(active * fraction)). Ties approve.
func (p QuorumPolicy) Threshold(active int) int {
	required := int(math.Ceil(float64(active) * p.Fraction))
	if required < p.MinVoters {
		required = p.MinVoters
	}
	return required
}

// Evaluator answers, per proposal and phase, whether the Yes count has
// crossed quorum. It only ever looks at Yes votes; No and Abstain carry no
// weight here. Results are emitted once per (proposal, phase): repeated calls
// report only thresholds newly crossed since the previous call.
type Evaluator struct {
	policy  QuorumPolicy
	emitted map[string]struct{}
}

func NewEvaluator(policy QuorumPolicy) *Evaluator {
	return &Evaluator{policy: policy, emitted: make(map[string]struct{})}
}

// Policy returns the configured quorum policy.
func (e *Evaluator) Policy() QuorumPolicy {
	return e.policy
}

// Evaluate inspects each proposal in current at its present phase and
// returns a ConsensusResult for every one that has newly reached quorum.
func (e *Evaluator) Evaluate(registry *VoteRegistry, active map[string]struct{}, current map[string]types.Phase) []types.ConsensusResult {
	threshold := e.policy.Threshold(len(active))
	var results []types.ConsensusResult
	for id, phase := range current {
		yes := registry.CountYes(id, phase)
		if yes < threshold {
			continue
		}
		key := resultKey(id, phase)
		if _, seen := e.emitted[key]; seen {
			continue
		}
		e.emitted[key] = struct{}{}
		results = append(results, types.ConsensusResult{
			ProposalID: id,
			Phase:      phase,
			Approved:   true,
			YesVotes:   yes,
		})
	}
	return results
}

// Forget clears emission tracking for a terminal proposal.
func (e *Evaluator) Forget(id string) {
	for _, phase := range []types.Phase{types.PhasePrepare, types.PhasePreCommit, types.PhaseCommit} {
		delete(e.emitted, resultKey(id, phase))
	}
}

func resultKey(id string, phase types.Phase) string {
	return fmt.Sprintf("%s|%d", id, phase)
}
