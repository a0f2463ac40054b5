package bft

import (
	"sort"
)

// LeaderPolicy picks the proposer for a view. The protocol runs a static
// leader per view; the policy is the pluggable part.
type LeaderPolicy interface {
	Leader(view uint64, peers []string) string
}

// RoundRobinLeader rotates leadership over the sorted peer set, one peer per
// view. Sorting keeps the choice identical on every node.
type RoundRobinLeader struct{}

func (RoundRobinLeader) Leader(view uint64, peers []string) string {
	if len(peers) == 0 {
		return ""
	}
	sorted := append([]string(nil), peers...)
	sort.Strings(sorted)
	return sorted[int(view%uint64(len(sorted)))]
}

// FixedLeader always returns the configured node, for deployments with a
// designated sequencer.
type FixedLeader struct {
	NodeID string
}

func (f FixedLeader) Leader(uint64, []string) string {
	return f.NodeID
}
