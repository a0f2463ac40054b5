package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ConsensusMetrics tracks the voting engine.
type ConsensusMetrics struct {
	ProposalsAdded     prometheus.Counter
	ProposalsCommitted prometheus.Counter
	ProposalsRejected  prometheus.Counter
	VotesReceived      *prometheus.CounterVec
	VotesDropped       prometheus.Counter
	Equivocations      prometheus.Counter
	PoolSize           prometheus.Gauge
}

// LedgerMetrics tracks the store and the transaction engine.
type LedgerMetrics struct {
	BinlogAppends   prometheus.Counter
	Duplicates      prometheus.Counter
	EntriesApplied  prometheus.Counter
	TxRejected      *prometheus.CounterVec
	ReplayedRecords prometheus.Counter
}

var (
	consensusOnce sync.Once
	consensusReg  *ConsensusMetrics

	ledgerOnce sync.Once
	ledgerReg  *LedgerMetrics
)

// Consensus returns the lazily-initialised consensus metrics registry.
func Consensus() *ConsensusMetrics {
	consensusOnce.Do(func() {
		consensusReg = &ConsensusMetrics{
			ProposalsAdded: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "atlas", Subsystem: "consensus", Name: "proposals_added_total",
				Help: "Proposals accepted into the pool.",
			}),
			ProposalsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "atlas", Subsystem: "consensus", Name: "proposals_committed_total",
				Help: "Proposals that passed the Commit phase and were persisted.",
			}),
			ProposalsRejected: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "atlas", Subsystem: "consensus", Name: "proposals_rejected_total",
				Help: "Proposals that timed out or failed durability.",
			}),
			VotesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "atlas", Subsystem: "consensus", Name: "votes_received_total",
				Help: "Votes recorded, segmented by phase.",
			}, []string{"phase"}),
			VotesDropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "atlas", Subsystem: "consensus", Name: "votes_dropped_total",
				Help: "Votes dropped because the voter was not an active peer.",
			}),
			Equivocations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "atlas", Subsystem: "consensus", Name: "equivocations_total",
				Help: "Conflicting votes observed and forwarded to the slashing sink.",
			}),
			PoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "atlas", Subsystem: "consensus", Name: "pool_size",
				Help: "Proposals currently awaiting a terminal state.",
			}),
		}
		prometheus.MustRegister(
			consensusReg.ProposalsAdded,
			consensusReg.ProposalsCommitted,
			consensusReg.ProposalsRejected,
			consensusReg.VotesReceived,
			consensusReg.VotesDropped,
			consensusReg.Equivocations,
			consensusReg.PoolSize,
		)
	})
	return consensusReg
}

// Ledger returns the lazily-initialised ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerReg = &LedgerMetrics{
			BinlogAppends: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "atlas", Subsystem: "ledger", Name: "binlog_appends_total",
				Help: "Proposals appended to the binlog.",
			}),
			Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "atlas", Subsystem: "ledger", Name: "duplicates_total",
				Help: "Append attempts refused because a transaction hash was already indexed.",
			}),
			EntriesApplied: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "atlas", Subsystem: "ledger", Name: "entries_applied_total",
				Help: "Ledger entries applied to account state.",
			}),
			TxRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "atlas", Subsystem: "ledger", Name: "tx_rejected_total",
				Help: "Transactions rejected during apply, segmented by reason.",
			}, []string{"reason"}),
			ReplayedRecords: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "atlas", Subsystem: "ledger", Name: "replayed_records_total",
				Help: "Binlog records replayed during startup recovery.",
			}),
		}
		prometheus.MustRegister(
			ledgerReg.BinlogAppends,
			ledgerReg.Duplicates,
			ledgerReg.EntriesApplied,
			ledgerReg.TxRejected,
			ledgerReg.ReplayedRecords,
		)
	})
	return ledgerReg
}
