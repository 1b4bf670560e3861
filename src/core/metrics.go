package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Block metrics
	blocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rationd_blocks_total",
		Help: "Total number of candidate blocks processed",
	}, []string{"status"})

	// Transaction metrics
	transactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rationd_transactions_total",
		Help: "Total number of transactions processed",
	}, []string{"type", "status"})

	// Consensus metrics
	consensusRoundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rationd_consensus_rounds_total",
		Help: "Total number of consensus rounds",
	}, []string{"outcome"})

	consensusVotes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rationd_consensus_votes",
		Help: "Total votes cast across consensus rounds",
	}, []string{"vote"})

	// Mining metrics
	miningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rationd_mining_duration_seconds",
		Help:    "Duration of proof-of-work searches",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	miningAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rationd_mining_attempts",
		Help:    "Nonce increments needed per mined block",
		Buckets: prometheus.ExponentialBuckets(1, 4, 12),
	})

	// Gauge metrics
	registeredNodesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rationd_registered_nodes",
		Help: "Current number of registered nodes",
	})

	resourceAllocatedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rationd_resource_allocated",
		Help: "Currently allocated amount per node and resource",
	}, []string{"node", "resource"})

	// Snapshot metrics
	snapshotBytesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rationd_snapshot_bytes",
		Help: "Size of the last persisted snapshot",
	})

	snapshotSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rationd_snapshot_saves_total",
		Help: "Total number of snapshot save attempts",
	}, []string{"status"})

	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rationd_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rationd_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// RecordBlockProcessed records a candidate block outcome
func RecordBlockProcessed(accepted bool) {
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	blocksTotal.WithLabelValues(status).Inc()
}

// RecordTransactionProcessed records a transaction processing event
func RecordTransactionProcessed(txType TransactionType, accepted bool) {
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	transactionsTotal.WithLabelValues(string(txType), status).Inc()
}

// RecordConsensusRound records the outcome and per-vote tallies of a round
func RecordConsensusRound(details VoteDetails) {
	outcome := "rejected"
	if details.Reached {
		outcome = "approved"
	}
	consensusRoundsTotal.WithLabelValues(outcome).Inc()

	consensusVotes.WithLabelValues("approve").Add(float64(details.VotesFor))
	consensusVotes.WithLabelValues("reject").Add(float64(details.VotesAgainst))
	consensusVotes.WithLabelValues("abstain").Add(float64(details.Abstentions))
}

// RecordMining records the cost of one proof-of-work search
func RecordMining(duration time.Duration, nonce uint64) {
	miningDuration.Observe(duration.Seconds())
	miningAttempts.Observe(float64(nonce + 1))
}

// RecordSnapshotSave records a snapshot save attempt and its size
func RecordSnapshotSave(ok bool, bytes int) {
	status := "ok"
	if !ok {
		status = "error"
	}
	snapshotSavesTotal.WithLabelValues(status).Inc()
	if ok {
		snapshotBytesGauge.Set(float64(bytes))
	}
}
