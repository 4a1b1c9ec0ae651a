package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesTotal counts vote attempts by direction (up, down) and outcome.
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merit_votes_total",
			Help: "The total number of vote attempts",
		},
		[]string{"direction", "status"},
	)

	// MeritSpentTotal tracks merit drawn by votes, split by source (quota, wallet).
	MeritSpentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merit_spent_total",
			Help: "Merit spent on votes by funding source",
		},
		[]string{"source"},
	)

	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merit_withdrawals_total",
			Help: "The total number of withdrawals",
		},
		[]string{"status"},
	)

	// DistributionsTotal counts investment pool distributions by reason.
	DistributionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merit_pool_distributions_total",
			Help: "The total number of investment pool distributions",
		},
		[]string{"reason"},
	)

	PayoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merit_pool_payouts_total",
			Help: "Investment pool payouts by outcome",
		},
		[]string{"status"},
	)

	// MigrationRecords counts records touched by batch migrations.
	MigrationRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merit_migration_records_total",
			Help: "Records handled by batch migrations",
		},
		[]string{"migration", "status"}, // processed, skipped, failed
	)

	TxRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "merit_db_tx_retries_total",
		Help: "Serializable transactions retried after a conflict",
	})
)
