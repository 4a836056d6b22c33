package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	StakeOperationsTotal    *prometheus.CounterVec
	StakeAmountTotal        *prometheus.CounterVec
	ClausesPerTransaction   prometheus.Histogram
	RateLimitRejectedTotal  prometheus.Counter
	OptimisticRollbackTotal prometheus.Counter
	SubmitDuration          *prometheus.HistogramVec
}

// Global Metrics Instance
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = &BusinessMetrics{
		StakeOperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "staking_operations_total",
			Help: "The total number of stake/unstake operations by outcome",
		}, []string{"operation", "outcome"}),
		StakeAmountTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "staking_amount_total",
			Help: "The total amount staked/unstaked in display units",
		}, []string{"operation"}),
		ClausesPerTransaction: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "staking_clauses_per_transaction",
			Help:    "Number of clauses per submitted transaction",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
		RateLimitRejectedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "staking_rate_limit_rejected_total",
			Help: "Operations rejected by the sliding-window rate limiter",
		}),
		OptimisticRollbackTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "staking_optimistic_rollback_total",
			Help: "Optimistic cache updates rolled back after a failed submission",
		}),
		SubmitDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staking_submit_duration_seconds",
			Help:    "Duration of transaction submission and confirmation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}
