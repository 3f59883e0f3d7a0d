// Package metrics declares the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DepositsTotal counts deposit submissions by outcome (verdict tag or error kind).
	DepositsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deposits_total",
			Help: "Deposit submissions by outcome",
		},
		[]string{"network", "outcome"},
	)

	ChainProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chain_provider_requests_total",
			Help: "Blockchain provider lookups by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ChainProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chain_provider_latency_seconds",
			Help:    "Latency of blockchain provider lookups",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"provider"},
	)

	StakesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakes_total",
			Help: "Stake lifecycle events",
		},
		[]string{"event"},
	)

	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "withdrawals_total",
			Help: "Withdrawal status transitions",
		},
		[]string{"status"},
	)

	ReferralBonusesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_two_bonus_awarded_total",
			Help: "One-time two-referral bonuses awarded",
		},
	)
)
