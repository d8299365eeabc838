package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	AuctionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_auctions_created_total",
		Help: "The total number of Dutch auctions started",
	})

	AuctionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_auctions_closed_total",
		Help: "The total number of auctions that left the active state, by outcome",
	}, []string{"status"})

	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_orders_created_total",
		Help: "The total number of cross-chain orders created",
	}, []string{"src_chain_id", "dst_chain_id"})

	OrdersFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_orders_finished_total",
		Help: "The total number of orders reaching a terminal status",
	}, []string{"src_chain_id", "status"})

	StepsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_steps_executed_total",
		Help: "The total number of pipeline steps executed, by action and result",
	}, []string{"chain_id", "action", "result"})

	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_step_duration_seconds",
		Help:    "Time taken by the chain to confirm a pipeline step",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // Start at 500ms with 10 buckets doubling in size
	}, []string{"chain_id", "action"})

	SettlementErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_errors_total",
		Help: "Total number of errors by type",
	}, []string{"chain_id", "error_type"})

	SecretVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_secret_verifications_total",
		Help: "Secret reveal checks by result",
	}, []string{"result"})

	EvidenceRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_evidence_recorded_total",
		Help: "The total number of on-chain evidence records appended",
	}, []string{"chain_id"})

	OpenOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_open_orders",
		Help: "The number of non-terminal orders seen by the last sweep",
	})

	DriverQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_driver_queue_size",
		Help: "Current number of orders waiting for a driver worker",
	})

	DriverSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_driver_skipped_total",
		Help: "Advances skipped by the driver, by reason",
	}, []string{"chain_id", "reason"})

	CircuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_circuit_breaker_trips_total",
		Help: "The total number of times a chain circuit breaker opened",
	}, []string{"chain_id"})
)
