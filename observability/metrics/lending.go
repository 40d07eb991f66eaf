package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LendingMetrics struct {
	operations     *prometheus.CounterVec
	opDuration     *prometheus.HistogramVec
	liquidations   prometheus.Counter
	flashLoans     *prometheus.CounterVec
	oracleFailures *prometheus.CounterVec
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_operations_total",
				Help: "Count of lending operations by kind and outcome.",
			}, []string{"operation", "outcome"}),
			opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "lending_operation_duration_seconds",
				Help:    "Latency of lending operations by kind.",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lending_liquidations_total",
				Help: "Count of settled liquidations.",
			}),
			flashLoans: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_flash_loans_total",
				Help: "Count of flash loans by outcome.",
			}, []string{"outcome"}),
			oracleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_oracle_failures_total",
				Help: "Count of rejected oracle observations by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.opDuration,
			lendingRegistry.liquidations,
			lendingRegistry.flashLoans,
			lendingRegistry.oracleFailures,
		)
	})
	return lendingRegistry
}

// ObserveOperation records one completed operation with its outcome and latency.
func (m *LendingMetrics) ObserveOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.opDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveLiquidation records a settled liquidation.
func (m *LendingMetrics) ObserveLiquidation() {
	if m == nil {
		return
	}
	m.liquidations.Inc()
}

// ObserveFlashLoan records a flash loan attempt.
func (m *LendingMetrics) ObserveFlashLoan(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.flashLoans.WithLabelValues(outcome).Inc()
}

// ObserveOracleFailure records a rejected price observation.
func (m *LendingMetrics) ObserveOracleFailure(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.oracleFailures.WithLabelValues(reason).Inc()
}
