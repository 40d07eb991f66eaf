package lendingd

import (
	"log/slog"

	"lendledger/core/events"
	"lendledger/core/types"
	"lendledger/observability/metrics"
)

// Recorder is the engine's event sink in the service: every event becomes a
// structured log line, and the events that track failure-prone paths feed the
// prometheus counters.
type Recorder struct {
	logger  *slog.Logger
	metrics *metrics.LendingMetrics
}

// NewRecorder builds a recorder writing to the given logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger, metrics: metrics.Lending()}
}

// Emit implements events.Emitter.
func (r *Recorder) Emit(evt events.Event) {
	if r == nil || evt == nil {
		return
	}
	record := &types.Event{Type: evt.EventType()}
	if detailed, ok := evt.(interface{ Event() *types.Event }); ok {
		record = detailed.Event()
	}
	args := make([]any, 0, 2+2*len(record.Attributes))
	args = append(args, "event", record.Type)
	for key, value := range record.Attributes {
		args = append(args, key, value)
	}
	r.logger.Info("ledger event", args...)

	switch e := evt.(type) {
	case events.FlashLoaned:
		r.metrics.ObserveFlashLoan("ok")
	case events.LiquidationSettled:
		r.metrics.ObserveLiquidation()
	case events.OracleFailed:
		r.metrics.ObserveOracleFailure(e.Reason)
	}
}
