package metrics

import "time"

// Metric names emitted by the settlement flow.
const (
	SettleAttempts   = "settle_attempts"
	SettleSucceeded  = "settle_succeeded"
	SettleFailed     = "settle_failed"
	BatchFallback    = "batch_fallback"
	RecordUnresolved = "record_unreconciled"

	LatencySettle = "settle"
	LatencyQuote  = "quote"
	LatencyRead   = "read_balances"
	LatencyExec   = "execute"
	LatencyRecord = "record"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
