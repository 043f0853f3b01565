package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "saunalog",
		Subsystem: "ledger",
		Name:      "last_session_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent session row persisted to Postgres.",
	})
	ledgerWriteCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "saunalog",
		Subsystem: "ledger",
		Name:      "writes_total",
		Help:      "Count of committed ledger write transactions, labeled by operation.",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(sessionPersistGauge, ledgerWriteCounter)
}

// RecordSessionPersisted updates the persistence watermark gauge.
func RecordSessionPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	sessionPersistGauge.Set(float64(ts.Unix()))
}

// RecordLedgerWrite counts a committed write transaction for an operation.
func RecordLedgerWrite(op string) {
	ledgerWriteCounter.WithLabelValues(op).Inc()
}
