package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	oraclePollTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_polls_total",
			Help: "Total Horizon ledger polls by result",
		},
		[]string{"result"},
	)

	oracleAwaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_await_ledger_duration_ms",
			Help:    "Time spent waiting for the next Horizon ledger in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10),
		},
		[]string{"result"},
	)

	oracleLedgerSeq = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_last_ledger_sequence",
			Help: "Sequence of the last ledger used for a draw",
		},
	)
)

// RecordOraclePoll 记录一次 Horizon 轮询
// result: "hit" | "pending" | "error"
func RecordOraclePoll(result string) {
	switch result {
	case "hit", "pending":
	default:
		result = "error"
	}
	oraclePollTotal.WithLabelValues(result).Inc()
}

// RecordOracleAwait 记录一次等待下一账本的总耗时
// result: "success" | "timeout" | "error"
func RecordOracleAwait(result string, started time.Time) {
	switch result {
	case "success", "timeout":
	default:
		result = "error"
	}
	durMs := float64(time.Since(started).Milliseconds())
	oracleAwaitDuration.WithLabelValues(result).Observe(durMs)
}

// SetOracleLedgerSequence 记录最近一次用于开奖的账本序号
func SetOracleLedgerSequence(seq int64) {
	oracleLedgerSeq.Set(float64(seq))
}
