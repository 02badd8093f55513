package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "round_resolutions_total",
			Help: "Total round resolution attempts by result",
		},
		[]string{"result"},
	)

	resolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "round_resolution_duration_ms",
			Help:    "Round resolution duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12),
		},
		[]string{"result"},
	)

	lastWinningNumber = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "round_last_winning_number",
			Help: "Winning number of the most recently resolved round",
		},
	)

	payoutTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "round_payout_amount_total",
			Help: "Total amount paid out to winners",
		},
	)
)

// RecordResolution 记录一次开奖结算的业务指标
// result: "success" | "skipped" | "fail"
func RecordResolution(result string, started time.Time) {
	switch result {
	case "success", "skipped":
	default:
		result = "fail"
	}
	resolutionTotal.WithLabelValues(result).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	resolutionDuration.WithLabelValues(result).Observe(durMs)
}

// RecordDrawOutcome 记录开奖号码与赔付总额
func RecordDrawOutcome(winningNumber int, payout float64) {
	lastWinningNumber.Set(float64(winningNumber))
	if payout > 0 {
		payoutTotal.Add(payout)
	}
}
