package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	betTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bet_requests_total",
			Help: "Total bet requests by result",
		},
		[]string{"result"},
	)

	betDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bet_request_duration_ms",
			Help:    "Bet request duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result"},
	)

	betAmount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bet_amount_total",
			Help: "Total accepted bet amount",
		},
	)
)

// RecordBet records business metrics for a bet call.
// result should be "success" or "fail".
func RecordBet(result string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	betTotal.WithLabelValues(res).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	betDuration.WithLabelValues(res).Observe(durMs)
}

// RecordBetAmount 累加成功入账的投注金额
func RecordBetAmount(amount float64) {
	if amount > 0 {
		betAmount.Add(amount)
	}
}
