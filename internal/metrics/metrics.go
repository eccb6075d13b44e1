// Package metrics exposes engine counters on the default Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bidbot_outcomes_total",
		Help: "Terminal outcomes per candidate, labeled by outcome",
	}, []string{"outcome"})

	skippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bidbot_skipped_total",
		Help: "Candidates dropped by the discovery filter, labeled by reason",
	}, []string{"reason"})

	bidPrice = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bidbot_bid_price",
		Help:    "Submitted bid prices, labeled by pricing tier",
		Buckets: prometheus.ExponentialBuckets(50, 2, 14),
	}, []string{"tier"})

	decisionScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bidbot_decision_score",
		Help:    "Scores returned by the scoring service",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bidbot_run_duration_seconds",
		Help:    "Wall time of a run, labeled by stop reason",
		Buckets: []float64{10, 30, 60, 300, 900, 1800, 3600, 7200},
	}, []string{"stop_reason"})

	weeklySent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bidbot_weekly_sent",
		Help: "Ledger entries dated in the current week",
	})
)

func ObserveOutcome(outcome string) { outcomesTotal.WithLabelValues(outcome).Inc() }

func ObserveSkip(reason string) { skippedTotal.WithLabelValues(reason).Inc() }

func ObservePrice(tier string, price int) { bidPrice.WithLabelValues(tier).Observe(float64(price)) }

func ObserveScore(score int) { decisionScore.Observe(float64(score)) }

func ObserveRun(stopReason string, d time.Duration) {
	if stopReason == "" {
		stopReason = "completed"
	}
	runDuration.WithLabelValues(stopReason).Observe(d.Seconds())
}

func SetWeeklySent(n int) { weeklySent.Set(float64(n)) }
