package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch Prometheus metrics.
var (
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usagebar",
			Name:      "fetches_total",
			Help:      "Total number of usage fetch attempts by outcome",
		},
		[]string{"outcome"},
	)

	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "usagebar",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent driving the claude CLI for one fetch",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 7.5, 10, 15, 20, 30, 45},
		},
	)

	QuotaUsedFraction = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "usagebar",
			Name:      "quota_used_fraction",
			Help:      "Fraction of the quota already used, 0 to 1",
		},
		[]string{"quota"},
	)

	LastSuccessTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "usagebar",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful fetch",
		},
	)
)

var registerOnce sync.Once

// Register registers the fetch metrics with the default registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(FetchesTotal)
		prometheus.MustRegister(FetchDuration)
		prometheus.MustRegister(QuotaUsedFraction)
		prometheus.MustRegister(LastSuccessTimestamp)
	})
}

// ObserveFetch records one finished fetch attempt.
func ObserveFetch(outcome string, took time.Duration) {
	FetchesTotal.WithLabelValues(outcome).Inc()
	FetchDuration.Observe(took.Seconds())
}

// SetFractions publishes the headline fractions from a successful fetch.
func SetFractions(session, weekly float64, at time.Time) {
	QuotaUsedFraction.WithLabelValues("session").Set(session)
	QuotaUsedFraction.WithLabelValues("weekly").Set(weekly)
	LastSuccessTimestamp.Set(float64(at.Unix()))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
