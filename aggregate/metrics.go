package aggregate

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cloneCount       *prometheus.CounterVec
	fetchLatency     *prometheus.HistogramVec
	aggregateLatency prometheus.Histogram
	componentsTotal  prometheus.Gauge
)

// EnableMetrics registers docaggr's run-level metrics with registerer.
//   - docaggr_clone_count - (tags: url, success) count of repository ensure
//     attempts.
//   - docaggr_fetch_latency_seconds - (tags: url) duration of the whole
//     EnsureAll batch, observed once for every URL in it; per-URL fetch
//     time is not measured.
//   - docaggr_aggregate_duration_seconds - latency of one full Run call.
//   - docaggr_components_total - number of component-version buckets
//     produced by the last Run.
func EnableMetrics(namespace string, registerer prometheus.Registerer) {
	cloneCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "docaggr_clone_count",
		Help:      "Count of repository clone/fetch attempts",
	}, []string{"url", "success"})

	fetchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "docaggr_fetch_latency_seconds",
		Help:      "Duration of the clone/fetch batch that covered the repository",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	}, []string{"url"})

	aggregateLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "docaggr_aggregate_duration_seconds",
		Help:      "Latency of one full content aggregation run",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
	})

	componentsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "docaggr_components_total",
		Help:      "Number of component-version buckets produced by the last run",
	})

	registerer.MustRegister(cloneCount, fetchLatency, aggregateLatency, componentsTotal)
}

func recordClone(url string, success bool) {
	if cloneCount == nil {
		return
	}
	cloneCount.WithLabelValues(url, strconv.FormatBool(success)).Inc()
}

func recordFetchLatency(url string, start time.Time) {
	if fetchLatency == nil {
		return
	}
	fetchLatency.WithLabelValues(url).Observe(time.Since(start).Seconds())
}

func recordRun(start time.Time, componentCount int) {
	if aggregateLatency != nil {
		aggregateLatency.Observe(time.Since(start).Seconds())
	}
	if componentsTotal != nil {
		componentsTotal.Set(float64(componentCount))
	}
}
