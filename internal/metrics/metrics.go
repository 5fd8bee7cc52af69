package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/teetime-scheduler/internal/domain/booking"
)

const namespace = "teesched"

var (
	once     sync.Once
	registry = prometheus.NewRegistry()

	outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Processed booking requests by final status.",
		},
		[]string{"status"},
	)
	attempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_attempts",
		Help:      "Booking attempts used per request.",
		Buckets:   []float64{1, 2, 3, 5, 8},
	})
	pending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_pending",
		Help:      "Pending requests left in the queue after the last run.",
	})
	lastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished, by run status.",
		},
		[]string{"status"},
	)
	runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_duration_seconds",
		Help:      "Wall time of the last run.",
	})
)

// Register registers the run metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		registry.MustRegister(outcomes, attempts, pending, lastRun, runDuration)
	})
}

// ObserveOutcome counts one resolved request.
func ObserveOutcome(o booking.Outcome) {
	outcomes.WithLabelValues(string(o.Status)).Inc()
	if o.Attempts > 0 {
		attempts.Observe(float64(o.Attempts))
	}
}

// ObserveRun records the end of a run.
func ObserveRun(status string, started, finished time.Time, pendingLeft int) {
	lastRun.WithLabelValues(status).Set(float64(finished.Unix()))
	runDuration.Set(finished.Sub(started).Seconds())
	pending.Set(float64(pendingLeft))
}

// WriteTextfile writes all registered metrics for the node-exporter textfile collector.
func WriteTextfile(path string) error {
	Register()
	return prometheus.WriteToTextfile(path, registry)
}
