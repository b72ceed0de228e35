package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Probe metrics
	probesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkguard",
			Subsystem: "probe",
			Name:      "probes_total",
			Help:      "Total number of URL probes",
		},
		[]string{"outcome"},
	)

	probeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "linkguard",
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "Duration of a single URL probe in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// Scan pass metrics
	passesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "linkguard",
			Subsystem: "scheduler",
			Name:      "passes_total",
			Help:      "Total number of completed scan passes",
		},
	)

	passDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "linkguard",
			Subsystem: "scheduler",
			Name:      "pass_duration_seconds",
			Help:      "Duration of a full scan pass in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	quotaSkipsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "linkguard",
			Subsystem: "scheduler",
			Name:      "quota_skips_total",
			Help:      "Number of users skipped because their recent scans met the plan quota",
		},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkguard",
			Subsystem: "notifier",
			Name:      "reports_total",
			Help:      "Total number of scan report emails attempted",
		},
		[]string{"status"},
	)
)

// RecordProbe tracks one probe outcome and its latency
func RecordProbe(accessible bool, reachable bool, elapsed time.Duration) {
	outcome := "ok"
	switch {
	case !reachable:
		outcome = "unreachable"
	case !accessible:
		outcome = "inaccessible"
	}
	probesTotal.WithLabelValues(outcome).Inc()
	probeDuration.Observe(elapsed.Seconds())
}

// RecordPass tracks one completed scan pass
func RecordPass(elapsed time.Duration) {
	passesTotal.Inc()
	passDuration.Observe(elapsed.Seconds())
}

// RecordQuotaSkip tracks a user skipped on quota
func RecordQuotaSkip() {
	quotaSkipsTotal.Inc()
}

// RecordNotification tracks a report email attempt
func RecordNotification(err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	notificationsTotal.WithLabelValues(status).Inc()
}
