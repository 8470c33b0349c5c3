// Package metrics provides Prometheus metrics for dnsbot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "dnsbot"

var (
	// BuildInfo exposes version information as labels with a constant value of 1.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information for dnsbot.",
	}, []string{"version", "go_version"})

	// CommandsTotal counts handled commands by outcome.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "commands_total",
		Help:      "Total number of commands handled.",
	}, []string{"command", "outcome"})

	// CommandDuration observes command handling time.
	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "command_duration_seconds",
		Help:      "Time spent handling a command.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"command"})

	// RemoteRequestsTotal counts provider API requests.
	RemoteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "remote_requests_total",
		Help:      "Total number of DNS provider API requests.",
	}, []string{"operation", "outcome"})

	// RemoteRequestDuration observes provider API latency.
	RemoteRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "remote_request_duration_seconds",
		Help:      "DNS provider API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// RecordMutationsTotal counts remote record creates and deletes.
	RecordMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "record_mutations_total",
		Help:      "Total number of DNS record mutations by action and status.",
	}, []string{"action", "status"})

	// RecordsManaged is the number of records in the ledger.
	RecordsManaged = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "records_managed",
		Help:      "Number of DNS records tracked in the ledger.",
	})

	// FlowsActive is the number of live interactive sessions.
	FlowsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "flows_active",
		Help:      "Number of interactive flows awaiting input.",
	})

	// FlowOutcomesTotal counts how interactive flows ended.
	FlowOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "flow_outcomes_total",
		Help:      "Total number of interactive flows by final state.",
	}, []string{"flow", "outcome"})
)

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// RemoteOutcome classifies a provider response for RemoteRequestsTotal.
func RemoteOutcome(status int, err error) string {
	switch {
	case err != nil || status == 0:
		return "error"
	case status == 429:
		return "rate_limited"
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "rejected"
	default:
		return "success"
	}
}
