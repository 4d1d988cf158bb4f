package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "stackspend"
)

var (
	jobDurationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}

	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Time taken to serve HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// Job Metrics
	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Count of background job executions.",
	}, []string{"job", "status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Time taken for a background job pass to complete.",
		Buckets:   jobDurationBuckets,
	}, []string{"job"})

	JobLastSuccessTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "job_last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful job pass.",
	}, []string{"job"})

	RenewalRemindersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "renewal_reminders_total",
		Help:      "Number of renewal reminders recorded.",
	})

	// Discovery Metrics
	DiscoveredApps = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "discovered_apps",
		Help:      "Applications reported by each discovery source in its last pass.",
	}, []string{"source"})

	DiscoveryAutoLinksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discovery_auto_links_total",
		Help:      "Discoveries linked to an existing application by domain or name.",
	}, []string{"source"})

	LogoResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logo_resolutions_total",
		Help:      "Logo lookups by outcome (cache, probe, fallback).",
	}, []string{"result"})

	CostImportRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cost_import_records_total",
		Help:      "Cost records written by the cost import job.",
	})
)
