package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustline_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trustline_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})
)

// Moderation metrics
var (
	ReportsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustline_reports_created_total",
		Help: "Total number of reports submitted",
	}, []string{"target_type", "reason"})

	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustline_actions_total",
		Help: "Total number of dispatched moderation actions by outcome",
	}, []string{"action", "outcome"})

	PermissionDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustline_permission_denials_total",
		Help: "Total number of actions denied by the permission matrix",
	}, []string{"role", "action"})
)

// Recovery metrics
var (
	RestoresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustline_restores_total",
		Help: "Total number of restoration attempts by outcome",
	}, []string{"outcome"})

	SweepRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trustline_sweep_removed_total",
		Help: "Total number of expired soft-delete records purged",
	})

	SoftDeletedRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trustline_soft_deleted_records",
		Help: "Number of live soft-delete records awaiting expiry or restore",
	})
)

// NormalizePath maps request paths onto a bounded set of label values so
// the per-path metrics stay low-cardinality.
func NormalizePath(path string) string {
	segments := splitPath(path)
	if len(segments) < 3 || segments[0] != "api" {
		return path
	}

	switch segments[1] {
	case "reports":
		if len(segments) == 3 {
			return "/api/reports/:id"
		}
		if len(segments) == 4 && segments[3] == "actions" {
			return "/api/reports/:id/actions"
		}
	case "restore":
		if len(segments) == 3 {
			return "/api/restore/:token"
		}
	}

	return path
}

func splitPath(path string) []string {
	// Skip leading slash
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	// Split on /
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i > start {
				segments = append(segments, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		segments = append(segments, path[start:])
	}
	return segments
}

// Business gauges updated periodically by the collector
var (
	PendingReportsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trustline_pending_reports",
		Help: "Number of reports awaiting triage",
	})

	ReviewedReportsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trustline_reviewed_reports",
		Help: "Number of reports under review",
	})
)
