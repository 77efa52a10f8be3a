package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EditsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edits_started_total",
		Help: "Total number of inline edits started",
	}, []string{"kind"})

	EditsCommittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edits_committed_total",
		Help: "Total number of inline edits committed to the store",
	}, []string{"kind"})

	EditsCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edits_cancelled_total",
		Help: "Total number of inline edits cancelled",
	}, []string{"kind"})

	EditValidationFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edit_validation_failed_total",
		Help: "Total number of commits rejected before reaching the store",
	}, []string{"kind"})

	RemoteWriteFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remote_write_failed_total",
		Help: "Total number of store writes that failed",
	}, []string{"kind"})

	CommitLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edit_commit_latency_seconds",
		Help:    "Latency of the store write behind a commit",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	CacheRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_refresh_total",
		Help: "Total number of cache slice refreshes",
	}, []string{"slice", "result"})

	CacheRefreshLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cache_refresh_latency_seconds",
		Help:    "Latency of cache slice refreshes",
		Buckets: prometheus.DefBuckets,
	}, []string{"slice"})

	PullRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pull_refresh_total",
		Help: "Total number of released pull gestures",
	}, []string{"outcome"})

	AuthEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_events_total",
		Help: "Total number of auth lifecycle events emitted",
	}, []string{"event"})

	ActiveWorkspaces = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_workspaces",
		Help: "Number of open per-session workspaces",
	})

	ChangeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "change_events_total",
		Help: "Total number of change events by direction and result",
	}, []string{"direction", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
