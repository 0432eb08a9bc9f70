// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

// Package metrics provides Prometheus metrics for the event pipeline,
// the risk classifier, and the WebSocket delivery layer. Metrics are
// exposed at /metrics in Prometheus text format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsProcessed counts location events run through the pipeline.
	EventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safetrail_events_processed_total",
		Help: "Total location events processed by the pipeline",
	})

	// RiskScore observes classifier output scores.
	RiskScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "safetrail_risk_score",
		Help:    "Distribution of risk scores produced by the classifier",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	// AnomaliesDetected counts events flagged as anomalous.
	AnomaliesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safetrail_anomalies_detected_total",
		Help: "Total events flagged as anomalous by the classifier",
	})

	// ZoneViolations counts geofence violations by zone type.
	ZoneViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetrail_zone_violations_total",
		Help: "Total geofence violations detected",
	}, []string{"zone_type"})

	// AlertsDispatched counts alerts by kind and severity.
	AlertsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetrail_alerts_dispatched_total",
		Help: "Total alerts created by the dispatcher",
	}, []string{"kind", "severity"})

	// ModelRetrains counts completed retrain operations.
	ModelRetrains = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safetrail_model_retrains_total",
		Help: "Total successful model retrain operations",
	})

	// WebsocketConnections tracks currently registered connections.
	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "safetrail_websocket_connections_active",
		Help: "Currently registered WebSocket connections",
	})

	// WebsocketMessagesSent counts delivered messages by type.
	WebsocketMessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetrail_websocket_messages_sent_total",
		Help: "Total WebSocket messages delivered",
	}, []string{"message_type"})

	// WebsocketSendFailures counts failed deliveries.
	WebsocketSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safetrail_websocket_send_failures_total",
		Help: "Total failed WebSocket deliveries (connection removed)",
	})

	// HTTPRequests counts HTTP requests by method, path pattern and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetrail_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPDuration observes HTTP request latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "safetrail_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"method", "path"})
)

// statusRecorder captures the response status for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware instruments handlers with request counts and latency.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		HTTPRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
