// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// triage pipeline.
//
// # Description
//
// This package implements Prometheus metrics for monitoring incident
// triage. Metrics include:
//   - Incident counters (by category, priority, and outcome)
//   - Classification confidence histograms and fallback counters
//   - Routing decision counters (by team, forced/diverted)
//   - Escalation counters by ladder level
//   - Active incident gauges and end-to-end pipeline latency
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "triage"

// TriageMetrics holds all Prometheus metrics for the triage pipeline.
// Initialize once at startup via NewTriageMetrics().
type TriageMetrics struct {
	// IncidentsTotal counts triaged incidents.
	// Labels: category, priority
	IncidentsTotal *prometheus.CounterVec

	// ClassificationConfidence observes the fused confidence of every
	// successful classification.
	ClassificationConfidence prometheus.Histogram

	// ClassificationFallbacksTotal counts incidents that fell back to
	// the default category.
	ClassificationFallbacksTotal prometheus.Counter

	// RoutingDecisionsTotal counts assignments.
	// Labels: team, forced (true/false)
	RoutingDecisionsTotal *prometheus.CounterVec

	// EscalationsTotal counts fired escalations.
	// Labels: level (1, 2, 3)
	EscalationsTotal *prometheus.CounterVec

	// ActiveIncidents gauges incidents currently open in the pipeline.
	ActiveIncidents prometheus.Gauge

	// TriageDurationSeconds observes the classify-tag-route latency per
	// incident.
	TriageDurationSeconds prometheus.Histogram

	// TagsPerIncident observes the derived tag-set size.
	TagsPerIncident prometheus.Histogram
}

// NewTriageMetrics creates and registers all pipeline metrics on the
// default registry. Call exactly once per process.
func NewTriageMetrics() *TriageMetrics {
	return newTriageMetrics(prometheus.DefaultRegisterer)
}

// NewTriageMetricsWithRegistry registers on a caller-owned registry;
// used by tests to avoid duplicate registration.
func NewTriageMetricsWithRegistry(reg prometheus.Registerer) *TriageMetrics {
	return newTriageMetrics(reg)
}

func newTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	factory := promauto.With(reg)
	return &TriageMetrics{
		IncidentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "incidents_total",
			Help:      "Triaged incidents by classified category and priority.",
		}, []string{"category", "priority"}),

		ClassificationConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "classification_confidence",
			Help:      "Fused classification confidence.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
		}),

		ClassificationFallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "classification_fallbacks_total",
			Help:      "Incidents classified by fallback because no method produced a confident category.",
		}),

		RoutingDecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "routing_decisions_total",
			Help:      "Routing decisions by assigned team and forced flag.",
		}, []string{"team", "forced"}),

		EscalationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "escalations_total",
			Help:      "Fired escalations by ladder level.",
		}, []string{"level"}),

		ActiveIncidents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_incidents",
			Help:      "Incidents currently open in the pipeline.",
		}),

		TriageDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "duration_seconds",
			Help:      "End-to-end classify, tag, and route latency per incident.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),

		TagsPerIncident: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "tags_per_incident",
			Help:      "Number of tags derived per incident.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
	}
}
