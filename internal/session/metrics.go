// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for choice metrics.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusNotFound    = "not_found"
	StatusUnavailable = "unavailable"
	StatusCompleted   = "completed"
	StatusConflict    = "conflict"
)

// SessionsStarted is the counter for started play sessions.
// Use RegisterMetrics to register this with a Prometheus registry.
var SessionsStarted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fableforge_sessions_started_total",
		Help: "Total number of play sessions started",
	},
	[]string{"story"},
)

// SessionsCompleted is the counter for completed play sessions.
// Use RegisterMetrics to register this with a Prometheus registry.
var SessionsCompleted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fableforge_sessions_completed_total",
		Help: "Total number of play sessions reaching an ending",
	},
	[]string{"story"},
)

// ChoicesMade is the counter for choice resolutions.
// Use RegisterMetrics to register this with a Prometheus registry.
var ChoicesMade = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fableforge_choices_made_total",
		Help: "Total number of choice resolutions",
	},
	[]string{"story", "status"},
)

// ChoiceDuration is the histogram for choice resolution duration.
// Use RegisterMetrics to register this with a Prometheus registry.
var ChoiceDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "fableforge_choice_duration_seconds",
		Help:    "Choice resolution duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"story"},
)

// SnapshotOperations is the counter for saved game operations.
// Use RegisterMetrics to register this with a Prometheus registry.
var SnapshotOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fableforge_snapshot_operations_total",
		Help: "Total number of saved game operations",
	},
	[]string{"operation", "status"},
)

// RegisterMetrics registers session package metrics with the given Prometheus registry.
// This must be called at startup to make metrics available on /metrics.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(SessionsStarted)
	reg.MustRegister(SessionsCompleted)
	reg.MustRegister(ChoicesMade)
	reg.MustRegister(ChoiceDuration)
	reg.MustRegister(SnapshotOperations)
}
