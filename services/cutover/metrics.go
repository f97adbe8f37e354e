// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cutover

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Cutover Runs
// =============================================================================

var (
	// stageDuration measures how long each stage ran.
	// Labels: stage, status (success, failure)
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flowswap",
		Subsystem: "cutover",
		Name:      "stage_duration_seconds",
		Help:      "Cutover stage duration in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage", "status"})

	// stageFailures counts failed stages by error kind.
	// Labels: stage, kind (not_found, revision_conflict, transport, ...)
	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowswap",
		Subsystem: "cutover",
		Name:      "stage_failures_total",
		Help:      "Total failed cutover stages by error kind",
	}, []string{"stage", "kind"})

	// boundaryConnections records the size of the last discovered boundary.
	// Labels: direction (inbound, outbound)
	boundaryConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "flowswap",
		Subsystem: "cutover",
		Name:      "boundary_connections",
		Help:      "Boundary connections found by the last discovery",
	}, []string{"direction"})

	// retireDeleteFailures counts old outbound connections that could not be
	// deleted during retirement.
	retireDeleteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flowswap",
		Subsystem: "cutover",
		Name:      "retire_delete_failures_total",
		Help:      "Old outbound connections left behind after retirement",
	})

	// runsTotal counts whole runs by outcome.
	// Labels: mode (plan, cutover, deploy), outcome (success, failure)
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowswap",
		Name:      "runs_total",
		Help:      "Total flowswap runs by mode and outcome",
	}, []string{"mode", "outcome"})
)

// =============================================================================
// Recording Functions
// =============================================================================

// RecordStageSuccess records a completed stage.
func RecordStageSuccess(stage Stage, duration time.Duration) {
	stageDuration.WithLabelValues(stage.Slug(), "success").Observe(duration.Seconds())
}

// RecordStageFailure records a failed stage.
func RecordStageFailure(stage Stage, duration time.Duration, err error) {
	stageDuration.WithLabelValues(stage.Slug(), "failure").Observe(duration.Seconds())
	stageFailures.WithLabelValues(stage.Slug(), failureKind(err)).Inc()
}

// RecordBoundary records the size of a discovered boundary.
func RecordBoundary(inbound, outbound int) {
	boundaryConnections.WithLabelValues(Inbound.String()).Set(float64(inbound))
	boundaryConnections.WithLabelValues(Outbound.String()).Set(float64(outbound))
}

// RecordRetireDeleteFailures adds n connections left behind by S6.
func RecordRetireDeleteFailures(n int) {
	retireDeleteFailures.Add(float64(n))
}

// RecordRun records the outcome of a whole run.
func RecordRun(mode string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	runsTotal.WithLabelValues(mode, outcome).Inc()
}
