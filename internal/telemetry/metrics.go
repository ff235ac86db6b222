// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry provides utilities for setting up and configuring
// application observability, including logging, tracing, and metrics.
// This file holds the Prometheus collectors scraped from /metrics. Labels stay
// low cardinality: no owner or work ids.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationRequestsTotal counts finished generation runs by outcome.
	GenerationRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adgen_generation_requests_total",
		Help: "Total number of generation runs, by outcome (completed/degraded/failed/rejected).",
	}, []string{"outcome"})

	// GenerationDuration observes the wall time of a generation run.
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "adgen_generation_duration_seconds",
		Help:    "Wall time of a generation run from admission to response.",
		Buckets: []float64{10, 30, 60, 120, 240, 480, 900},
	})

	// SegmentsGeneratedTotal counts segments the model returned and were saved.
	SegmentsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adgen_segments_generated_total",
		Help: "Total number of video segments generated and saved.",
	})

	// InflightGenerations tracks runs holding a generation slot.
	InflightGenerations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "adgen_inflight_generations",
		Help: "Current number of generation runs holding a slot.",
	})
)

// RecordGeneration records one finished run.
func RecordGeneration(outcome string, elapsed time.Duration) {
	GenerationRequestsTotal.WithLabelValues(outcome).Inc()
	GenerationDuration.Observe(elapsed.Seconds())
}

// RecordSegment records one saved segment.
func RecordSegment() {
	SegmentsGeneratedTotal.Inc()
}
