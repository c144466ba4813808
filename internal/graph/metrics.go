// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for graph construction.
var meter = otel.Meter("fsmdetect.graph")

// Metrics for graph building. Recorded with a background context because
// AddNode/AddEdge sit below every lowering call; counters are no-ops when
// no meter provider is installed.
var (
	nodesTotal metric.Int64Counter
	edgesTotal metric.Int64Counter

	metricsOnce sync.Once
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		nodesTotal, err = meter.Int64Counter(
			"graph_nodes_total",
			metric.WithDescription("Total number of design graph nodes created"),
		)
		if err != nil {
			return
		}
		edgesTotal, _ = meter.Int64Counter(
			"graph_edges_total",
			metric.WithDescription("Total number of design graph edges created"),
		)
	})
}

func nodesCreated(ctx context.Context) {
	initMetrics()
	if nodesTotal != nil {
		nodesTotal.Add(ctx, 1)
	}
}

func edgesCreated(ctx context.Context) {
	initMetrics()
	if edgesTotal != nil {
		edgesTotal.Add(ctx, 1)
	}
}
