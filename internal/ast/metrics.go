// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for AST lowering.
var (
	tracer = otel.Tracer("fsmdetect.ast")
	meter  = otel.Meter("fsmdetect.ast")
)

var (
	loweredNodes metric.Int64Histogram
	loweredEdges metric.Int64Histogram
	unknownKinds metric.Int64Counter

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		loweredNodes, err = meter.Int64Histogram(
			"ast_lowered_nodes",
			metric.WithDescription("Graph nodes produced per lowered design"),
		)
		if err != nil {
			return
		}
		loweredEdges, _ = meter.Int64Histogram(
			"ast_lowered_edges",
			metric.WithDescription("Graph edges produced per lowered design"),
		)
		unknownKinds, _ = meter.Int64Counter(
			"ast_unknown_kinds_total",
			metric.WithDescription("AST records skipped because their kind is not recognized"),
		)
	})
}

func recordLowered(ctx context.Context, nodes, edges int) {
	initMetrics()
	if loweredNodes != nil {
		loweredNodes.Record(ctx, int64(nodes))
	}
	if loweredEdges != nil {
		loweredEdges.Record(ctx, int64(edges))
	}
}

func unknownKind(ctx context.Context) {
	initMetrics()
	if unknownKinds != nil {
		unknownKinds.Add(ctx, 1)
	}
}
