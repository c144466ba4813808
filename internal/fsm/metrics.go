// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fsm

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for FSM detection.
var (
	tracer = otel.Tracer("fsmdetect.fsm")
	meter  = otel.Meter("fsmdetect.fsm")
)

var (
	candidatesExamined metric.Int64Counter
	fsmsDetected       metric.Int64Counter
	arcsExtracted      metric.Int64Counter

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		candidatesExamined, err = meter.Int64Counter(
			"fsm_candidates_examined_total",
			metric.WithDescription("Candidate registers examined for constant drivers"),
		)
		if err != nil {
			return
		}
		fsmsDetected, _ = meter.Int64Counter(
			"fsm_detected_total",
			metric.WithDescription("Registers accepted as FSM state"),
		)
		arcsExtracted, _ = meter.Int64Counter(
			"fsm_arcs_extracted_total",
			metric.WithDescription("Syntactically provable transition arcs"),
		)
	})
}

func recordIdentified(ctx context.Context, candidates, fsms int) {
	initMetrics()
	if candidatesExamined != nil {
		candidatesExamined.Add(ctx, int64(candidates))
	}
	if fsmsDetected != nil {
		fsmsDetected.Add(ctx, int64(fsms))
	}
}

func recordArcs(ctx context.Context, arcs int) {
	initMetrics()
	if arcsExtracted != nil {
		arcsExtracted.Add(ctx, int64(arcs))
	}
}
