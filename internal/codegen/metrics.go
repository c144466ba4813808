// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codegen

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("fsmdetect.codegen")
	meter  = otel.Meter("fsmdetect.codegen")
)

var (
	propertiesEmitted metric.Int64Counter

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		propertiesEmitted, _ = meter.Int64Counter(
			"codegen_properties_total",
			metric.WithDescription("SVA cover properties emitted"),
		)
	})
}

func recordProperties(ctx context.Context, n int) {
	initMetrics()
	if propertiesEmitted != nil {
		propertiesEmitted.Add(ctx, int64(n))
	}
}
