// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// setupTelemetry wires the optional observability surfaces: a stderr
// span exporter behind --trace and a Prometheus registry dumped at exit
// behind --metrics. With both flags off this is a no-op and the
// library-side tracers and meters stay no-ops too.
func setupTelemetry(ctx context.Context, withTrace, withMetrics bool) (func(context.Context), error) {
	var shutdowns []func(context.Context)

	if withTrace {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return nil, fmt.Errorf("creating trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		shutdowns = append(shutdowns, func(ctx context.Context) {
			_ = tp.Shutdown(ctx)
		})
	}

	if withMetrics {
		registry := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("creating metrics exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
		otel.SetMeterProvider(mp)
		shutdowns = append(shutdowns, func(ctx context.Context) {
			dumpMetrics(registry)
			_ = mp.Shutdown(ctx)
		})
	}

	return func(ctx context.Context) {
		for i := len(shutdowns) - 1; i >= 0; i-- {
			shutdowns[i](ctx)
		}
	}, nil
}

// dumpMetrics renders the gathered families in the Prometheus text
// format on stderr.
func dumpMetrics(registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gathering metrics: %v\n", err)
		return
	}
	enc := expfmt.NewEncoder(os.Stderr, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			fmt.Fprintf(os.Stderr, "encoding metrics: %v\n", err)
			return
		}
	}
}
