// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry records OpenTelemetry metrics for backend dispatch.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var (
	attemptCounter metric.Int64Counter
	retryCounter   metric.Int64Counter
	attemptLatency metric.Float64Histogram
)

var metricOnce sync.Once

// instruments lazily creates the dispatch instruments, falling back to
// no-ops when the meter refuses them.
func instruments() {
	metricOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("github.com/go-a2a/adapter")
		var err error

		attemptCounter, err = meter.Int64Counter("adapter.dispatch.attempts",
			metric.WithDescription("Count of backend call attempts"),
		)
		if err != nil {
			otel.Handle(err)
			attemptCounter = noop.Int64Counter{}
		}

		retryCounter, err = meter.Int64Counter("adapter.dispatch.retries",
			metric.WithDescription("Count of scheduled retries"),
		)
		if err != nil {
			otel.Handle(err)
			retryCounter = noop.Int64Counter{}
		}

		attemptLatency, err = meter.Float64Histogram("adapter.dispatch.attempt_latency",
			metric.WithDescription("Latency of backend call attempts"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			otel.Handle(err)
			attemptLatency = noop.Float64Histogram{}
		}
	})
}

// RecordAttempt records one backend call attempt and its latency.
func RecordAttempt(ctx context.Context, elapsed time.Duration, success bool) {
	instruments()

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	attemptCounter.Add(ctx, 1, attrs)
	attemptLatency.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

// RecordRetry records one scheduled retry.
func RecordRetry(ctx context.Context) {
	instruments()

	retryCounter.Add(ctx, 1)
}
