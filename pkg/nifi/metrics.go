// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nifi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "flowswap/nifi"

// requestMetrics holds the OTel instruments for API attempts. Instruments
// come from the global MeterProvider, so they are no-ops until
// telemetry.Init installs a real one.
type requestMetrics struct {
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

func newRequestMetrics(meter metric.Meter) (*requestMetrics, error) {
	attempts, err := meter.Int64Counter(
		"flowswap_nifi_requests_total",
		metric.WithDescription("NiFi API request attempts by method and outcome"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"flowswap_nifi_request_duration_seconds",
		metric.WithDescription("NiFi API request attempt latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &requestMetrics{attempts: attempts, duration: duration}, nil
}

func defaultRequestMetrics() *requestMetrics {
	m, err := newRequestMetrics(otel.Meter(meterName))
	if err != nil {
		return nil
	}
	return m
}

// record notes one attempt. A nil receiver is a no-op.
func (m *requestMetrics) record(ctx context.Context, method string, started time.Time, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome(err)),
	)
	m.attempts.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(started).Seconds(), attrs)
}

// outcome labels an attempt "ok", "transport" or the HTTP status code.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		return strconv.Itoa(apiErr.Status)
	}
	if errors.Is(err, ErrTransport) {
		return "transport"
	}
	return "error"
}
