/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metrics records model token usage through the OpenTelemetry meter
// API. Instruments that fail to register degrade to no-ops.
package metrics

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName is shared by every model backend; the model id is a dimension.
const MeterName = "chainguard.ai.tinygen"

// GenAI holds the token usage counters.
type GenAI struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	calls            metric.Int64Counter
}

// NewGenAI creates the counters on the named meter.
func NewGenAI(meterName string) *GenAI {
	meter := otel.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))
	return &GenAI{
		promptTokens: counter(meter, meterName, "genai.token.prompt",
			"The number of prompt tokens used", "{tokens}"),
		completionTokens: counter(meter, meterName, "genai.token.completion",
			"The number of completion tokens used", "{tokens}"),
		calls: counter(meter, meterName, "genai.calls",
			"The number of model invocations", "{calls}"),
	}
}

func counter(meter metric.Meter, meterName, name, desc, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		slog.Warn("Failed to create counter, metric will be disabled", "error", err, "meter", meterName, "counter", name)
		return noop.Int64Counter{}
	}
	return c
}

// RecordTokens records one model invocation and its token usage. Stage is the
// step of the generate/reflect protocol that issued the call.
func (m *GenAI) RecordTokens(ctx context.Context, model, stage string, promptTokens, completionTokens int64) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("stage", stage),
	)
	m.calls.Add(ctx, 1, attrs)
	m.promptTokens.Add(ctx, promptTokens, attrs)
	m.completionTokens.Add(ctx, completionTokens, attrs)
}
