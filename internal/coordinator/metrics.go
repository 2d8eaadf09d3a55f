package coordinator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/relayforge/conductord/internal/coordinator"

// Metrics holds coordinator instrumentation.
type Metrics struct {
	meter       metric.Meter
	logger      *zap.Logger
	activations metric.Int64Counter
	handoffs    metric.Int64Counter
}

// NewMetrics creates coordinator metrics against the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.activations, err = m.meter.Int64Counter(
		"conductord.coordinator.activations_total",
		metric.WithDescription("Agent activations labeled by agent and outcome (ok, unknown_agent, missing_prerequisite, validation_failed)."),
		metric.WithUnit("{activation}"),
	)
	if err != nil {
		m.logger.Warn("failed to create activations counter", zap.Error(err))
	}

	m.handoffs, err = m.meter.Int64Counter(
		"conductord.coordinator.handoffs_total",
		metric.WithDescription("Agent handoffs labeled by edge and outcome (ok, unknown_agent, illegal_handoff, validation_failed, post_validation_failed)."),
		metric.WithUnit("{handoff}"),
	)
	if err != nil {
		m.logger.Warn("failed to create handoffs counter", zap.Error(err))
	}
}

// RecordActivation counts one activation attempt.
func (m *Metrics) RecordActivation(ctx context.Context, agentID, outcome string) {
	if m == nil || m.activations == nil {
		return
	}
	m.activations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", agentID),
		attribute.String("outcome", outcome),
	))
}

// RecordHandoff counts one handoff attempt.
func (m *Metrics) RecordHandoff(ctx context.Context, fromAgent, toAgent, outcome string) {
	if m == nil || m.handoffs == nil {
		return
	}
	m.handoffs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from_agent", fromAgent),
		attribute.String("to_agent", toAgent),
		attribute.String("outcome", outcome),
	))
}
