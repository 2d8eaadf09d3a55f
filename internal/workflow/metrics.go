package workflow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/relayforge/conductord/internal/workflow"

// Metrics holds workflow instrumentation.
type Metrics struct {
	meter        metric.Meter
	logger       *zap.Logger
	stepDuration metric.Float64Histogram
	runs         metric.Int64Counter
}

// NewMetrics creates workflow metrics against the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}

	var err error
	m.stepDuration, err = m.meter.Float64Histogram(
		"conductord.workflow.step_duration_seconds",
		metric.WithDescription("Duration of workflow steps labeled by mode, agent, and outcome."),
		metric.WithUnit("s"),
	)
	if err != nil {
		m.logger.Warn("failed to create step duration histogram", zap.Error(err))
	}

	m.runs, err = m.meter.Int64Counter(
		"conductord.workflow.runs_total",
		metric.WithDescription("Workflow executions labeled by mode and outcome (completed, failed, cancelled)."),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		m.logger.Warn("failed to create runs counter", zap.Error(err))
	}

	return m
}

// RecordStep records one step's duration.
func (m *Metrics) RecordStep(ctx context.Context, mode Mode, agentID, outcome string, d time.Duration) {
	if m == nil || m.stepDuration == nil {
		return
	}
	m.stepDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("agent", agentID),
		attribute.String("outcome", outcome),
	))
}

// RecordRun counts one workflow execution.
func (m *Metrics) RecordRun(ctx context.Context, mode Mode, outcome string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("outcome", outcome),
	))
}
