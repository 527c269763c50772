package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Montinou/interview-companion-sub000/logger"
)

// InitMeter initializes the OpenTelemetry meter provider and registers
// it globally. The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, config *Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.MetricInterval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.MetricInterval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// PipelineMetrics holds the instruments recorded by the analysis
// pipeline. A nil *PipelineMetrics is valid and records nothing, so
// callers never have to guard their recording sites.
type PipelineMetrics struct {
	batchTotal      metric.Int64Counter
	batchWords      metric.Int64Counter
	escalationTotal metric.Int64Counter
	insightTotal    metric.Int64Counter
	llmDuration     metric.Float64Histogram
	sessionsActive  metric.Int64UpDownCounter
	errorTotal      metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments on the given meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	batchTotal, err := meter.Int64Counter("pipeline.batch.total",
		metric.WithDescription("Transcript batches processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.batch.total counter: %w", err)
	}

	batchWords, err := meter.Int64Counter("pipeline.batch.words",
		metric.WithDescription("Transcript words processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.batch.words counter: %w", err)
	}

	escalationTotal, err := meter.Int64Counter("pipeline.escalation.total",
		metric.WithDescription("Escalation filter decisions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.escalation.total counter: %w", err)
	}

	insightTotal, err := meter.Int64Counter("pipeline.insight.total",
		metric.WithDescription("Insights emitted by type and severity"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.insight.total counter: %w", err)
	}

	llmDuration, err := meter.Float64Histogram("pipeline.llm.duration",
		metric.WithDescription("Duration of model calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.llm.duration histogram: %w", err)
	}

	sessionsActive, err := meter.Int64UpDownCounter("session.active",
		metric.WithDescription("Capture sessions currently running"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating session.active gauge: %w", err)
	}

	errorTotal, err := meter.Int64Counter("pipeline.error.total",
		metric.WithDescription("Pipeline errors by component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.error.total counter: %w", err)
	}

	return &PipelineMetrics{
		batchTotal:      batchTotal,
		batchWords:      batchWords,
		escalationTotal: escalationTotal,
		insightTotal:    insightTotal,
		llmDuration:     llmDuration,
		sessionsActive:  sessionsActive,
		errorTotal:      errorTotal,
	}, nil
}

// RecordBatch records a processed transcript batch.
func (m *PipelineMetrics) RecordBatch(ctx context.Context, words int) {
	if m == nil {
		return
	}
	m.batchTotal.Add(ctx, 1)
	m.batchWords.Add(ctx, int64(words))
}

// RecordEscalation records an escalation filter decision.
func (m *PipelineMetrics) RecordEscalation(ctx context.Context, escalated bool) {
	if m == nil {
		return
	}
	m.escalationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("escalated", escalated),
	))
}

// RecordInsight records an emitted insight.
func (m *PipelineMetrics) RecordInsight(ctx context.Context, insightType, severity string) {
	if m == nil {
		return
	}
	m.insightTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", insightType),
		attribute.String("severity", severity),
	))
}

// RecordLLMCall records the duration of a model call by stage.
func (m *PipelineMetrics) RecordLLMCall(ctx context.Context, stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.llmDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
	))
}

// SessionStarted increments the active session count.
func (m *PipelineMetrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, 1)
}

// SessionStopped decrements the active session count.
func (m *PipelineMetrics) SessionStopped(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, -1)
}

// RecordError records a pipeline error by component.
func (m *PipelineMetrics) RecordError(ctx context.Context, component string) {
	if m == nil {
		return
	}
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
	))
}
