package observability

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
)

func TestConfigApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()

	if c.ServiceName == "" {
		t.Error("service name not defaulted")
	}
	if c.Endpoint != "localhost:4318" {
		t.Errorf("endpoint = %q, want localhost:4318", c.Endpoint)
	}
	if c.MetricInterval != 15*time.Second {
		t.Errorf("metric interval = %v, want 15s", c.MetricInterval)
	}
	if c.TraceSampleRate != 1.0 {
		t.Errorf("sample rate = %v, want 1.0", c.TraceSampleRate)
	}
}

func TestConfigValidate(t *testing.T) {
	disabled := Config{Enabled: false}
	if err := disabled.Validate(); err != nil {
		t.Errorf("disabled config rejected: %v", err)
	}

	noEndpoint := Config{Enabled: true}
	if err := noEndpoint.Validate(); err == nil {
		t.Error("enabled config without endpoint accepted")
	}

	badRate := Config{Enabled: true, Endpoint: "localhost:4318", TraceSampleRate: 2}
	if err := badRate.Validate(); err == nil {
		t.Error("sample rate above 1 accepted")
	}
}

func TestPipelineMetricsInstruments(t *testing.T) {
	m, err := NewPipelineMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewPipelineMetrics: %v", err)
	}

	ctx := context.Background()
	m.RecordBatch(ctx, 12)
	m.RecordEscalation(ctx, true)
	m.RecordInsight(ctx, "red-flag", "warning")
	m.RecordLLMCall(ctx, "deep_analysis", 250*time.Millisecond)
	m.SessionStarted(ctx)
	m.SessionStopped(ctx)
	m.RecordError(ctx, "engine")
}

func TestPipelineMetricsNilReceiverIsNoop(t *testing.T) {
	var m *PipelineMetrics
	ctx := context.Background()

	m.RecordBatch(ctx, 5)
	m.RecordEscalation(ctx, false)
	m.RecordInsight(ctx, "note", "info")
	m.RecordLLMCall(ctx, "filter", time.Second)
	m.SessionStarted(ctx)
	m.SessionStopped(ctx)
	m.RecordError(ctx, "session")
}
