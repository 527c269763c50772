// Package observability wires OpenTelemetry metrics and traces for the
// analysis pipeline. Both exporters speak OTLP over HTTP and register
// themselves as the global providers.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Config configures the OTLP exporters shared by metrics and traces.
type Config struct {
	// Enabled toggles observability as a whole. When false the service
	// runs without exporters and all recording helpers are no-ops.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// ServiceName identifies the service in exported telemetry.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// ServiceVersion is the version reported in the resource.
	ServiceVersion string `yaml:"service_version" mapstructure:"service_version"`
	// Environment is the deployment environment (dev, staging, prod).
	Environment string `yaml:"environment" mapstructure:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure allows plain HTTP connections to the collector.
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// MetricInterval is the metric export interval.
	MetricInterval time.Duration `yaml:"metric_interval" mapstructure:"metric_interval"`
	// TraceSampleRate is the trace sampling rate (0.0 to 1.0).
	TraceSampleRate float64 `yaml:"trace_sample_rate" mapstructure:"trace_sample_rate"`
}

// ApplyDefaults fills zero values with development defaults.
func (c *Config) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "interview-companion"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "1.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.MetricInterval <= 0 {
		c.MetricInterval = 15 * time.Second
	}
	if c.TraceSampleRate <= 0 {
		c.TraceSampleRate = 1.0
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("observability endpoint is required when enabled")
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("trace_sample_rate must be between 0 and 1, got %f", c.TraceSampleRate)
	}
	return nil
}

func newResource(c *Config) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(c.ServiceName),
			semconv.ServiceVersion(c.ServiceVersion),
			attribute.String("environment", c.Environment),
		),
	)
}

// ShutdownFunc releases exporter resources on application exit.
type ShutdownFunc func(context.Context) error
