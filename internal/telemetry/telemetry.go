// Package telemetry exports generation metrics through OpenTelemetry.
// Metrics implements pipeline.Observer.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/nvandessel/battsim/internal/config"
	"github.com/nvandessel/battsim/internal/models"
	"github.com/nvandessel/battsim/internal/pipeline"
)

const meterName = "github.com/nvandessel/battsim"

// Metric names.
const (
	MetricRows     = "battsim.rows"
	MetricRuns     = "battsim.runs"
	MetricBytes    = "battsim.bytes"
	MetricDuration = "battsim.run.duration"
	MetricActive   = "battsim.runs.active"
)

// Metrics records domain runs.
type Metrics struct {
	provider *sdkmetric.MeterProvider

	rows     metric.Int64Counter
	runs     metric.Int64Counter
	bytes    metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
}

// New builds metrics for cfg. With the "none" exporter it returns nil,
// which callers treat as "no observer".
func New(cfg config.TelemetryConfig, w io.Writer, version string) (*Metrics, error) {
	switch cfg.Metrics {
	case "", "none":
		return nil, nil
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		var opts []sdkmetric.PeriodicReaderOption
		if cfg.Interval > 0 {
			opts = append(opts, sdkmetric.WithInterval(cfg.Interval))
		}
		return NewWithReader(sdkmetric.NewPeriodicReader(exp, opts...), version)
	}
	return nil, fmt.Errorf("unknown metrics exporter %q", cfg.Metrics)
}

// NewWithReader builds metrics exported through reader.
func NewWithReader(reader sdkmetric.Reader, version string) (*Metrics, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", "battsim"),
		attribute.String("service.version", version),
	)
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	meter := provider.Meter(meterName)

	m := &Metrics{provider: provider}
	var err error
	if m.rows, err = meter.Int64Counter(MetricRows,
		metric.WithDescription("Rows written to datasets"),
		metric.WithUnit("{row}")); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricRows, err)
	}
	if m.runs, err = meter.Int64Counter(MetricRuns,
		metric.WithDescription("Domain runs by outcome")); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricRuns, err)
	}
	if m.bytes, err = meter.Int64Counter(MetricBytes,
		metric.WithDescription("Dataset bytes written"),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricBytes, err)
	}
	if m.duration, err = meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Domain run duration"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricDuration, err)
	}
	if m.active, err = meter.Int64UpDownCounter(MetricActive,
		metric.WithDescription("Domain runs in progress")); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricActive, err)
	}
	return m, nil
}

// DomainStarted implements pipeline.Observer.
func (m *Metrics) DomainStarted(domain models.Domain, _ int) {
	m.active.Add(context.Background(), 1, metric.WithAttributes(attribute.String("domain", string(domain))))
}

// DomainFinished implements pipeline.Observer.
func (m *Metrics) DomainFinished(r pipeline.Result) {
	ctx := context.Background()
	domain := attribute.String("domain", string(r.Domain))

	m.active.Add(ctx, -1, metric.WithAttributes(domain))
	m.duration.Record(ctx, r.Duration.Seconds(), metric.WithAttributes(domain))

	if !r.OK() {
		m.runs.Add(ctx, 1, metric.WithAttributes(domain,
			attribute.String("status", "failed"),
			attribute.String("stage", string(r.Stage))))
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(domain, attribute.String("status", "succeeded")))
	m.rows.Add(ctx, int64(r.Samples), metric.WithAttributes(domain))
	m.bytes.Add(ctx, r.Bytes, metric.WithAttributes(domain, attribute.String("format", r.Format)))
}

// Shutdown flushes pending metrics and stops the exporter.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down metrics: %w", err)
	}
	return nil
}
