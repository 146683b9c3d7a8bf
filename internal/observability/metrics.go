package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	ServiceName string
}

// InitMetrics initializes the Prometheus metrics exporter on its own registry.
// Returns the MeterProvider and an HTTP handler for /metrics endpoint.
func InitMetrics(_ MetricsConfig) (*sdkmetric.MeterProvider, http.Handler, error) {
	reg := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return provider, handler, nil
}

// Metrics holds the instruments recorded while serving requests.
type Metrics struct {
	requests    metric.Int64Counter
	fitDuration metric.Float64Histogram
	datasetRows metric.Int64Histogram
}

// NewMetrics creates the instruments on a meter from provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("mlviz")
	requests, err := meter.Int64Counter("mlviz.requests",
		metric.WithDescription("Analysis requests by endpoint and outcome"))
	if err != nil {
		return nil, err
	}
	fitDuration, err := meter.Float64Histogram("mlviz.fit.duration",
		metric.WithDescription("Time spent fitting a model"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	datasetRows, err := meter.Int64Histogram("mlviz.dataset.rows",
		metric.WithDescription("Rows left after preprocessing"))
	if err != nil {
		return nil, err
	}
	return &Metrics{requests: requests, fitDuration: fitDuration, datasetRows: datasetRows}, nil
}

// RecordRequest counts one finished request.
func (m *Metrics) RecordRequest(ctx context.Context, endpoint, outcome string) {
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
	))
}

// RecordFit observes how long fitting model took.
func (m *Metrics) RecordFit(ctx context.Context, model string, d time.Duration) {
	m.fitDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("model", model)))
}

// RecordDatasetRows observes the size of a preprocessed dataset.
func (m *Metrics) RecordDatasetRows(ctx context.Context, rows int) {
	m.datasetRows.Record(ctx, int64(rows))
}
