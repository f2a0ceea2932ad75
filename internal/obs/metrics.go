package obs

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "catalog"

// SetupMetrics installs a global MeterProvider backed by the prometheus
// exporter. The exporter registers with the default prometheus registry, so
// promhttp.Handler serves it.
func SetupMetrics(serviceName string) (*sdkmetric.MeterProvider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetMeterProvider(provider)

	return provider, nil
}

// Metrics records peer notification counters.
type Metrics struct {
	peerCalls   metric.Int64Counter
	peerRetries metric.Int64Counter
}

// NewMetrics uses the global MeterProvider when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	peerCalls, err := meter.Int64Counter(
		"peer_calls_total",
		metric.WithDescription("Peer notifications by final outcome"),
	)
	if err != nil {
		return nil, err
	}

	peerRetries, err := meter.Int64Counter(
		"peer_retries_total",
		metric.WithDescription("Peer notification attempts that were retried"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{peerCalls: peerCalls, peerRetries: peerRetries}, nil
}

func (m *Metrics) RecordPeerRetry(ctx context.Context, peer, method string) {
	m.peerRetries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("peer", peer),
		attribute.String("method", method),
	))
}

func (m *Metrics) RecordPeerCall(ctx context.Context, peer, method, outcome string) {
	m.peerCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("peer", peer),
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
}

// ShutdownMetrics flushes and stops the provider.
func ShutdownMetrics(ctx context.Context, provider *sdkmetric.MeterProvider) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}
