// Package telemetry holds the OpenTelemetry instruments of the auth core and
// the Prometheus reader that serves them on /metrics.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "livestock-auth"

// Outcome labels shared by every counter.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics groups the auth instruments. A nil *Metrics records nothing, so
// components built without telemetry need no special casing.
type Metrics struct {
	sessions     metric.Int64Counter     // register/login/refresh/logout outcomes
	gate         metric.Int64Counter     // authenticated vs anonymous requests
	decisions    metric.Int64Counter     // policy allow/deny
	hashDuration metric.Float64Histogram // bcrypt time in ms
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	sessions, err := meter.Int64Counter(
		"auth.session.operations",
		metric.WithDescription("Session lifecycle operations by kind and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}
	gate, err := meter.Int64Counter(
		"auth.gate.requests",
		metric.WithDescription("Requests seen by the authentication gate"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	decisions, err := meter.Int64Counter(
		"auth.policy.decisions",
		metric.WithDescription("Authorization policy decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}
	hashDuration, err := meter.Float64Histogram(
		"auth.password.duration",
		metric.WithDescription("Password hash and compare duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(25, 50, 100, 250, 500, 1000, 2500),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{
		sessions:     sessions,
		gate:         gate,
		decisions:    decisions,
		hashDuration: hashDuration,
	}, nil
}

// Noop returns instruments backed by the no-op meter.
func Noop() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(meterName))
	return m
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// RecordSession counts one lifecycle operation ("register", "login", ...).
func (m *Metrics) RecordSession(ctx context.Context, op string, err error) {
	if m == nil {
		return
	}
	m.sessions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("auth.operation", op),
		attribute.String("auth.outcome", outcome(err)),
	))
}

// RecordGate counts a request passing the authentication gate.
func (m *Metrics) RecordGate(ctx context.Context, authenticated bool) {
	if m == nil {
		return
	}
	m.gate.Add(ctx, 1, metric.WithAttributes(attribute.Bool("auth.authenticated", authenticated)))
}

// RecordDecision counts a policy decision for the matched pattern.
func (m *Metrics) RecordDecision(ctx context.Context, pattern string, allowed bool) {
	if m == nil {
		return
	}
	if pattern == "" {
		pattern = "default"
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("auth.rule", pattern),
		attribute.Bool("auth.allowed", allowed),
	))
}

// RecordHash records how long a password operation took.
func (m *Metrics) RecordHash(ctx context.Context, op string, d time.Duration) {
	if m == nil {
		return
	}
	m.hashDuration.Record(ctx, float64(d.Microseconds())/1000, metric.WithAttributes(attribute.String("auth.operation", op)))
}

// Provider is a MeterProvider whose readings are exposed in the Prometheus
// text format.
type Provider struct {
	*sdkmetric.MeterProvider
	registry *prometheus.Registry
}

// NewPrometheusProvider wires an otel Prometheus exporter to a private
// registry.
func NewPrometheusProvider() (*Provider, error) {
	reg := prometheus.NewRegistry()
	exp, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	return &Provider{
		MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp)),
		registry:      reg,
	}, nil
}

// ServiceMeter returns the meter used by NewMetrics.
func (p *Provider) ServiceMeter() metric.Meter { return p.MeterProvider.Meter(meterName) }

// Handler serves the registry for scraping.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
