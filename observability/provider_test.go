package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/sqlgate/sqlgate/config"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	mp := otel.GetMeterProvider()
	prop := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(prop)
	})
}

var app = config.AppConfig{Name: "sqlgate", Version: "v1.0.0", Env: "development"}

func TestDisabledIsNoop(t *testing.T) {
	p, err := NewProvider(config.ObservabilityConfig{Enabled: false}, app)
	require.NoError(t, err)
	assert.IsType(t, &noopProvider{}, p)
	assert.NoError(t, Shutdown(p, time.Second))
}

func TestStdoutProvider(t *testing.T) {
	restoreGlobals(t)

	cfg := config.ObservabilityConfig{
		Enabled:  true,
		Service:  "sqlgate-test",
		Protocol: config.ProtocolHTTP,
		Metrics:  config.MetricsConfig{Endpoint: config.EndpointStdout, Interval: time.Hour},
		Trace:    config.TraceConfig{Endpoint: config.EndpointStdout},
	}
	p, err := NewProvider(cfg, app)
	require.NoError(t, err)

	assert.IsType(t, &sdktrace.TracerProvider{}, p.TracerProvider())
	assert.IsType(t, &sdkmetric.MeterProvider{}, p.MeterProvider())
	assert.Same(t, p.TracerProvider(), otel.GetTracerProvider())

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestOTLPProvidersBuildWithoutCollector(t *testing.T) {
	for _, protocol := range []string{config.ProtocolHTTP, config.ProtocolGRPC} {
		t.Run(protocol, func(t *testing.T) {
			restoreGlobals(t)
			cfg := config.ObservabilityConfig{
				Enabled:  true,
				Protocol: protocol,
				Insecure: true,
				Metrics:  config.MetricsConfig{Endpoint: "localhost:4318", Interval: time.Hour},
				Trace:    config.TraceConfig{Endpoint: "localhost:4318"},
			}
			p, err := NewProvider(cfg, app)
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			_ = p.Shutdown(ctx)
		})
	}
}

func TestInvalidProtocol(t *testing.T) {
	cfg := config.ObservabilityConfig{
		Enabled:  true,
		Protocol: "carrier-pigeon",
		Metrics:  config.MetricsConfig{Endpoint: "collector:4317", Interval: time.Second},
		Trace:    config.TraceConfig{Endpoint: "collector:4317"},
	}
	_, err := NewProvider(cfg, app)
	assert.ErrorIs(t, err, ErrInvalidProtocol)
}

func TestShutdownNil(t *testing.T) {
	assert.NoError(t, Shutdown(nil, 0))
}
