// Package metrics wires the OTEL meter provider with a Prometheus reader and
// an optional OTLP gRPC push exporter.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

// Provider is a meter provider that can be shut down.
type Provider interface {
	Meter(name string, options ...metric.MeterOption) metric.Meter
	Shutdown(ctx context.Context) error
}

// Config selects the readers attached to the provider.
type Config struct {
	ServiceName  string
	Prometheus   bool
	OTLPEndpoint string
	OTLPInsecure bool
	OTLPHeaders  map[string]string
}

// OptionFn mutates a Config.
type OptionFn func(Config) Config

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) OptionFn {
	return func(c Config) Config {
		c.ServiceName = name
		return c
	}
}

// WithPrometheus enables the pull reader served by Handler.
func WithPrometheus() OptionFn {
	return func(c Config) Config {
		c.Prometheus = true
		return c
	}
}

// WithOTLP pushes metrics to an OTLP gRPC collector.
func WithOTLP(endpoint string, headers map[string]string, insecure bool) OptionFn {
	return func(c Config) Config {
		c.OTLPEndpoint = endpoint
		c.OTLPHeaders = headers
		c.OTLPInsecure = insecure
		return c
	}
}

// MeterProvider is the SDK provider plus the registry backing /metrics.
type MeterProvider struct {
	*sdkmetric.MeterProvider
	registry *promclient.Registry
}

// NewMeterProvider builds the provider and installs it globally.
func NewMeterProvider(ctx context.Context, opts ...OptionFn) (*MeterProvider, error) {
	var cfg Config
	for _, opt := range opts {
		cfg = opt(cfg)
	}

	var sdkOpts []sdkmetric.Option
	registry := promclient.NewRegistry()

	if cfg.Prometheus {
		exp, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("prometheus exporter: %w", err)
		}
		sdkOpts = append(sdkOpts, sdkmetric.WithReader(exp))
	}

	if cfg.OTLPEndpoint != "" {
		grpcOpts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpointURL(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithHeaders(cfg.OTLPHeaders),
		}
		if cfg.OTLPInsecure {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		sdkOpts = append(sdkOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}

	sdkOpts = append(sdkOpts, sdkmetric.WithResource(
		resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.ServiceName)),
	))

	mp := sdkmetric.NewMeterProvider(sdkOpts...)
	otel.SetMeterProvider(mp)

	return &MeterProvider{MeterProvider: mp, registry: registry}, nil
}

// Handler serves the Prometheus exposition format.
func (p *MeterProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics on its own port.
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server for h on port.
func NewServer(port int, h http.Handler) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	return &Server{srv: &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start serves in the background. errFn receives a listen failure.
func (s *Server) Start(errFn func(error)) {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && errFn != nil {
			errFn(err)
		}
	}()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
