// Package httpclient provides an HTTP client instrumented with OTEL tracing
// and metrics, shared by the venue adapters.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDialKeepAlive   = 10 * time.Second
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxConnsPerHost = 8
	defaultIdleConnTimeout = 2 * time.Minute

	metricRequestCounter = "http_client_requests_total"
)

// Client wraps http.Client with OTEL instrumentation.
type Client struct {
	client         *http.Client
	requestCounter metric.Int64Counter
	venue          string
	tracer         trace.Tracer
	baseURL        string
	headers        map[string]string
}

type options struct {
	client        *http.Client
	meterProvider metric.MeterProvider
	timeout       time.Duration
	baseURL       string
	headers       map[string]string
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient uses c as the underlying client. Its transport is wrapped.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithMeterProvider sets the OTEL meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithBaseURL sets the base URL for relative request paths.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHeaders sets default headers for all requests.
func WithHeaders(h map[string]string) Option {
	return func(o *options) { o.headers = h }
}

// New creates an instrumented client for one venue.
func New(venue string, opts ...Option) (*Client, error) {
	o := &options{timeout: defaultRequestTimeout}
	for _, opt := range opts {
		opt(o)
	}

	httpClient := o.client
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if o.timeout > 0 {
		httpClient.Timeout = o.timeout
	}

	transport := httpClient.Transport
	if transport == nil {
		transport = &http.Transport{
			DialContext:     (&net.Dialer{KeepAlive: defaultDialKeepAlive}).DialContext,
			MaxConnsPerHost: defaultMaxConnsPerHost,
			IdleConnTimeout: defaultIdleConnTimeout,
		}
	}
	httpClient.Transport = otelhttp.NewTransport(
		transport,
		otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
			return otelhttptrace.NewClientTrace(ctx)
		}),
	)

	mp := o.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter("venue_http_client",
		metric.WithInstrumentationAttributes(attribute.String("venue", venue)))

	counter, err := meter.Int64Counter(metricRequestCounter,
		metric.WithDescription("Total number of venue HTTP requests"))
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(o.headers))
	for k, v := range o.headers {
		headers[k] = v
	}

	return &Client{
		client:         httpClient,
		requestCounter: counter,
		venue:          venue,
		tracer:         otel.GetTracerProvider().Tracer("venue_http_client"),
		baseURL:        o.baseURL,
		headers:        headers,
	}, nil
}

// HTTPClient exposes the instrumented client for SDKs that bring their own
// request builders.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// NewRequest starts a request builder.
func (c *Client) NewRequest() *Request {
	headers := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		headers[k] = v
	}
	return &Request{c: c, headers: headers}
}
