package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ResponseErrorHandler maps a venue response to an error, nil if it is fine.
type ResponseErrorHandler func(statusCode int, body []byte) error

// Request builds and executes one HTTP call.
type Request struct {
	c            *Client
	headers      map[string]string
	query        url.Values
	result       any
	errorHandler ResponseErrorHandler
	endpoint     string
}

// Response carries the status and the fully read body.
type Response struct {
	StatusCode int
	body       []byte
}

// Body returns the response body.
func (r *Response) Body() []byte { return r.body }

// IsError reports a status code >= 400.
func (r *Response) IsError() bool { return r.StatusCode >= 400 }

// SetHeader sets a single header.
func (r *Request) SetHeader(key, value string) *Request {
	r.headers[key] = value
	return r
}

// SetQueryParam sets a single query parameter.
func (r *Request) SetQueryParam(key, value string) *Request {
	if r.query == nil {
		r.query = url.Values{}
	}
	r.query.Set(key, value)
	return r
}

// SetResult unmarshals a successful JSON body into v.
func (r *Request) SetResult(v any) *Request {
	r.result = v
	return r
}

// SetErrorHandler installs a venue specific response check.
func (r *Request) SetErrorHandler(h ResponseErrorHandler) *Request {
	r.errorHandler = h
	return r
}

// SetEndpoint labels the request metric, e.g. "depth" or "ticker".
func (r *Request) SetEndpoint(name string) *Request {
	r.endpoint = name
	return r
}

// Get executes a GET request.
func (r *Request) Get(ctx context.Context, path string) (*Response, error) {
	return r.execute(ctx, http.MethodGet, path)
}

func (r *Request) execute(ctx context.Context, method, path string) (*Response, error) {
	fullURL := path
	if r.c.baseURL != "" && !strings.HasPrefix(path, "http") {
		fullURL = strings.TrimSuffix(r.c.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	if len(r.query) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + r.query.Encode()
	}

	ctx, span := r.c.tracer.Start(ctx, "venue.http",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", fullURL),
			attribute.String("venue", r.c.venue),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.c.client.Do(req)
	if err != nil {
		r.recordError(ctx, span, err)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		r.recordError(ctx, span, err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	out := &Response{StatusCode: resp.StatusCode, body: body}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if r.errorHandler != nil {
		if herr := r.errorHandler(resp.StatusCode, body); herr != nil {
			span.SetStatus(codes.Error, herr.Error())
			r.recordMetrics(ctx, false)
			return out, herr
		}
	}

	if r.result != nil && len(body) > 0 && !out.IsError() {
		if err := json.Unmarshal(body, r.result); err != nil {
			span.RecordError(err)
			r.recordMetrics(ctx, false)
			return out, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	r.recordMetrics(ctx, !out.IsError())
	return out, nil
}

func (r *Request) recordError(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)

	var netErr net.Error
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("context.cancelled", true))
	}
	if errors.As(err, &netErr) && netErr.Timeout() {
		span.SetAttributes(attribute.Bool("request.timeout", true))
	}

	span.SetStatus(codes.Error, err.Error())
	r.recordMetrics(ctx, false)
}

func (r *Request) recordMetrics(ctx context.Context, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("venue", r.c.venue),
		attribute.Bool("success", success),
	}
	if r.endpoint != "" {
		attrs = append(attrs, attribute.String("endpoint", r.endpoint))
	}
	r.c.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
