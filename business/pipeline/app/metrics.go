package app

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	riskApp "github.com/fd1az/spatial-arb/business/risk/app"
)

const meterName = "pipeline"

type pipelineMetrics struct {
	detected  metric.Int64Counter
	rejected  metric.Int64Counter
	expired   metric.Int64Counter
	dropped   metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	breaker   metric.Int64Counter
	scanMs    metric.Float64Histogram
}

func newPipelineMetrics() (*pipelineMetrics, error) {
	meter := otel.Meter(meterName)
	m := &pipelineMetrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.detected, "opportunities_detected_total", "Opportunities returned by the detector"},
		{&m.rejected, "opportunities_rejected_total", "Opportunities rejected, by blocker reason"},
		{&m.expired, "opportunities_expired_total", "Opportunities that expired before execution"},
		{&m.dropped, "opportunities_dropped_total", "Opportunities evicted from the full queue"},
		{&m.completed, "opportunities_completed_total", "Executions that completed"},
		{&m.failed, "opportunities_failed_total", "Executions that failed"},
		{&m.breaker, "circuit_breaker_events_total", "Loss circuit breaker events"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	m.scanMs, err = meter.Float64Histogram("scan_duration_ms",
		metric.WithDescription("Duration of one collect and detect cycle"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *pipelineMetrics) reject(ctx context.Context, reason string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *pipelineMetrics) breakerEvent(ctx context.Context, e riskApp.BreakerEvent) {
	m.breaker.Add(ctx, 1, metric.WithAttributes(attribute.String("event", string(e))))
}
