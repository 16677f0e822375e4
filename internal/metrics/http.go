package metrics

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type HTTPMetrics struct {
	// Latency
	requestDuration metric.Float64Histogram

	// Traffic
	requestsTotal metric.Int64Counter

	// Saturation
	activeRequests metric.Int64UpDownCounter
}

func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	hm := &HTTPMetrics{}

	var err error

	hm.requestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(queryBuckets...),
	)
	if err != nil {
		return nil, err
	}

	hm.requestsTotal, err = meter.Int64Counter(
		"http.server.requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	hm.activeRequests, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return hm, nil
}

// RequestStarted returns a func that records the finished request.
// route is the matched pattern, not the raw path.
func (hm *HTTPMetrics) RequestStarted(ctx context.Context) func(method, route string, status int) {
	if hm == nil || hm.requestDuration == nil {
		return func(string, string, int) {}
	}

	start := time.Now()
	hm.activeRequests.Add(ctx, 1)

	return func(method, route string, status int) {
		hm.activeRequests.Add(ctx, -1)

		attrs := metric.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", route),
			attribute.String("http.response.status_code", strconv.Itoa(status)),
		)
		hm.requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		hm.requestsTotal.Add(ctx, 1, attrs)
	}
}
