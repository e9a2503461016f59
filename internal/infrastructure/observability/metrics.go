package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. It implements chat.Metrics.
type Metrics struct {
	meter metric.Meter

	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsActive  metric.Int64UpDownCounter

	// Inbound traffic
	MessagesReceivedTotal metric.Int64Counter
	RoutingTotal          metric.Int64Counter

	// Module invocations
	InvocationsTotal      metric.Int64Counter
	InvocationErrorsTotal metric.Int64Counter
	InvocationDuration    metric.Float64Histogram
	InvocationsInFlight   metric.Int64UpDownCounter

	// Outbound replies
	SendsTotal      metric.Int64Counter
	SendErrorsTotal metric.Int64Counter
	SendDuration    metric.Float64Histogram
}

// NewMetrics creates and registers all application metrics.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{meter: meter}

	var err error

	// HTTP metrics
	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http.server.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http_request_duration: %w", err)
	}

	m.HTTPRequestsActive, err = meter.Int64UpDownCounter(
		"http.server.requests.active",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http_requests_active: %w", err)
	}

	// Inbound traffic
	m.MessagesReceivedTotal, err = meter.Int64Counter(
		"chat.messages.received.total",
		metric.WithDescription("Total number of command messages received"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating messages_received_total: %w", err)
	}

	m.RoutingTotal, err = meter.Int64Counter(
		"chat.routing.total",
		metric.WithDescription("Routing outcomes of command messages"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating routing_total: %w", err)
	}

	// Module invocations
	m.InvocationsTotal, err = meter.Int64Counter(
		"module.invocations.total",
		metric.WithDescription("Total number of module invocations"),
		metric.WithUnit("{invocations}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating invocations_total: %w", err)
	}

	m.InvocationErrorsTotal, err = meter.Int64Counter(
		"module.invocations.errors.total",
		metric.WithDescription("Total number of failed module invocations"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating invocation_errors_total: %w", err)
	}

	m.InvocationDuration, err = meter.Float64Histogram(
		"module.invocation.duration",
		metric.WithDescription("Module invocation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating invocation_duration: %w", err)
	}

	m.InvocationsInFlight, err = meter.Int64UpDownCounter(
		"module.invocations.in_flight",
		metric.WithDescription("Number of running module invocations"),
		metric.WithUnit("{invocations}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating invocations_in_flight: %w", err)
	}

	// Outbound replies
	m.SendsTotal, err = meter.Int64Counter(
		"chat.sends.total",
		metric.WithDescription("Total number of replies sent"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sends_total: %w", err)
	}

	m.SendErrorsTotal, err = meter.Int64Counter(
		"chat.sends.errors.total",
		metric.WithDescription("Total number of failed replies"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating send_errors_total: %w", err)
	}

	m.SendDuration, err = meter.Float64Histogram(
		"chat.send.duration",
		metric.WithDescription("Reply send duration in seconds, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating send_duration: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordMessageReceived counts an inbound message.
func (m *Metrics) RecordMessageReceived(ctx context.Context, engine string) {
	m.MessagesReceivedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("engine", engine)))
}

// RecordRouting counts a routing outcome (dispatched, fallback, unhandled).
func (m *Metrics) RecordRouting(ctx context.Context, outcome string) {
	m.RoutingTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordInvocation records a finished module invocation.
func (m *Metrics) RecordInvocation(ctx context.Context, module, kind string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("module", module),
		attribute.String("kind", kind),
		attribute.Bool("success", err == nil),
	}

	m.InvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.InvocationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil {
		m.InvocationErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs[:2]...))
	}
}

// AddInFlight adjusts the running invocation gauge.
func (m *Metrics) AddInFlight(ctx context.Context, delta int64) {
	m.InvocationsInFlight.Add(ctx, delta)
}

// RecordSend records a reply delivery, retries included.
func (m *Metrics) RecordSend(ctx context.Context, engine string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("engine", engine),
		attribute.Bool("success", err == nil),
	}

	m.SendsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.SendDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil {
		m.SendErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs[0]))
	}
}
