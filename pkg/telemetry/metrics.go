package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricOpts holds options for creating metrics
type MetricOpts struct {
	Name        string
	Description string
	Unit        string
}

// Counter wraps an OTel counter
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a counter on the global meter
func NewCounter(opts MetricOpts) (*Counter, error) {
	counter, err := Meter().Int64Counter(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Counter{counter: counter}, nil
}

// Add increments the counter by value
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Inc increments the counter by 1
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Histogram wraps an OTel histogram
type Histogram struct {
	histogram metric.Float64Histogram
}

// NewHistogram creates a histogram, with explicit bucket boundaries when given
func NewHistogram(opts MetricOpts, boundaries ...float64) (*Histogram, error) {
	histOpts := []metric.Float64HistogramOption{
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	}
	if len(boundaries) > 0 {
		histOpts = append(histOpts, metric.WithExplicitBucketBoundaries(boundaries...))
	}

	histogram, err := Meter().Float64Histogram(opts.Name, histOpts...)
	if err != nil {
		return nil, err
	}
	return &Histogram{histogram: histogram}, nil
}

// Record records a value in the histogram
func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// Since records the seconds elapsed since start
func (h *Histogram) Since(ctx context.Context, start time.Time, attrs ...attribute.KeyValue) {
	h.Record(ctx, time.Since(start).Seconds(), attrs...)
}

// UpDownCounter wraps an OTel up-down counter
type UpDownCounter struct {
	counter metric.Int64UpDownCounter
}

// NewUpDownCounter creates an up-down counter
func NewUpDownCounter(opts MetricOpts) (*UpDownCounter, error) {
	counter, err := Meter().Int64UpDownCounter(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &UpDownCounter{counter: counter}, nil
}

// Add adds value, which may be negative
func (c *UpDownCounter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// FinanceMetrics groups the instruments recorded by the reconciliation pipeline
type FinanceMetrics struct {
	WebhookEvents      *Counter
	WebhookDuration    *Histogram
	PaymentsReconciled *Counter
	InvoiceTransitions *Counter
	NotificationsSent  *Counter
	WebhooksInFlight   *UpDownCounter
}

// NewFinanceMetrics creates the finance instruments on the global meter
func NewFinanceMetrics() (*FinanceMetrics, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	m := &FinanceMetrics{}
	var err error

	m.WebhookEvents, err = NewCounter(MetricOpts{
		Name:        "webhook_events_total",
		Description: "Inbound payment gateway webhook events by outcome",
		Unit:        "{event}",
	})
	collect(err)

	m.WebhookDuration, err = NewHistogram(MetricOpts{
		Name:        "webhook_processing_duration_seconds",
		Description: "Time spent verifying and reconciling a webhook event",
		Unit:        "s",
	}, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5)
	collect(err)

	m.PaymentsReconciled, err = NewCounter(MetricOpts{
		Name:        "payments_reconciled_total",
		Description: "Payment records moved to a new status by reconciliation",
		Unit:        "{payment}",
	})
	collect(err)

	m.InvoiceTransitions, err = NewCounter(MetricOpts{
		Name:        "invoice_transitions_total",
		Description: "Invoice status transitions",
		Unit:        "{transition}",
	})
	collect(err)

	m.NotificationsSent, err = NewCounter(MetricOpts{
		Name:        "notifications_sent_total",
		Description: "Notification jobs delivered by channel and result",
		Unit:        "{notification}",
	})
	collect(err)

	m.WebhooksInFlight, err = NewUpDownCounter(MetricOpts{
		Name:        "webhooks_in_flight",
		Description: "Webhook events currently being reconciled",
		Unit:        "{event}",
	})
	collect(err)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return m, nil
}

// Common metric attribute keys
const (
	AttrErrorType     = "error.type"
	AttrTenantID      = "tenant.id"
	AttrGateway       = "payment.gateway"
	AttrWebhookType   = "webhook.type"
	AttrWebhookKind   = "webhook.kind"
	AttrOutcome       = "outcome"
	AttrPaymentStatus = "payment.status"
	AttrInvoiceStatus = "invoice.status"
	AttrFinanceMode   = "finance.mode"
	AttrChannel       = "notification.channel"
)

func ErrorTypeAttr(errType string) attribute.KeyValue {
	return attribute.String(AttrErrorType, errType)
}

func TenantIDAttr(tenantID string) attribute.KeyValue {
	return attribute.String(AttrTenantID, tenantID)
}

func GatewayAttr(gateway string) attribute.KeyValue {
	return attribute.String(AttrGateway, gateway)
}

func WebhookTypeAttr(rawType string) attribute.KeyValue {
	return attribute.String(AttrWebhookType, rawType)
}

func WebhookKindAttr(kind string) attribute.KeyValue {
	return attribute.String(AttrWebhookKind, kind)
}

func OutcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}

func PaymentStatusAttr(status string) attribute.KeyValue {
	return attribute.String(AttrPaymentStatus, status)
}

func InvoiceStatusAttr(status string) attribute.KeyValue {
	return attribute.String(AttrInvoiceStatus, status)
}

func FinanceModeAttr(mode string) attribute.KeyValue {
	return attribute.String(AttrFinanceMode, mode)
}

func ChannelAttr(channel string) attribute.KeyValue {
	return attribute.String(AttrChannel, channel)
}
