// Package otelmetrics exports notifybox dispatcher metrics through OpenTelemetry.
package otelmetrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/velmie/notifybox"
)

const scopeName = "github.com/velmie/notifybox"

// Metric names.
const (
	BatchDuration = "notifybox.batch.duration"
	Sent          = "notifybox.sent"
	Errors        = "notifybox.errors"
	Retries       = "notifybox.retries"
	Dead          = "notifybox.dead"
	HookErrors    = "notifybox.hook.errors"
	PendingGauge  = "notifybox.records.pending"
	DeadGauge     = "notifybox.records.dead"
)

// Recorder implements notifybox.Metrics with OpenTelemetry instruments.
type Recorder struct {
	duration   metric.Float64Histogram
	sent       metric.Int64Counter
	errors     metric.Int64Counter
	retries    metric.Int64Counter
	dead       metric.Int64Counter
	hookErrors metric.Int64Counter
	pending    metric.Int64Gauge
	deadTotal  metric.Int64Gauge
	attrs      metric.MeasurementOption
}

var _ notifybox.Metrics = (*Recorder)(nil)

// New creates the instruments on the given provider, or the global provider when nil.
// Attributes are attached to every measurement, e.g. the service or table name.
func New(provider metric.MeterProvider, attrs ...attribute.KeyValue) (*Recorder, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(scopeName)

	r := &Recorder{attrs: metric.WithAttributes(attrs...)}
	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{record}"))
		errs = append(errs, err)

		return c
	}
	gauge := func(name, desc string) metric.Int64Gauge {
		g, err := meter.Int64Gauge(name, metric.WithDescription(desc), metric.WithUnit("{record}"))
		errs = append(errs, err)

		return g
	}

	var err error
	r.duration, err = meter.Float64Histogram(BatchDuration,
		metric.WithDescription("Time spent draining one batch."),
		metric.WithUnit("s"),
	)
	errs = append(errs, err)
	r.sent = counter(Sent, "Records delivered.")
	r.errors = counter(Errors, "Failed delivery attempts.")
	r.retries = counter(Retries, "Records re-armed for another attempt.")
	r.dead = counter(Dead, "Records dead-lettered.")
	r.hookErrors = counter(HookErrors, "Order hook failures after a successful delivery.")
	r.pending = gauge(PendingGauge, "Pending records.")
	r.deadTotal = gauge(DeadGauge, "Dead records.")

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("notifybox otelmetrics: create instruments: %w", err)
	}

	return r, nil
}

// ObserveBatchDuration implements notifybox.Metrics.
func (r *Recorder) ObserveBatchDuration(d time.Duration) {
	r.duration.Record(context.Background(), d.Seconds(), r.attrs)
}

// AddSent implements notifybox.Metrics.
func (r *Recorder) AddSent(count int) { r.add(r.sent, count) }

// AddErrors implements notifybox.Metrics.
func (r *Recorder) AddErrors(count int) { r.add(r.errors, count) }

// AddRetries implements notifybox.Metrics.
func (r *Recorder) AddRetries(count int) { r.add(r.retries, count) }

// AddDead implements notifybox.Metrics.
func (r *Recorder) AddDead(count int) { r.add(r.dead, count) }

// AddHookErrors implements notifybox.Metrics.
func (r *Recorder) AddHookErrors(count int) { r.add(r.hookErrors, count) }

// SetPending implements notifybox.Metrics.
func (r *Recorder) SetPending(count int) {
	r.pending.Record(context.Background(), int64(count), r.attrs)
}

// SetDead implements notifybox.Metrics.
func (r *Recorder) SetDead(count int) {
	r.deadTotal.Record(context.Background(), int64(count), r.attrs)
}

func (r *Recorder) add(counter metric.Int64Counter, count int) {
	if count <= 0 {
		return
	}
	counter.Add(context.Background(), int64(count), r.attrs)
}
