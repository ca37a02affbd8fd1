// Package observe holds the OpenTelemetry instruments for the caption
// pipeline. Instruments are created from a caller-supplied MeterProvider so
// tests can read them back through a ManualReader; all recording methods are
// safe on a nil *Metrics.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/leonardotrapani/livecaption"

// Metrics holds every instrument the pipeline records.
type Metrics struct {
	// RelayDrops counts items evicted from a relay queue. Attribute "hop".
	RelayDrops metric.Int64Counter

	// Reconnects counts recognition stream reconnects. Attributes "backend"
	// and "reason".
	Reconnects metric.Int64Counter

	// Fragments counts transcript fragments received. Attributes "backend"
	// and "final".
	Fragments metric.Int64Counter

	// TranslationDuration tracks translator latency. Attributes "translator"
	// and "status".
	TranslationDuration metric.Float64Histogram

	// Captions counts captions handed to the sink. Attribute "overlap".
	Captions metric.Int64Counter
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 5,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RelayDrops, err = m.Int64Counter("livecaption.relay.drops",
		metric.WithDescription("Items evicted from a relay queue to keep the newest."),
	); err != nil {
		return nil, err
	}
	if met.Reconnects, err = m.Int64Counter("livecaption.recognition.reconnects",
		metric.WithDescription("Recognition stream reconnects."),
	); err != nil {
		return nil, err
	}
	if met.Fragments, err = m.Int64Counter("livecaption.recognition.fragments",
		metric.WithDescription("Transcript fragments received from the recognizer."),
	); err != nil {
		return nil, err
	}
	if met.TranslationDuration, err = m.Float64Histogram("livecaption.translation.duration",
		metric.WithDescription("Latency of one translation call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Captions, err = m.Int64Counter("livecaption.captions",
		metric.WithDescription("Captions handed to the caption sink."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordDrop counts one eviction on the named hop. It never blocks, so it is
// safe inside relay drop hooks running on audio threads.
func (m *Metrics) RecordDrop(hop string) {
	if m == nil {
		return
	}
	m.RelayDrops.Add(context.Background(), 1, metric.WithAttributes(attribute.String("hop", hop)))
}

// DropHook returns a relay drop hook bound to hop.
func (m *Metrics) DropHook(hop string) func() {
	return func() { m.RecordDrop(hop) }
}

func (m *Metrics) RecordReconnect(ctx context.Context, backend, reason string) {
	if m == nil {
		return
	}
	m.Reconnects.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("reason", reason),
	))
}

func (m *Metrics) RecordFragment(ctx context.Context, backend string, final bool) {
	if m == nil {
		return
	}
	m.Fragments.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.Bool("final", final),
	))
}

func (m *Metrics) RecordTranslation(ctx context.Context, translator string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.TranslationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("translator", translator),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordCaption(ctx context.Context, overlap bool) {
	if m == nil {
		return
	}
	m.Captions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("overlap", overlap)))
}
