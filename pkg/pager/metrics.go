package pager

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	FaultLatencyMetric metric.Int64Histogram
	PagesLoadedMetric  metric.Int64Counter
	BytesLoadedMetric  metric.Int64Counter
}

func NewMetrics(meterProvider metric.MeterProvider) (Metrics, error) {
	pagerMeter := meterProvider.Meter("pkg.pager.metrics")

	faults, err := pagerMeter.Int64Histogram("axvma.pager.fault.duration",
		metric.WithDescription("Time to serve a page fault"),
		metric.WithUnit("us"),
	)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to get fault duration metric: %w", err)
	}

	pages, err := pagerMeter.Int64Counter("axvma.pager.pages.loaded",
		metric.WithDescription("Total pages loaded"),
	)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to get loaded pages metric: %w", err)
	}

	loadedBytes, err := pagerMeter.Int64Counter("axvma.pager.bytes.loaded",
		metric.WithDescription("Total bytes read from backing files"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to get loaded bytes metric: %w", err)
	}

	return Metrics{
		FaultLatencyMetric: faults,
		PagesLoadedMetric:  pages,
		BytesLoadedMetric:  loadedBytes,
	}, nil
}

func (m Metrics) Begin(hist metric.Int64Histogram) Stopwatch {
	return Stopwatch{hist: hist, start: time.Now()}
}

func KV[T ~string](key string, value T) attribute.KeyValue {
	return attribute.String(key, string(value))
}

// Stopwatch records the elapsed time into a histogram. Faults are
// served from memory or local files, so it keeps microsecond resolution.
type Stopwatch struct {
	hist  metric.Int64Histogram
	start time.Time
}

func (t Stopwatch) End(ctx context.Context, kv ...attribute.KeyValue) {
	elapsed := time.Since(t.start).Microseconds()
	t.hist.Record(ctx, elapsed, metric.WithAttributes(kv...))
}
