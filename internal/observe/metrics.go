// Package observe provides the observability primitives for capview:
// OpenTelemetry metric instruments and a Prometheus exporter bridge so
// the counters the capture callbacks accumulate can be scraped from a
// standard /metrics endpoint.
//
// The hot paths never touch these instruments directly; they bump
// plain atomics and the application flushes deltas here on a timer. A
// package-level default [Metrics] instance ([DefaultMetrics]) is
// provided for convenience; tests should use [NewMetrics] with their
// own [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all capview metrics.
const meterName = "github.com/awerune/capview"

// Metrics holds the OpenTelemetry instruments for the capture
// pipeline. All fields are safe for concurrent use.
type Metrics struct {
	// AudioOverruns counts input samples dropped because the
	// passthrough ring was full.
	AudioOverruns metric.Int64Counter

	// AudioUnderruns counts output slots filled with silence because
	// the ring was empty.
	AudioUnderruns metric.Int64Counter

	// AudioContention counts callback invocations that skipped work
	// because the ring handle was briefly unavailable.
	AudioContention metric.Int64Counter

	// VideoFrames counts delivered frames. Use with attribute:
	//   attribute.String("path", "fast"|"fallback")
	VideoFrames metric.Int64Counter

	// VideoFramesDropped counts malformed samples discarded before
	// reaching the frame store.
	VideoFramesDropped metric.Int64Counter

	// VideoDecodeDuration tracks per-frame conversion latency.
	VideoDecodeDuration metric.Float64Histogram

	// Snapshots counts saved still images. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	Snapshots metric.Int64Counter
}

// decodeBuckets defines histogram boundaries (in seconds) sized for
// per-frame pixel conversion times.
var decodeBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the
// given [metric.MeterProvider]. Returns an error if any instrument
// creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AudioOverruns, err = m.Int64Counter("capview.audio.overruns",
		metric.WithDescription("Input samples dropped because the passthrough ring was full."),
	); err != nil {
		return nil, err
	}
	if met.AudioUnderruns, err = m.Int64Counter("capview.audio.underruns",
		metric.WithDescription("Output samples replaced with silence because the ring was empty."),
	); err != nil {
		return nil, err
	}
	if met.AudioContention, err = m.Int64Counter("capview.audio.contention",
		metric.WithDescription("Audio callbacks that skipped work due to ring handle contention."),
	); err != nil {
		return nil, err
	}

	if met.VideoFrames, err = m.Int64Counter("capview.video.frames",
		metric.WithDescription("Delivered video frames by capture path."),
	); err != nil {
		return nil, err
	}
	if met.VideoFramesDropped, err = m.Int64Counter("capview.video.frames_dropped",
		metric.WithDescription("Malformed video samples discarded before delivery."),
	); err != nil {
		return nil, err
	}
	if met.VideoDecodeDuration, err = m.Float64Histogram("capview.video.decode.duration",
		metric.WithDescription("Per-frame pixel conversion latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(decodeBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Snapshots, err = m.Int64Counter("capview.snapshots",
		metric.WithDescription("Saved snapshot images by status."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance,
// creating it on first call from [otel.GetMeterProvider]. Panics if
// instrument creation fails, which the global provider never does.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordAudioStats adds the delta between two audio counter snapshots.
func (m *Metrics) RecordAudioStats(ctx context.Context, overruns, underruns, contention uint64) {
	m.AudioOverruns.Add(ctx, int64(overruns))
	m.AudioUnderruns.Add(ctx, int64(underruns))
	m.AudioContention.Add(ctx, int64(contention))
}

// RecordVideoFrames adds delivered-frame deltas for one capture path.
func (m *Metrics) RecordVideoFrames(ctx context.Context, path string, n uint64) {
	if n == 0 {
		return
	}
	m.VideoFrames.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("path", path)),
	)
}

// RecordSnapshot counts one snapshot attempt.
func (m *Metrics) RecordSnapshot(ctx context.Context, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Snapshots.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
