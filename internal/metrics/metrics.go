// SPDX-License-Identifier: EPL-2.0

// Package metrics provides the prometheus collectors of the playback engine
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Load results.
const (
	LoadCompleted = "completed"
	LoadPartial   = "partial"
	LoadAborted   = "aborted"
	LoadFailed    = "error"
)

// Metrics contains the engine and loader collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	underruns        prometheus.Counter
	overloads        prometheus.Counter
	framesDecoded    prometheus.Counter
	chunkLoads       *prometheus.CounterVec
	chunkLoadSeconds prometheus.Histogram
	phaseTransitions *prometheus.CounterVec
	phase            prometheus.Gauge
}

// New creates the collectors and registers them with registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		underruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitperfect_underruns_total",
			Help: "Render periods padded with silence because the buffer ran dry",
		}),
		overloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitperfect_overloads_total",
			Help: "Render periods that took longer than the device period",
		}),
		framesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitperfect_frames_decoded_total",
			Help: "Frames written into playback buffers",
		}),
		chunkLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitperfect_chunk_loads_total",
				Help: "Buffer loads by result",
			},
			[]string{"result"}, // completed, partial, aborted, error
		),
		chunkLoadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bitperfect_chunk_load_duration_seconds",
			Help:    "Time taken to fill one buffer",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
		phaseTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitperfect_phase_transitions_total",
				Help: "Playback phase transitions",
			},
			[]string{"from", "to"},
		),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bitperfect_phase",
			Help: "Current playback phase",
		}),
	}

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.underruns.Describe(ch)
	m.overloads.Describe(ch)
	m.framesDecoded.Describe(ch)
	m.chunkLoads.Describe(ch)
	m.chunkLoadSeconds.Describe(ch)
	m.phaseTransitions.Describe(ch)
	m.phase.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.underruns.Collect(ch)
	m.overloads.Collect(ch)
	m.framesDecoded.Collect(ch)
	m.chunkLoads.Collect(ch)
	m.chunkLoadSeconds.Collect(ch)
	m.phaseTransitions.Collect(ch)
	m.phase.Collect(ch)
}

func (m *Metrics) AddUnderruns(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.underruns.Add(float64(n))
}

func (m *Metrics) AddOverloads(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.overloads.Add(float64(n))
}

func (m *Metrics) AddFramesDecoded(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.framesDecoded.Add(float64(n))
}

// RecordLoad counts one buffer load.
func (m *Metrics) RecordLoad(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.chunkLoads.WithLabelValues(result).Inc()
	m.chunkLoadSeconds.Observe(took.Seconds())
}

// RecordPhase counts a phase transition and sets the current phase.
func (m *Metrics) RecordPhase(from, to string, value int) {
	if m == nil {
		return
	}
	m.phaseTransitions.WithLabelValues(from, to).Inc()
	m.phase.Set(float64(value))
}
