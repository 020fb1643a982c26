// SPDX-License-Identifier: EPL-2.0

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := New(registry)
	require.NoError(t, err)

	m.AddUnderruns(3)
	m.AddUnderruns(0)
	m.AddOverloads(1)
	m.AddFramesDecoded(4096)
	m.RecordLoad(LoadCompleted, 20*time.Millisecond)
	m.RecordLoad(LoadAborted, time.Millisecond)
	m.RecordLoad(LoadAborted, time.Millisecond)
	m.RecordPhase("idle", "initiating playback", 1)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.underruns))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.overloads))
	assert.Equal(t, float64(4096), testutil.ToFloat64(m.framesDecoded))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.chunkLoads.WithLabelValues(LoadCompleted)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.chunkLoads.WithLabelValues(LoadAborted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.phaseTransitions.WithLabelValues("idle", "initiating playback")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.phase))

	count, err := testutil.GatherAndCount(registry, "bitperfect_chunk_loads_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetrics_DoubleRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := New(registry)
	require.NoError(t, err)

	_, err = New(registry)
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddUnderruns(1)
		m.AddOverloads(1)
		m.AddFramesDecoded(1)
		m.RecordLoad(LoadFailed, time.Second)
		m.RecordPhase("a", "b", 2)
	})
}
