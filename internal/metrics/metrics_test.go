package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRun("DONE", "completed", 2*time.Second)
	m.ObserveRun("ABORTED", "asset_not_found", time.Second)
	m.ObserveRun("ABORTED", "asset_not_found", time.Second)
	m.ObserveDetectorExit(0)
	m.ObserveDetectorExit(3)
	m.SetQueueDepth(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("DONE", "completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("ABORTED", "asset_not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.detectorExit.WithLabelValues("3")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))

	count, err := testutil.GatherAndCount(reg, "annotator_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	var histogram *dto.Histogram
	for _, family := range families {
		if family.GetName() == "annotator_run_duration_seconds" {
			require.Len(t, family.GetMetric(), 1)
			histogram = family.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, histogram)
	assert.Equal(t, uint64(3), histogram.GetSampleCount())
	assert.InDelta(t, 4.0, histogram.GetSampleSum(), 1e-9)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("DONE", "completed", time.Second)
		m.ObserveDetectorExit(1)
		m.SetQueueDepth(1)
	})
}
