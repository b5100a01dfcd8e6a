package observability

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordsDriverEvents(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	m.Observe(ctx, "construct", true, 5*time.Millisecond)
	m.Observe(ctx, "construct", false, time.Millisecond)
	m.Observe(ctx, "", true, time.Second)
	m.ObserveNetwork(45, 34, 40, 20)
	m.SampleWritten()
	m.SampleWritten()
	m.Submission(OutcomeSubmitted)
	m.Submission(OutcomeFailed)
	m.Submission(OutcomeSubmitted)
	m.WaitPoll(3)
	m.WaitPoll(1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("construct", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("construct", "error")))
	assert.Equal(t, 45.0, testutil.ToFloat64(m.reactions.WithLabelValues("forward")))
	assert.Equal(t, 34.0, testutil.ToFloat64(m.reactions.WithLabelValues("reverse")))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.species))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.record))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.samples))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.submits.WithLabelValues(OutcomeSubmitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submits.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.polls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 1, testutil.CollectAndCount(m.durations))
}

func TestMetricsGatherAndTextfile(t *testing.T) {
	m := NewMetrics()
	m.SampleWritten()

	expected := `
# HELP tcrkp_samples_written_total Per-sample working directories written.
# TYPE tcrkp_samples_written_total counter
tcrkp_samples_written_total 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "tcrkp_samples_written_total"))

	path := filepath.Join(t.TempDir(), "tcrkp.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tcrkp_samples_written_total 1")
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.Observe(context.Background(), "x", true, time.Second)
	r.ObserveNetwork(1, 1, 1, 1)
	r.SampleWritten()
	r.Submission(OutcomeSkipped)
	r.WaitPoll(0)
}
