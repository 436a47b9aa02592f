package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.AddSourceURLs("primary", 3)
	m.AddSourceURLs("page", 2)
	m.ObserveTask(true, 200*time.Millisecond)
	m.ObserveTask(false, time.Second)
	m.ObserveTask(true, time.Millisecond)
	m.AddNodes("merged", 7)
	m.IncError("fetch_sub", "FETCH_TIMEOUT")
	m.IncError("", "")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.SourceURLsTotal.WithLabelValues("primary")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TasksTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksTotal.WithLabelValues("failed")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.NodesTotal.WithLabelValues("merged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("(unknown)", "(unknown)")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TaskDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.AddSourceURLs("primary", 1)
	m.ObserveTask(true, time.Second)
	m.AddNodes("merged", 1)
	m.IncError("merge", "NO_NODES")
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.AddNodes("output", 4)
	path := filepath.Join(t.TempDir(), "submerge.prom")

	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `submerge_nodes_total{stage="output"} 4`)
	assert.True(t, strings.Contains(text, "submerge_last_run_timestamp_seconds"), text)
}
