package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/morikuni/failure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/submerge/internal/output"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"EXISTS_LINK", "MANUAL_EXISTS_LINK", "PAGE_EXISTS_LINK", "SUBCONVERTER_BIN",
		"SUBMERGE_FILENAME", "SUBMERGE_NUM", "SUBMERGE_SPECIAL_PROTOCOLS", "SUBMERGE_LOG_LEVEL",
		"SUBMERGE_FETCH_TIMEOUT", "SUBMERGE_METRICS_FILE",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoot_MissingURL(t *testing.T) {
	isolateEnv(t)
	_, err := execute(t, "-f", filepath.Join(t.TempDir(), "out.yaml"))
	require.Error(t, err)
	assert.True(t, failure.Is(err, InvalidConfig), "err=%v", err)
}

func TestRoot_InvalidNum(t *testing.T) {
	isolateEnv(t)
	_, err := execute(t, "-u", "https://feed.example/list", "-n", "0")
	require.Error(t, err)
	assert.True(t, failure.Is(err, InvalidConfig), "err=%v", err)
}

func TestRoot_EndToEnd(t *testing.T) {
	isolateEnv(t)
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(base + "/a\n" + base + "/b\n"))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ss://YWVzLTEyOC1nY206cGFzcw==@1.2.3.4:8388#n1\n"))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ss://YWVzLTEyOC1nY206cGFzcw==@5.6.7.8:8388#n1\n"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	base = ts.URL

	dir := t.TempDir()
	path := filepath.Join(dir, "proxies.yaml")
	metricsPath := filepath.Join(dir, "submerge.prom")
	_, err := execute(t, "-u", ts.URL+"/list", "-f", path, "--metrics-file", metricsPath, "--log-level", "warn")
	require.NoError(t, err)

	nodes, err := output.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	first, _ := nodes[0].Name()
	second, _ := nodes[1].Name()
	assert.Equal(t, "n1", first)
	assert.Equal(t, "n1_2", second)
	_, hasSub := nodes[0].Get("sub")
	assert.False(t, hasSub, "bookkeeping key leaked")

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `submerge_tasks_total{result="ok"} 2`)
}

func TestRoot_EmptyFeedIsNotAnError(t *testing.T) {
	isolateEnv(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("nothing to see\n"))
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "proxies.yaml")
	_, err := execute(t, "-u", ts.URL, "-f", path)
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "submerge version dev")
}
