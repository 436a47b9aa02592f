package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/submerge/internal/model"
)

func sampleNodes() []model.Node {
	return []model.Node{
		model.NewNode(
			model.Field{Key: "name", Value: "香港 01"},
			model.Field{Key: "type", Value: "vmess"},
			model.Field{Key: "server", Value: "hk.example.com"},
			model.Field{Key: "port", Value: 443},
			model.Field{Key: "tls", Value: true},
			model.Field{Key: "ws-opts", Value: model.NewNode(
				model.Field{Key: "path", Value: "/ws"},
			)},
			model.Field{Key: "alpn", Value: []any{"h2", "http/1.1"}},
		),
		model.NewNode(
			model.Field{Key: "name", Value: "n1"},
			model.Field{Key: "server", Value: "1.2.3.4"},
		),
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "proxies.yaml")
	nodes := sampleNodes()

	require.NoError(t, WriteFile(path, nodes))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, len(nodes))
	for i := range nodes {
		assert.Truef(t, nodes[i].Equal(got[i]), "node %d: want %v, got %v", i, nodes[i], got[i])
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "proxies:\n"), string(data))
	assert.Contains(t, string(data), "name: 香港 01", "unicode must not be escaped")
}

func TestWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stale content that is much longer than the new document\n"), 0o600))

	require.NoError(t, WriteFile(path, sampleNodes()[1:]))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	name, _ := got[0].Name()
	assert.Equal(t, "n1", name)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestMarshal_Empty(t *testing.T) {
	data, err := Marshal(nil)
	require.NoError(t, err)
	assert.Equal(t, "proxies: []\n", string(data))
}
