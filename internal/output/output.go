// Package output persists the merged node list as a Clash proxies document.
package output

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/submerge/internal/model"
)

type document struct {
	Proxies []model.Node `yaml:"proxies"`
}

// Marshal renders nodes as `proxies:` YAML with 2-space indentation.
func Marshal(nodes []model.Node) ([]byte, error) {
	if nodes == nil {
		nodes = []model.Node{}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(document{Proxies: nodes}); err != nil {
		return nil, fmt.Errorf("encode proxies: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode proxies: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes nodes to path, creating parent directories. The file is
// replaced atomically so readers never see a partial document.
func WriteFile(path string, nodes []model.Node) error {
	data, err := Marshal(nodes)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a document written by WriteFile.
func ReadFile(path string) ([]model.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc.Proxies, nil
}
