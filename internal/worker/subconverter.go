package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/submerge/internal/dispatch"
	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/sub/clash"
)

const (
	CodeExecFailed   = "EXEC_FAILED"
	CodeExecTimeout  = "EXEC_TIMEOUT"
	CodeArtifactMiss = "ARTIFACT_MISSING"

	DefaultExecTimeout = 60 * time.Second
)

// Subconverter drives an external subconverter binary in generate mode.
//
// All invocations share one generate.ini next to the binary; sections are
// appended under mu and removed by the caller before a run starts.
type Subconverter struct {
	Timeout time.Duration

	mu sync.Mutex
}

func NewSubconverter(timeout time.Duration) *Subconverter {
	return &Subconverter{Timeout: timeout}
}

func (s *Subconverter) Execute(ctx context.Context, t model.Task) ([]model.Node, error) {
	fail := func(code, message string, cause error) error {
		return &ExecError{
			AppError: model.AppError{Code: code, Message: message, Stage: "convert", URL: t.URL},
			Cause:    cause,
		}
	}
	if t.BinPath == "" {
		return nil, fail(CodeExecFailed, "未配置 subconverter 可执行文件", nil)
	}
	bin, err := filepath.Abs(t.BinPath)
	if err != nil {
		return nil, fail(CodeExecFailed, "subconverter 路径不合法", err)
	}
	dir := filepath.Dir(bin)
	artifact := t.ID + ".yaml"

	if err := s.appendSection(dispatch.StatePath(bin), t, artifact); err != nil {
		return nil, fail(CodeExecFailed, "写入 generate.ini 失败", err)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, "-g", "--artifact", t.ID)
	cmd.Dir = dir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fail(CodeExecTimeout, "subconverter 执行超时", err)
		}
		return nil, &ExecError{
			AppError: model.AppError{
				Code:    CodeExecFailed,
				Message: "subconverter 执行失败",
				Stage:   "convert",
				URL:     t.URL,
				Snippet: snippet(output.String()),
			},
			Cause: err,
		}
	}

	path := filepath.Join(dir, artifact)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fail(CodeArtifactMiss, "subconverter 未生成结果文件", err)
	}
	_ = os.Remove(path)

	nodes, err := clash.ParseProxies(t.URL, data)
	if err != nil {
		return nil, err
	}
	return tagSource(FilterSpecial(nodes, t.SpecialProtocols), t.URL), nil
}

func (s *Subconverter) appendSection(path string, t model.Task, artifact string) error {
	target := "clashr"
	if t.SpecialProtocols {
		target = "clash"
	}
	section := fmt.Sprintf("[%s]\npath=%s\ntarget=%s\nurl=%s\n\n", t.ID, artifact, target, t.URL)

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(section); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > 200 {
		return string(r[:200])
	}
	return s
}
