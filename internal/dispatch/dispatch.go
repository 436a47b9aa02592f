// Package dispatch runs conversion tasks through a bounded worker pool.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/submerge/internal/log"
	"github.com/John-Robertt/submerge/internal/model"
)

const DefaultConcurrency = 64

// StateFileName is the settings file the external converter regenerates on
// every run and shares between all of its invocations.
const StateFileName = "generate.ini"

// Worker converts one subscription into nodes.
type Worker interface {
	Execute(ctx context.Context, t model.Task) ([]model.Node, error)
}

// WorkerFunc adapts a plain function to Worker.
type WorkerFunc func(ctx context.Context, t model.Task) ([]model.Node, error)

func (f WorkerFunc) Execute(ctx context.Context, t model.Task) ([]model.Node, error) {
	return f(ctx, t)
}

// Outcome is the terminal result of one task. A failed task has Err set and
// no Nodes.
type Outcome struct {
	Task     model.Task
	Nodes    []model.Node
	Err      error
	Duration time.Duration
}

// PanicError is recorded when a worker panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("worker panic: %v", e.Value) }

type Dispatcher struct {
	Concurrency int
}

func New(concurrency int) *Dispatcher {
	return &Dispatcher{Concurrency: concurrency}
}

func (d *Dispatcher) limit() int {
	if d == nil || d.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return d.Concurrency
}

// Run executes w once per task with at most Concurrency tasks in flight and
// returns after every task has finished. outcomes[i] always belongs to
// tasks[i], whatever the completion order.
func (d *Dispatcher) Run(ctx context.Context, tasks []model.Task, w Worker) []Outcome {
	outcomes := make([]Outcome, len(tasks))

	var g errgroup.Group
	g.SetLimit(d.limit())
	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			outcomes[i] = execute(ctx, t, w)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func execute(ctx context.Context, t model.Task, w Worker) (out Outcome) {
	start := time.Now()
	out.Task = t
	defer func() {
		if r := recover(); r != nil {
			out.Nodes = nil
			out.Err = &PanicError{Value: r, Stack: debug.Stack()}
		}
		out.Duration = time.Since(start)
		if out.Err != nil {
			log.Warn("task failed", "id", t.ID, "sub", t.URL, "error", out.Err)
			var pe *PanicError
			if errors.As(out.Err, &pe) {
				log.Debug("worker panic stack", "id", t.ID, "stack", string(pe.Stack))
			}
			return
		}
		log.Debug("task done", "id", t.ID, "sub", t.URL, "nodes", len(out.Nodes), "dur", out.Duration.Round(time.Millisecond))
	}()

	nodes, err := w.Execute(ctx, t)
	if err != nil {
		out.Err = err
		return out
	}
	out.Nodes = nodes
	return out
}

// StatePath returns the shared settings file used by the converter binary
// at bin; empty when no binary is configured.
func StatePath(bin string) string {
	if bin == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(bin), StateFileName)
}

// RemoveStaleState deletes a settings file left by a previous run. A missing
// file is fine; a directory at path is left alone.
func RemoveStaleState(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	log.Debug("removed stale converter state", "path", path)
	return nil
}
