// Package pipeline wires harvesting, dispatch, merging and persistence into
// one run.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/submerge/internal/dispatch"
	"github.com/John-Robertt/submerge/internal/fetch"
	"github.com/John-Robertt/submerge/internal/harvest"
	"github.com/John-Robertt/submerge/internal/log"
	"github.com/John-Robertt/submerge/internal/merge"
	"github.com/John-Robertt/submerge/internal/metrics"
	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/output"
	"github.com/John-Robertt/submerge/internal/task"
)

type Options struct {
	Sources     harvest.Sources
	Output      string
	Concurrency int

	// BinPath selects the external converter; its generate.ini is cleared
	// before dispatch.
	BinPath          string
	SpecialProtocols bool
}

// Summary describes a finished run.
type Summary struct {
	Tasks      int
	Failed     int
	Nodes      int
	Renamed    int
	Duplicates int
	Dropped    int
	Path       string
}

type Pipeline struct {
	Fetcher fetch.Fetcher
	Worker  dispatch.Worker
	Metrics *metrics.Metrics // optional
}

// Run executes one aggregation run. ErrNothingToDo and merge.ErrNoNodes
// end the run without writing anything.
func (p *Pipeline) Run(ctx context.Context, opt Options) (*Summary, error) {
	opt.Sources.Primary = strings.TrimSpace(opt.Sources.Primary)
	opt.Output = strings.TrimSpace(opt.Output)
	if opt.Sources.Primary == "" {
		return nil, ErrMissingURL
	}
	if opt.Output == "" {
		return nil, ErrMissingOutput
	}
	path, err := filepath.Abs(opt.Output)
	if err != nil {
		return nil, err
	}

	cands := harvest.New(p.Fetcher).Collect(ctx, opt.Sources)
	p.Metrics.AddSourceURLs("primary", len(cands.Primary))
	p.Metrics.AddSourceURLs("manual", len(cands.Manual))
	p.Metrics.AddSourceURLs("page", len(cands.Pages))
	if cands.Empty() {
		log.Warn("no subscription link found, nothing to do")
		return nil, ErrNothingToDo
	}

	tasks := task.Build(cands.All(), task.Options{BinPath: opt.BinPath, SpecialProtocols: opt.SpecialProtocols})
	log.Info("start generate subscribes information",
		"tasks", len(tasks), "manual", len(cands.Manual), "pages", len(cands.Pages))

	if err := dispatch.RemoveStaleState(dispatch.StatePath(opt.BinPath)); err != nil {
		return nil, err
	}

	outcomes := dispatch.New(opt.Concurrency).Run(ctx, tasks, p.Worker)

	sum := &Summary{Tasks: len(tasks), Path: path}
	batches := make([][]model.Node, 0, len(outcomes))
	raw := 0
	for _, o := range outcomes {
		p.Metrics.ObserveTask(o.Err == nil, o.Duration)
		if o.Err != nil {
			sum.Failed++
			if ae, ok := AppErrorOf(o.Err); ok {
				p.Metrics.IncError(ae.Stage, ae.Code)
			} else {
				p.Metrics.IncError("convert", "")
			}
			continue
		}
		raw += len(o.Nodes)
		batches = append(batches, o.Nodes)
	}
	p.Metrics.AddNodes("converted", raw)

	res, err := merge.Merge(batches)
	if err != nil {
		if ae, ok := AppErrorOf(err); ok {
			p.Metrics.IncError(ae.Stage, ae.Code)
		}
		log.Error("no proxy node survived conversion", "tasks", len(tasks), "failed", sum.Failed)
		return sum, err
	}
	sum.Nodes = len(res.Nodes)
	sum.Renamed = res.Renamed
	sum.Duplicates = res.Duplicates
	sum.Dropped = res.Dropped
	p.Metrics.AddNodes("dropped", res.Dropped)
	p.Metrics.AddNodes("duplicate", res.Duplicates)
	p.Metrics.AddNodes("renamed", res.Renamed)

	if err := output.WriteFile(path, res.Nodes); err != nil {
		p.Metrics.IncError("output", "WRITE_FAILED")
		return sum, err
	}
	p.Metrics.AddNodes("output", sum.Nodes)

	log.Info("proxies saved",
		"found", sum.Nodes, "renamed", sum.Renamed, "removed", sum.Duplicates, "path", path)
	return sum, nil
}
