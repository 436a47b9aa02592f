// Package task turns harvested URLs into one task per unique subscription.
package task

import (
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/John-Robertt/submerge/internal/model"
)

// IDLength is the length of generated task IDs.
const IDLength = 8

type Options struct {
	BinPath          string
	SpecialProtocols bool
}

// Build returns one task per distinct URL, in first occurrence order.
// Blank entries are ignored.
func Build(urls []string, opt Options) []model.Task {
	unique := lo.Uniq(lo.FilterMap(urls, func(u string, _ int) (string, bool) {
		u = strings.TrimSpace(u)
		return u, u != ""
	}))

	used := make(map[string]struct{}, len(unique))
	tasks := make([]model.Task, 0, len(unique))
	for _, u := range unique {
		tasks = append(tasks, model.Task{
			ID:               newID(used),
			URL:              u,
			BinPath:          opt.BinPath,
			SpecialProtocols: opt.SpecialProtocols,
		})
	}
	return tasks
}

// newID draws random hex tokens until one is not in used.
func newID(used map[string]struct{}) string {
	for {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:IDLength]
		if _, ok := used[id]; ok {
			continue
		}
		used[id] = struct{}{}
		return id
	}
}
