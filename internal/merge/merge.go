// Package merge folds per-task node lists into one collision-free,
// deduplicated list.
package merge

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"

	"github.com/John-Robertt/submerge/internal/model"
)

// BookkeepingKeys are attached by workers and never reach the output.
var BookkeepingKeys = []string{"sub", "chatgpt", "liveness"}

// identityExcluded are left out of the dedup key: name is renamed anyway and
// uuid is often regenerated per fetch.
var identityExcluded = map[string]struct{}{"name": {}, "uuid": {}}

// ErrNoNodes is returned when nothing survives sanitizing.
var ErrNoNodes = errors.New("no proxy nodes")

type Result struct {
	Nodes []model.Node

	Duplicates int // discarded as structural duplicates
	Renamed    int // renamed to resolve name collisions
	Dropped    int // rejected as malformed
}

type MergeError struct {
	AppError model.AppError
	Cause    error
}

func (e *MergeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *MergeError) Unwrap() error { return e.Cause }

// header is the part of a node every consumer relies on. Scalar names are
// weakly decoded so YAML like "name: 2024" survives as the string "2024".
type header struct {
	Name string `mapstructure:"name" validate:"required"`
}

var validate = validator.New()

// Merge flattens batches in order, strips bookkeeping keys, drops
// duplicates (first wins) and renames repeated names to name_2, name_3, ...
//
// Input nodes are not modified.
func Merge(batches [][]model.Node) (*Result, error) {
	res := &Result{}

	var nodes []model.Node
	for _, n := range lo.Flatten(batches) {
		clean, err := sanitize(n)
		if err != nil {
			res.Dropped++
			continue
		}
		nodes = append(nodes, clean)
	}
	if len(nodes) == 0 {
		return res, &MergeError{
			AppError: model.AppError{Code: "NO_NODES", Message: "没有任何可用节点", Stage: "merge"},
			Cause:    ErrNoNodes,
		}
	}

	seen := make(map[string]struct{}, len(nodes))
	kept := make([]model.Node, 0, len(nodes))
	for _, n := range nodes {
		key := IdentityKey(n)
		if _, ok := seen[key]; ok {
			res.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, n)
	}

	res.Renamed = rename(kept)
	res.Nodes = kept
	return res, nil
}

func sanitize(n model.Node) (model.Node, error) {
	if n.Len() == 0 {
		return model.Node{}, errors.New("empty node")
	}
	var h header
	if err := mapstructure.WeakDecode(n.ToMap(), &h); err != nil {
		return model.Node{}, err
	}
	if err := validate.Struct(h); err != nil {
		return model.Node{}, err
	}
	out := n.Clone()
	out.Set("name", h.Name)
	for _, k := range BookkeepingKeys {
		out.Delete(k)
	}
	return out, nil
}

// IdentityKey is the order-independent set of (key, value) pairs that
// decides whether two nodes describe the same endpoint.
func IdentityKey(n model.Node) string {
	pairs := make([]string, 0, n.Len())
	for _, f := range n.Fields() {
		if _, ok := identityExcluded[f.Key]; ok {
			continue
		}
		if lo.Contains(BookkeepingKeys, f.Key) {
			continue
		}
		pairs = append(pairs, f.Key+"\x00"+model.FormatValue(f.Value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "\x01")
}

// rename gives the k-th occurrence of a name the suffix _k. When name_k is
// already held by an earlier node, k advances until the name is free.
// Decisions only look at nodes to the left; renames are applied after the
// scan.
func rename(nodes []model.Node) int {
	type change struct {
		idx  int
		name string
	}
	var changes []change
	count := make(map[string]int, len(nodes))
	used := make(map[string]struct{}, len(nodes))
	for i, n := range nodes {
		name, _ := n.Name()
		count[name]++
		if _, ok := used[name]; !ok {
			used[name] = struct{}{}
			continue
		}
		k := max(count[name], 2)
		next := fmt.Sprintf("%s_%d", name, k)
		for {
			if _, ok := used[next]; !ok {
				break
			}
			k++
			next = fmt.Sprintf("%s_%d", name, k)
		}
		used[next] = struct{}{}
		changes = append(changes, change{idx: i, name: next})
	}

	for _, c := range changes {
		nodes[c.idx].Set("name", c.name)
	}
	return len(changes)
}
