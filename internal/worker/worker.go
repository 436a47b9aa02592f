// Package worker implements the conversion step: one subscription URL in,
// zero or more proxy nodes out.
package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/John-Robertt/submerge/internal/fetch"
	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/sub"
)

// classicTypes are the protocols every Clash core understands. Anything else
// needs a core with special protocol support (Clash.Meta / mihomo).
var classicTypes = map[string]struct{}{
	"ss":     {},
	"ssr":    {},
	"vmess":  {},
	"trojan": {},
	"http":   {},
	"socks5": {},
	"snell":  {},
}

type ExecError struct {
	AppError model.AppError
	Cause    error
}

func (e *ExecError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ExecError) Unwrap() error { return e.Cause }

// FilterSpecial drops nodes of non-classic types unless special is set.
func FilterSpecial(nodes []model.Node, special bool) []model.Node {
	if special {
		return nodes
	}
	return lo.Filter(nodes, func(n model.Node, _ int) bool {
		v, _ := n.Get("type")
		typ, _ := v.(string)
		_, ok := classicTypes[strings.ToLower(typ)]
		return ok
	})
}

// tagSource records where each node came from. The key is bookkeeping and is
// stripped again before output.
func tagSource(nodes []model.Node, url string) []model.Node {
	for i := range nodes {
		nodes[i].Set("sub", url)
	}
	return nodes
}

// Builtin fetches the subscription itself and converts it in-process.
type Builtin struct {
	Fetcher fetch.Fetcher
}

func NewBuiltin(f fetch.Fetcher) *Builtin {
	return &Builtin{Fetcher: f}
}

func (b *Builtin) Execute(ctx context.Context, t model.Task) ([]model.Node, error) {
	text, err := b.Fetcher.FetchText(ctx, fetch.KindSubscription, t.URL)
	if err != nil {
		return nil, err
	}
	nodes, err := sub.Parse(t.URL, text)
	if err != nil {
		return nil, err
	}
	return tagSource(FilterSpecial(nodes, t.SpecialProtocols), t.URL), nil
}
