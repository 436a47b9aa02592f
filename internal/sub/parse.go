// Package sub converts a fetched subscription body into proxy nodes.
package sub

import (
	"strings"

	"github.com/samber/lo"

	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/sub/clash"
	"github.com/John-Robertt/submerge/internal/sub/ss"
)

// Parse accepts a Clash configuration or a raw/base64 ss:// share list.
func Parse(sourceURL, text string) ([]model.Node, error) {
	text = strings.TrimPrefix(text, "\uFEFF")
	if clash.LooksLikeConfig(text) {
		return clash.ParseProxies(sourceURL, []byte(text))
	}

	proxies, err := ss.Parse(sourceURL, text)
	if err != nil {
		return nil, err
	}
	return lo.Map(proxies, func(p ss.Link, _ int) model.Node { return ss.ToNode(p) }), nil
}
