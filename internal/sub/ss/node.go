package ss

import (
	"strings"

	"github.com/John-Robertt/submerge/internal/model"
)

// ToNode renders p as a Clash-style proxy record.
//
// simple-obfs/obfs-local become plugin "obfs" with mode/host options, as Clash
// expects. Other plugins keep their name and options verbatim.
func ToNode(p Link) model.Node {
	n := model.NewNode(
		model.Field{Key: "name", Value: p.Name},
		model.Field{Key: "type", Value: "ss"},
		model.Field{Key: "server", Value: p.Server},
		model.Field{Key: "port", Value: p.Port},
		model.Field{Key: "cipher", Value: strings.ToLower(p.Cipher)},
		model.Field{Key: "password", Value: p.Password},
	)
	if p.PluginName == "" {
		return n
	}

	var opts model.Node
	switch p.PluginName {
	case "simple-obfs", "obfs-local":
		n.Set("plugin", "obfs")
		for _, kv := range p.PluginOpts {
			switch strings.TrimSpace(kv.Key) {
			case "obfs":
				opts.Set("mode", strings.TrimSpace(kv.Value))
			case "obfs-host":
				opts.Set("host", strings.TrimSpace(kv.Value))
			}
		}
	default:
		n.Set("plugin", p.PluginName)
		for _, kv := range p.PluginOpts {
			opts.Set(kv.Key, kv.Value)
		}
	}
	if opts.Len() > 0 {
		n.Set("plugin-opts", opts)
	}
	return n
}
