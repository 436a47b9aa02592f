package model

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field is one key/value pair of a Node.
type Field struct {
	Key   string
	Value any
}

// Node is one proxy endpoint as produced by a conversion worker.
//
// It is an ordered string-keyed record: values are scalars, []any, nested
// Nodes or plain maps. Field order is preserved from decode to encode so the
// merged document stays diff-friendly.
type Node struct {
	fields []Field
}

func NewNode(fields ...Field) Node {
	var n Node
	for _, f := range fields {
		n.Set(f.Key, f.Value)
	}
	return n
}

func (n Node) Len() int { return len(n.fields) }

func (n Node) index(key string) int {
	for i, f := range n.fields {
		if f.Key == key {
			return i
		}
	}
	return -1
}

func (n Node) Get(key string) (any, bool) {
	if i := n.index(key); i >= 0 {
		return n.fields[i].Value, true
	}
	return nil, false
}

// Set replaces the value of key in place, or appends it when absent.
func (n *Node) Set(key string, value any) {
	if i := n.index(key); i >= 0 {
		n.fields[i].Value = value
		return
	}
	n.fields = append(n.fields, Field{Key: key, Value: value})
}

// Delete removes key and reports whether it was present.
func (n *Node) Delete(key string) bool {
	i := n.index(key)
	if i < 0 {
		return false
	}
	n.fields = append(n.fields[:i:i], n.fields[i+1:]...)
	return true
}

// Fields returns a copy of the fields in order.
func (n Node) Fields() []Field {
	out := make([]Field, len(n.fields))
	copy(out, n.fields)
	return out
}

// Clone returns a Node that shares no top-level storage with n.
func (n Node) Clone() Node {
	return Node{fields: n.Fields()}
}

// Name returns the "name" field when it is a string.
func (n Node) Name() (string, bool) {
	v, ok := n.Get("name")
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ToMap converts n (recursively) into plain maps, dropping field order.
func (n Node) ToMap() map[string]any {
	m := make(map[string]any, len(n.fields))
	for _, f := range n.fields {
		m[f.Key] = plainValue(f.Value)
	}
	return m
}

func plainValue(v any) any {
	switch x := v.(type) {
	case Node:
		return x.ToMap()
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = plainValue(x[i])
		}
		return out
	default:
		return v
	}
}

// Equal reports whether both nodes hold the same fields in the same order.
func (n Node) Equal(o Node) bool {
	if len(n.fields) != len(o.fields) {
		return false
	}
	for i := range n.fields {
		if n.fields[i].Key != o.fields[i].Key {
			return false
		}
		if !reflect.DeepEqual(n.fields[i].Value, o.fields[i].Value) {
			return false
		}
	}
	return true
}

func (n Node) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range n.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(FormatValue(f.Value))
	}
	b.WriteByte('}')
	return b.String()
}

// FormatValue renders v as a stable string. Plain maps are rendered with
// sorted keys; Nodes keep their field order.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case Node:
		return x.String()
	case []any:
		parts := make([]string, len(x))
		for i := range x {
			parts[i] = FormatValue(x[i])
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + FormatValue(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}

func (n Node) MarshalYAML() (any, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, f := range n.fields {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key}
		val := &yaml.Node{}
		if err := val.Encode(f.Value); err != nil {
			return nil, fmt.Errorf("encode field %q: %w", f.Key, err)
		}
		out.Content = append(out.Content, key, val)
	}
	return out, nil
}

func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	for value.Kind == yaml.AliasNode {
		value = value.Alias
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: proxy entry is not a mapping", value.Line)
	}

	var out Node
	var merged []*yaml.Node
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		if k.Tag == "!!merge" {
			merged = append(merged, v)
			continue
		}
		var key string
		if err := k.Decode(&key); err != nil {
			return fmt.Errorf("line %d: %w", k.Line, err)
		}
		val, err := decodeValue(v)
		if err != nil {
			return err
		}
		out.Set(key, val)
	}

	// "<<" merge keys only fill fields that the mapping does not set itself.
	for _, m := range merged {
		var sources []*yaml.Node
		for m.Kind == yaml.AliasNode {
			m = m.Alias
		}
		if m.Kind == yaml.SequenceNode {
			sources = m.Content
		} else {
			sources = []*yaml.Node{m}
		}
		for _, src := range sources {
			var base Node
			if err := base.UnmarshalYAML(src); err != nil {
				return err
			}
			for _, f := range base.fields {
				if _, ok := out.Get(f.Key); !ok {
					out.Set(f.Key, f.Value)
				}
			}
		}
	}

	*n = out
	return nil
}

func decodeValue(v *yaml.Node) (any, error) {
	switch v.Kind {
	case yaml.AliasNode:
		return decodeValue(v.Alias)
	case yaml.MappingNode:
		var n Node
		if err := n.UnmarshalYAML(v); err != nil {
			return nil, err
		}
		return n, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(v.Content))
		for _, c := range v.Content {
			x, err := decodeValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, x)
		}
		return out, nil
	default:
		var x any
		if err := v.Decode(&x); err != nil {
			return nil, fmt.Errorf("line %d: %w", v.Line, err)
		}
		return x, nil
	}
}
