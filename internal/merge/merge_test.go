package merge

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/sub/clash"
)

func node(kv ...any) model.Node {
	var n model.Node
	for i := 0; i+1 < len(kv); i += 2 {
		n.Set(kv[i].(string), kv[i+1])
	}
	return n
}

func names(nodes []model.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		name, _ := n.Name()
		out = append(out, name)
	}
	return out
}

func TestMerge_RenameOccurrences(t *testing.T) {
	batches := [][]model.Node{
		{node("name", "x", "server", "a")},
		{node("name", "y", "server", "b")},
		{node("name", "x", "server", "c"), node("name", "x", "server", "d")},
	}
	res, err := Merge(batches)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"x", "y", "x_2", "x_3"}, names(res.Nodes)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if res.Renamed != 2 || res.Duplicates != 0 {
		t.Fatalf("renamed=%d duplicates=%d, want=2,0", res.Renamed, res.Duplicates)
	}
}

func TestMerge_RenameSkipsTakenNames(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"earlier literal", []string{"x", "x_2", "x"}, []string{"x", "x_2", "x_3"}},
		{"later literal", []string{"x", "x", "x_2"}, []string{"x", "x_2", "x_2_2"}},
		{"no collision", []string{"a", "b", "c"}, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var batch []model.Node
			for i, name := range tt.in {
				batch = append(batch, node("name", name, "port", i))
			}
			res, err := Merge([][]model.Node{batch})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, names(res.Nodes)); diff != "" {
				t.Errorf("names mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerge_DedupIgnoresNameAndUUID(t *testing.T) {
	batches := [][]model.Node{
		{node("name", "a", "server", "1.2.3.4", "port", 443, "uuid", "u1", "sub", "https://a.example")},
		{node("name", "b", "port", 443, "server", "1.2.3.4", "uuid", "u2", "sub", "https://b.example")},
		{node("name", "c", "server", "1.2.3.4", "port", 8443)},
	}
	res, err := Merge(batches)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "c"}, names(res.Nodes)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if res.Duplicates != 1 {
		t.Fatalf("duplicates=%d, want=1", res.Duplicates)
	}
}

func TestMerge_StripsBookkeeping(t *testing.T) {
	in := node("name", "n1", "server", "s", "sub", "u", "chatgpt", true, "liveness", "ok")
	res, err := Merge([][]model.Node{{in}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := node("name", "n1", "server", "s")
	if diff := cmp.Diff(want, res.Nodes[0]); diff != "" {
		t.Errorf("node mismatch (-want +got):\n%s", diff)
	}
	if _, ok := in.Get("sub"); !ok {
		t.Fatalf("input node was modified")
	}
}

func TestMerge_DropsMalformed(t *testing.T) {
	batches := [][]model.Node{
		{model.Node{}, node("server", "s"), node("name", 12, "server", "s"), node("name", "", "server", "s")},
		nil,
		{node("name", "ok", "server", "s")},
	}
	res, err := Merge(batches)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Dropped != 3 || len(res.Nodes) != 2 {
		t.Fatalf("dropped=%d nodes=%d, want=3,2", res.Dropped, len(res.Nodes))
	}
	if diff := cmp.Diff([]string{"12", "ok"}, names(res.Nodes)); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_ScalarNamesBecomeStrings(t *testing.T) {
	nodes, err := clash.ParseProxies("https://a.example/sub", []byte("proxies:\n  - {name: 2024, server: a}\n  - {name: true, server: c}\n  - {name: hk, server: b}\n  - {name: ~, server: e}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := Merge([][]model.Node{nodes})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Dropped != 1 {
		t.Fatalf("dropped=%d, want=1", res.Dropped)
	}
	if diff := cmp.Diff([]string{"2024", "1", "hk"}, names(res.Nodes)); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if v, _ := res.Nodes[0].Get("name"); v != "2024" {
		t.Fatalf("name=%#v, want string", v)
	}
	if v, _ := nodes[0].Get("name"); v != 2024 {
		t.Fatalf("input node modified: name=%#v", v)
	}
}

func TestMerge_NoNodes(t *testing.T) {
	for _, batches := range [][][]model.Node{nil, {nil, {}}, {{node("server", "s")}}} {
		_, err := Merge(batches)
		if !errors.Is(err, ErrNoNodes) {
			t.Fatalf("err=%v, want ErrNoNodes", err)
		}
		var me *MergeError
		if !errors.As(err, &me) || me.AppError.Stage != "merge" {
			t.Fatalf("expected *MergeError with stage merge, got %T", err)
		}
	}
}

func TestMerge_UniqueNames(t *testing.T) {
	var batch []model.Node
	for i := 0; i < 50; i++ {
		name := []string{"a", "a_2", "b", "a_3"}[i%4]
		batch = append(batch, node("name", name, "port", i))
	}
	res, err := Merge([][]model.Node{batch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := map[string]bool{}
	for _, n := range names(res.Nodes) {
		if seen[n] {
			t.Fatalf("duplicate name %q", n)
		}
		seen[n] = true
	}
	if len(res.Nodes) != 50 {
		t.Fatalf("nodes=%d, want=50", len(res.Nodes))
	}
}

func TestIdentityKey_NestedValues(t *testing.T) {
	a := node("name", "a", "ws-opts", node("path", "/ws"), "alpn", []any{"h2"})
	b := node("alpn", []any{"h2"}, "ws-opts", node("path", "/ws"), "name", "b")
	if IdentityKey(a) != IdentityKey(b) {
		t.Fatalf("keys differ:\n%q\n%q", IdentityKey(a), IdentityKey(b))
	}
}
