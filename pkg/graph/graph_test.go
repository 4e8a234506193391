package graph

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestNode_MarshalJSON(t *testing.T) {
	n := NewNode("http://example.org/a", "composer", map[string]any{"color": "blue", "size": 10})
	n.Attributes.Set("label", "Adam")
	n.Attributes.Set("id", "ignored")
	n.SetProperty("http://example.org/p", "v")

	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	expected := `{"id":"http://example.org/a","group":"composer","color":"blue","size":10,"label":"Adam","properties":{"http://example.org/p":"v"}}`
	if string(data) != expected {
		t.Errorf("expected %s\ngot      %s", expected, data)
	}
}

func TestNode_MarshalJSONWithoutProperties(t *testing.T) {
	n := NewNode("a", "g", nil)

	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"id":"a","group":"g"}` {
		t.Errorf("unexpected json %s", data)
	}
}

func TestEdge_MarshalJSON(t *testing.T) {
	e := NewEdge("a", "b")
	e.Attributes.Set("arrow", "to")
	e.Count = 2

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	expected := `{"id":"a-b","from":"a","to":"b","arrow":"to","_count":2}`
	if string(data) != expected {
		t.Errorf("expected %s\ngot      %s", expected, data)
	}
}

func TestGraph_JSONRoundTrip(t *testing.T) {
	nodes := NewNodeSet()
	a := nodes.Put(NewNode("a", "g", map[string]any{"color": "red"}))
	a.Attributes.Set("label", "A")
	nodes.Put(NewNode("b", "g", nil))

	edges := NewEdgeManager(DefaultBundlingStrategy())
	e := NewEdge("a", "b")
	e.Attributes.Set("arrow", "from")
	edges.Add(e)

	data, err := json.Marshal(Build(nodes, edges))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Graph
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if len(decoded.Nodes) != 2 || len(decoded.Edges) != 1 {
		t.Fatalf("expected 2 nodes and 1 edge, got %d and %d", len(decoded.Nodes), len(decoded.Edges))
	}
	if label, _ := decoded.Nodes[0].Attributes.Get("label"); label != "A" {
		t.Errorf("expected label A, got %v", label)
	}
	if keys := decoded.Nodes[0].Attributes.Keys(); len(keys) != 2 || keys[0] != "color" {
		t.Errorf("expected attribute order [color label], got %v", keys)
	}
	if decoded.Edges[0].Count != 1 || decoded.Edges[0].From != "a" {
		t.Errorf("unexpected edge %+v", decoded.Edges[0])
	}
}

func TestNodeSet_PutKeepsFirst(t *testing.T) {
	nodes := NewNodeSet()
	first := nodes.Put(NewNode("a", "first", nil))
	second := nodes.Put(NewNode("a", "second", nil))

	if first != second {
		t.Error("expected Put to return the existing node")
	}
	if second.Group != "first" {
		t.Errorf("expected group to stay first, got %s", second.Group)
	}
	if nodes.Len() != 1 {
		t.Errorf("expected 1 node, got %d", nodes.Len())
	}
}

// TestEdgeManagerProperties checks bundling invariants over random
// sequences of edges between a small set of nodes.
func TestEdgeManagerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	endpoints := gen.SliceOf(gen.IntRange(0, 4))

	toKeys := func(ends []int) []EdgeKey {
		keys := make([]EdgeKey, 0, len(ends)/2)
		for i := 0; i+1 < len(ends); i += 2 {
			keys = append(keys, EdgeKey{From: string(rune('a' + ends[i])), To: string(rune('a' + ends[i+1]))})
		}
		return keys
	}

	properties.Property("allow keeps every edge", prop.ForAll(
		func(ends []int) bool {
			keys := toKeys(ends)
			m := NewEdgeManager(BundlingStrategy{Type: StrategyAllow, Count: true})
			addKeys(m, keys...)
			return m.Len() == len(keys)
		},
		endpoints,
	))

	properties.Property("counts sum to the number of adds", prop.ForAll(
		func(ends []int, unidirectional bool) bool {
			keys := toKeys(ends)
			strategy := BundlingStrategy{Type: StrategyBidirectional, Count: true}
			if unidirectional {
				strategy.Type = StrategyUnidirectional
			}
			m := NewEdgeManager(strategy)
			addKeys(m, keys...)
			total := 0
			for _, e := range m.Edges() {
				total += e.Count
			}
			return total == len(keys)
		},
		endpoints,
		gen.Bool(),
	))

	properties.Property("unidirectional never stores both directions", prop.ForAll(
		func(ends []int) bool {
			m := NewEdgeManager(BundlingStrategy{Type: StrategyUnidirectional, Count: true})
			addKeys(m, toKeys(ends)...)
			seen := make(map[EdgeKey]bool)
			for ident := range m.edges {
				if seen[ident.key.Reverse()] && ident.key.From != ident.key.To {
					return false
				}
				seen[ident.key] = true
			}
			return true
		},
		endpoints,
	))

	properties.TestingRun(t)
}
