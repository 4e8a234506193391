package graph

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrUnknownStrategy = errors.New("unknown bundling strategy")

// StrategyType decides how repeated edges between the same nodes are
// bundled into one visual edge.
type StrategyType string

const (
	// StrategyAllow keeps every edge; ids become "from-to-N".
	StrategyAllow StrategyType = "allow"
	// StrategyUnidirectional bundles a-b and b-a into one edge.
	StrategyUnidirectional StrategyType = "unidirectional"
	// StrategyBidirectional bundles a-b edges, keeping b-a separate.
	StrategyBidirectional StrategyType = "bidirectional"
)

// ParseStrategyType validates a strategy name
func ParseStrategyType(s string) (StrategyType, error) {
	switch t := StrategyType(s); t {
	case StrategyAllow, StrategyUnidirectional, StrategyBidirectional:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// BundlingStrategy configures an EdgeManager.
type BundlingStrategy struct {
	Type  StrategyType `json:"type" yaml:"type" validate:"required,oneof=allow unidirectional bidirectional"`
	Count bool         `json:"count" yaml:"count"`
}

// DefaultBundlingStrategy bundles per direction and counts.
func DefaultBundlingStrategy() BundlingStrategy {
	return BundlingStrategy{
		Type:  StrategyBidirectional,
		Count: true,
	}
}

// edgeIdent is the canonical identity of a stored edge. seq is only used
// by the allow strategy.
type edgeIdent struct {
	key EdgeKey
	seq int
}

func (id edgeIdent) String() string {
	if id.seq == 0 {
		return id.key.String()
	}
	return id.key.String() + "-" + strconv.Itoa(id.seq)
}

// EdgeManager collects the edges of one transformation and applies the
// bundling strategy as they are added.
type EdgeManager struct {
	strategy BundlingStrategy
	edges    map[edgeIdent]*Edge
	// byID maps a rendered id to the first identity that produced it.
	byID     map[string]edgeIdent
	order    []edgeIdent
	counts   map[EdgeKey]int
}

// NewEdgeManager creates an empty manager. An empty strategy type falls
// back to the default strategy.
func NewEdgeManager(strategy BundlingStrategy) *EdgeManager {
	if strategy.Type == "" {
		strategy = DefaultBundlingStrategy()
	}
	return &EdgeManager{
		strategy: strategy,
		edges:    make(map[edgeIdent]*Edge),
		byID:     make(map[string]edgeIdent),
		counts:   make(map[EdgeKey]int),
	}
}

// Strategy returns the active bundling strategy
func (m *EdgeManager) Strategy() BundlingStrategy {
	return m.strategy
}

// canonical computes the identity an edge with key k is stored under and
// advances the occurrence counter.
func (m *EdgeManager) canonical(k EdgeKey) (edgeIdent, int) {
	switch m.strategy.Type {
	case StrategyUnidirectional:
		if _, ok := m.counts[k]; !ok {
			if _, ok := m.counts[k.Reverse()]; ok {
				k = k.Reverse()
			}
		}
		m.counts[k]++
		return edgeIdent{key: k}, m.counts[k]
	case StrategyAllow:
		m.counts[k]++
		return edgeIdent{key: k, seq: m.counts[k]}, 1
	default:
		m.counts[k]++
		return edgeIdent{key: k}, m.counts[k]
	}
}

// Add stores edge under its canonical identity, rewriting edge.ID. Adding
// to an existing identity replaces the stored edge but keeps counting.
func (m *EdgeManager) Add(edge *Edge) {
	ident, count := m.canonical(edge.Key())
	edge.ID = ident.String()
	if m.strategy.Count {
		edge.Count = count
	} else {
		edge.Count = 0
	}

	if _, ok := m.edges[ident]; !ok {
		m.order = append(m.order, ident)
	}
	m.edges[ident] = edge
	if _, ok := m.byID[edge.ID]; !ok {
		m.byID[edge.ID] = ident
	}
}

// Get returns the edge stored for key. Under the unidirectional strategy
// the reversed key is tried as well. Under allow, Get returns the first
// edge added for key.
func (m *EdgeManager) Get(key EdgeKey) (*Edge, bool) {
	seq := 0
	if m.strategy.Type == StrategyAllow {
		seq = 1
	}
	if e, ok := m.edges[edgeIdent{key: key, seq: seq}]; ok {
		return e, true
	}
	if m.strategy.Type == StrategyUnidirectional {
		e, ok := m.edges[edgeIdent{key: key.Reverse()}]
		return e, ok
	}
	return nil, false
}

// Lookup returns the edge with the given rendered id. Ids are joined with
// '-', so distinct endpoint pairs such as {a, b-c} and {a-b, c} can render
// alike; the pair added first keeps the id.
func (m *EdgeManager) Lookup(id string) (*Edge, bool) {
	ident, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return m.edges[ident], true
}

// Edges returns the stored edges in the order their identity first
// appeared.
func (m *EdgeManager) Edges() []*Edge {
	edges := make([]*Edge, 0, len(m.order))
	for _, ident := range m.order {
		edges = append(edges, m.edges[ident])
	}
	return edges
}

// Len returns the number of stored edges
func (m *EdgeManager) Len() int {
	return len(m.order)
}
