package transform

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/aleksaelezovic/sparqlgraph/pkg/graph"
	"github.com/aleksaelezovic/sparqlgraph/pkg/prefix"
	"github.com/aleksaelezovic/sparqlgraph/pkg/sparql/results"
	"github.com/aleksaelezovic/sparqlgraph/pkg/sparql/scanner"
)

// Simple transforms rows using the triple patterns of the query that
// produced them. A triple whose subject and object variables are both
// declared nodes, and whose predicate matches an edge mapping, becomes an
// edge; any other triple is a property of its subject.
type Simple struct {
	cfg      SimpleConfig
	prefixes *prefix.Register
	patterns []scanner.Triple
	// rules holds the sorted property rule names per node variable.
	rules  map[string][]string
	logger *slog.Logger
}

// NewSimple scans query and prepares a transformer for cfg. Config
// prefixes are loaded before the ones declared in the query.
func NewSimple(cfg SimpleConfig, query string, opts ...Option) (*Simple, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrMissingQuery
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	scanned, err := scanner.Scan(query)
	if err != nil {
		return nil, err
	}

	reg, err := cfg.register()
	if err != nil {
		return nil, err
	}
	for _, p := range scanned.Prefixes {
		reg.Load(p)
	}

	rules := make(map[string][]string, len(cfg.Nodes))
	for variable, node := range cfg.Nodes {
		names := make([]string, 0, len(node.Properties))
		for name := range node.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		rules[variable] = names
	}

	o := buildOptions(opts)
	return &Simple{
		cfg:      cfg,
		prefixes: reg,
		patterns: scanned.Triples,
		rules:    rules,
		logger:   o.logger,
	}, nil
}

// Patterns returns the triple patterns found in the query
func (s *Simple) Patterns() []scanner.Triple {
	return append([]scanner.Triple(nil), s.patterns...)
}

// Prefixes returns the register built from config and query prefixes.
func (s *Simple) Prefixes() *prefix.Register {
	return s.prefixes
}

// Term is one position of a triple pattern resolved against a row.
type Term struct {
	// Value is the bound value, or the constant itself for non-variables.
	Value string
	// Variable is the variable name without '?', empty for constants.
	Variable string
	// Raw is the token as written in the query.
	Raw string

	IsVariable bool
	// Bound is false when the row has no value for Variable.
	Bound bool
}

// ProcessedTriple is a triple pattern resolved against one row.
type ProcessedTriple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Valid reports whether every variable position is bound.
func (t ProcessedTriple) Valid() bool {
	return t.Subject.Bound && t.Predicate.Bound && t.Object.Bound
}

// Field returns the value at the position named by key. Unknown keys
// select the predicate.
func (t ProcessedTriple) Field(key string) string {
	switch key {
	case KeySubject:
		return t.Subject.Value
	case KeyObject:
		return t.Object.Value
	default:
		return t.Predicate.Value
	}
}

func resolveTerm(raw string, row results.Row) Term {
	name, isVar := variableName(raw)
	if !isVar {
		return Term{Value: constantValue(raw), Raw: raw, Bound: true}
	}
	value, ok := row.Value(name)
	return Term{Value: value, Variable: name, Raw: raw, IsVariable: true, Bound: ok}
}

// Process resolves each position of pattern against row.
func Process(pattern scanner.Triple, row results.Row) ProcessedTriple {
	return ProcessedTriple{
		Subject:   resolveTerm(pattern.Subject(), row),
		Predicate: resolveTerm(pattern.Predicate(), row),
		Object:    resolveTerm(pattern.Object(), row),
	}
}

// Transform implements Transformer
func (s *Simple) Transform(ctx context.Context, rows []results.Row) (*graph.Graph, error) {
	nodes := graph.NewNodeSet()
	edges := graph.NewEdgeManager(s.cfg.EdgeSettings.BundlingStrategy)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, pattern := range s.patterns {
			t := Process(pattern, row)
			if !t.Valid() {
				continue
			}
			if mapping, ok := s.edgeMapping(t); ok {
				s.addRelationship(nodes, edges, t, mapping)
			} else {
				s.addProperty(nodes, t)
			}
		}
	}

	s.logger.Debug("simple transform finished",
		"rows", len(rows),
		"nodes", nodes.Len(),
		"edges", edges.Len())

	return graph.Build(nodes, edges), nil
}

// edgeMapping returns the first edge mapping that makes t a relationship.
func (s *Simple) edgeMapping(t ProcessedTriple) (*SimpleEdge, bool) {
	if !s.isNode(t.Subject) || !s.isNode(t.Object) {
		return nil, false
	}

	for i := range s.cfg.Edges {
		mapping := &s.cfg.Edges[i]
		if mapping.Variable != "" && t.Predicate.IsVariable &&
			strings.TrimLeft(mapping.Variable, "?$") != t.Predicate.Variable {
			continue
		}
		for _, uri := range mapping.Matches {
			if s.prefixes.IsURIMatch(t.Predicate.Value, uri) {
				return mapping, true
			}
		}
	}
	return nil, false
}

// isNode reports whether term is a variable declared as a node.
func (s *Simple) isNode(term Term) bool {
	if !term.IsVariable {
		return false
	}
	_, ok := s.cfg.Nodes[term.Variable]
	return ok
}

// node returns the node for id, creating it from the mapping of variable
// when it is a declared node variable.
func (s *Simple) node(nodes *graph.NodeSet, term Term) *graph.Node {
	id := term.Value
	if n, ok := nodes.Get(id); ok {
		return n
	}

	var n *graph.Node
	if s.isNode(term) {
		group := s.cfg.Nodes[term.Variable].Group
		n = graph.NewNode(id, group, s.cfg.defaults(group))
	} else {
		n = graph.NewNode(id, "", nil)
	}
	n.Properties = map[string]string{}
	return nodes.Put(n)
}

func (s *Simple) addRelationship(nodes *graph.NodeSet, edges *graph.EdgeManager, t ProcessedTriple, mapping *SimpleEdge) {
	from := s.node(nodes, t.Subject)
	to := s.node(nodes, t.Object)

	edge := graph.NewEdge(from.ID, to.ID)
	setSorted(&edge.Attributes, mapping.Properties)
	edges.Add(edge)
}

// addProperty applies the first property rule, in name order, of the
// subject's mapping that matches t. Without a match the value lands in
// the properties bag under the predicate.
func (s *Simple) addProperty(nodes *graph.NodeSet, t ProcessedTriple) {
	n := s.node(nodes, t.Subject)

	matched := false
	if s.isNode(t.Subject) {
		mapping := s.cfg.Nodes[t.Subject.Variable]
		for _, name := range s.rules[t.Subject.Variable] {
			rule := mapping.Properties[name]
			if s.prefixes.IsURIMatch(t.Field(rule.Matches.Key), rule.Matches.Value) {
				n.Attributes.Set(name, t.Object.Value)
				matched = true
				break
			}
		}
	}
	if !matched {
		n.SetProperty(t.Predicate.Value, t.Object.Value)
	}
}
