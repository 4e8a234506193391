package transform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aleksaelezovic/sparqlgraph/pkg/graph"
	"github.com/aleksaelezovic/sparqlgraph/pkg/prefix"
	"github.com/aleksaelezovic/sparqlgraph/pkg/sparql/results"
)

// Verbose transforms rows by applying every node definition, then every
// edge definition, to each row.
type Verbose struct {
	cfg      VerboseConfig
	prefixes *prefix.Register
	logger   *slog.Logger
}

// NewVerbose prepares a transformer for cfg. Conditions naming an
// unregistered prefix are rejected here.
func NewVerbose(cfg VerboseConfig, opts ...Option) (*Verbose, error) {
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	reg, err := cfg.register()
	if err != nil {
		return nil, err
	}

	v := &Verbose{
		cfg:      cfg,
		prefixes: reg,
		logger:   buildOptions(opts).logger,
	}
	if err := v.checkPrefixes(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Verbose) checkPrefixes() error {
	check := func(field string, cond *Condition) error {
		if cond == nil || cond.Prefix == "" {
			return nil
		}
		if _, ok := v.prefixes.Lookup(cond.Prefix); !ok {
			return &ConfigError{Field: field, Err: fmt.Errorf("%w: %s", ErrUnknownPrefix, cond.Prefix)}
		}
		return nil
	}
	checkProps := func(field string, props []PropertyDef) error {
		for i, p := range props {
			if err := check(fmt.Sprintf("%s.properties[%d].condition", field, i), p.Condition); err != nil {
				return err
			}
		}
		return nil
	}

	for i, n := range v.cfg.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)
		if err := check(field+".condition", n.Condition); err != nil {
			return err
		}
		if err := checkProps(field, n.Properties); err != nil {
			return err
		}
	}
	for i, e := range v.cfg.Edges {
		field := fmt.Sprintf("edges[%d]", i)
		if err := check(field+".condition", e.Condition); err != nil {
			return err
		}
		if err := checkProps(field, e.Properties); err != nil {
			return err
		}
	}
	return nil
}

// Prefixes returns the register built from the config prefixes
func (v *Verbose) Prefixes() *prefix.Register {
	return v.prefixes
}

// Transform implements Transformer
func (v *Verbose) Transform(ctx context.Context, rows []results.Row) (*graph.Graph, error) {
	nodes := graph.NewNodeSet()
	edges := graph.NewEdgeManager(v.cfg.EdgeSettings.BundlingStrategy)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range v.cfg.Nodes {
			if err := v.applyNode(nodes, &v.cfg.Nodes[i], row); err != nil {
				return nil, err
			}
		}
		for i := range v.cfg.Edges {
			if err := v.applyEdge(edges, &v.cfg.Edges[i], row); err != nil {
				return nil, err
			}
		}
	}

	v.logger.Debug("verbose transform finished",
		"rows", len(rows),
		"nodes", nodes.Len(),
		"edges", edges.Len())

	return graph.Build(nodes, edges), nil
}

func (v *Verbose) applyNode(nodes *graph.NodeSet, def *VerboseNode, row results.Row) error {
	id, ok := row.Value(def.Variable)
	if !ok {
		return nil
	}
	pass, err := v.passesCondition(def.Condition, def.Variable, row)
	if err != nil || !pass {
		return err
	}

	n, ok := nodes.Get(id)
	if !ok {
		n = nodes.Put(graph.NewNode(id, def.Group, v.cfg.defaults(def.Group)))
	}
	return v.applyProperties(&n.Attributes, def.Properties, def.Variable, row)
}

func (v *Verbose) applyEdge(edges *graph.EdgeManager, def *VerboseEdge, row results.Row) error {
	from, ok := row.Value(def.From)
	if !ok {
		return nil
	}
	to, ok := row.Value(def.To)
	if !ok {
		return nil
	}
	pass, err := v.passesCondition(def.Condition, def.From, row)
	if err != nil || !pass {
		return err
	}

	edge := graph.NewEdge(from, to)
	if err := v.applyProperties(&edge.Attributes, def.Properties, def.From, row); err != nil {
		return err
	}
	edges.Add(edge)
	return nil
}

// applyProperties sets each property whose condition passes. A literal
// value takes precedence over a variable; properties taken from a
// variable the row leaves unbound are skipped. Conditions default to the
// property's variable, else the owner variable.
func (v *Verbose) applyProperties(attrs *graph.Attributes, defs []PropertyDef, owner string, row results.Row) error {
	for i := range defs {
		def := &defs[i]
		condOwner := def.Variable
		if condOwner == "" {
			condOwner = owner
		}
		pass, err := v.passesCondition(def.Condition, condOwner, row)
		if err != nil {
			return err
		}
		if !pass {
			continue
		}

		if isSet(def.Value) {
			attrs.Set(def.Name, def.Value)
			continue
		}
		if def.Variable == "" {
			continue
		}
		if value, ok := row.Value(def.Variable); ok {
			attrs.Set(def.Name, value)
		}
	}
	return nil
}

// isSet reports whether a literal property value should be used: nil,
// false, zero and the empty string count as unset.
func isSet(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case int:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}

// passesCondition evaluates cond against row. owner is the variable of
// the definition the condition belongs to. A prefix test always checks
// the owner's value; an equals test checks the condition's variable,
// defaulting to the owner. When both are set both must pass.
func (v *Verbose) passesCondition(cond *Condition, owner string, row results.Row) (bool, error) {
	if cond == nil {
		return true, nil
	}

	if cond.Prefix != "" {
		want, ok := v.prefixes.Lookup(cond.Prefix)
		if !ok {
			return false, &ConfigError{Field: "condition.prefix", Err: fmt.Errorf("%w: %s", ErrUnknownPrefix, cond.Prefix)}
		}
		value, ok := row.Value(owner)
		if !ok {
			return false, nil
		}
		got, err := v.prefixes.Resolve(value)
		if err != nil || got != want {
			return false, nil
		}
	}

	if cond.Equals != "" {
		variable := cond.Variable
		if variable == "" {
			variable = owner
		}
		value, ok := row.Value(variable)
		if !ok || !v.prefixes.IsURIMatch(value, cond.Equals) {
			return false, nil
		}
	}
	return true, nil
}
