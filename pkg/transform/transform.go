// Package transform turns SPARQL result rows into a node/edge graph.
//
// Two engines are available. Simple derives triple patterns from the
// query text and classifies each bound triple as a relationship or a node
// property. Verbose follows explicit node and edge definitions. New picks
// one based on the config.
package transform

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/aleksaelezovic/sparqlgraph/pkg/graph"
	"github.com/aleksaelezovic/sparqlgraph/pkg/sparql/results"
)

// Transformer converts result rows into a graph. Implementations are safe
// for concurrent use; each call builds its own graph.
type Transformer interface {
	Transform(ctx context.Context, rows []results.Row) (*graph.Graph, error)
}

// Option configures a transformer
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// New creates the transformer for cfg. The query is only used by simple
// configs.
func New(cfg *Config, query string, opts ...Option) (Transformer, error) {
	switch {
	case cfg.Verbose != nil:
		return NewVerbose(*cfg.Verbose, opts...)
	case cfg.Simple != nil:
		return NewSimple(*cfg.Simple, query, opts...)
	default:
		return nil, cfg.Validate()
	}
}

// variableName returns the name of a variable term without its '?' or
// '$', and false for any other term.
func variableName(term string) (string, bool) {
	if len(term) > 1 && (term[0] == '?' || term[0] == '$') {
		return term[1:], true
	}
	return "", false
}

const rdfType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// constantValue returns the value a non-variable term stands for. IRIs
// lose their angle brackets and the keyword 'a' becomes rdf:type;
// prefixed names are compared through the prefix register later.
func constantValue(term string) string {
	if term == "a" {
		return rdfType
	}
	if strings.HasPrefix(term, "<") && strings.HasSuffix(term, ">") {
		return term[1 : len(term)-1]
	}
	return term
}

// setSorted copies props onto attrs in key order.
func setSorted(attrs *graph.Attributes, props map[string]any) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs.Set(k, props[k])
	}
}
