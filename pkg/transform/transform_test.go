package transform

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aleksaelezovic/sparqlgraph/pkg/graph"
	"github.com/aleksaelezovic/sparqlgraph/pkg/sparql/results"
	"github.com/aleksaelezovic/sparqlgraph/pkg/sparql/scanner"
)

const (
	cmn  = "http://purl.org/NET/classicalmusicnav#"
	cmno = "http://purl.org/ontology/classicalmusicnav#"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func loadRows(t *testing.T) []results.Row {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", "composers.json"))
	require.NoError(t, err)
	defer f.Close()

	res, err := results.DecodeJSON(f)
	require.NoError(t, err)
	return res.Rows()
}

func loadSimple(t *testing.T) *Config {
	t.Helper()
	var cfg Config
	require.NoError(t, yaml.Unmarshal(readFixture(t, "simple.yaml"), &cfg))
	require.NotNil(t, cfg.Simple)
	return &cfg
}

func loadVerbose(t *testing.T) *Config {
	t.Helper()
	var cfg Config
	require.NoError(t, json.Unmarshal(readFixture(t, "verbose.json"), &cfg))
	require.True(t, cfg.IsVerbose())
	return &cfg
}

func run(t *testing.T, cfg *Config, query string, rows []results.Row) *graph.Graph {
	t.Helper()
	tr, err := New(cfg, query)
	require.NoError(t, err)
	g, err := tr.Transform(context.Background(), rows)
	require.NoError(t, err)
	return g
}

type nodeSummary struct {
	ID, Group, Label string
}

func summarizeNodes(g *graph.Graph) []nodeSummary {
	out := make([]nodeSummary, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		s := nodeSummary{ID: n.ID, Group: n.Group}
		if label, ok := n.Attributes.Get("label"); ok {
			s.Label, _ = label.(string)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type edgeSummary struct {
	ID, From, To string
	Count        int
}

func summarizeEdges(g *graph.Graph) []edgeSummary {
	out := make([]edgeSummary, 0, len(g.Edges))
	for _, e := range g.Edges {
		out = append(out, edgeSummary{ID: e.ID, From: e.From, To: e.To, Count: e.Count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func TestSimpleAndVerboseAgree(t *testing.T) {
	rows := loadRows(t)
	query := string(readFixture(t, "composers.rq"))

	simple := run(t, loadSimple(t), query, rows)
	verbose := run(t, loadVerbose(t), "", rows)

	assert.Len(t, simple.Nodes, 8)
	assert.Len(t, simple.Edges, 6)
	assert.Equal(t, summarizeNodes(verbose), summarizeNodes(simple))
	assert.Equal(t, summarizeEdges(verbose), summarizeEdges(simple))

	expected := []nodeSummary{
		{ID: cmn + "ADAM1", Group: "composer", Label: "Adolphe Adam"},
		{ID: cmn + "ADAM2", Group: "composer", Label: "Adam de la Halle"},
		{ID: cmn + "ALAI", Group: "composer", Label: "Jehan Alain"},
		{ID: cmn + "BOIE1", Group: "composer", Label: "François-Adrien Boieldieu"},
		{ID: cmn + "DELI1", Group: "composer", Label: "Léo Delibes"},
		{ID: cmn + "DUPR1", Group: "composer", Label: "Marcel Dupré"},
		{ID: cmn + "HERO1", Group: "composer", Label: "Ferdinand Hérold"},
		{ID: cmn + "MESS1", Group: "composer"},
	}
	assert.Equal(t, expected, summarizeNodes(simple))

	for _, n := range append(simple.Nodes, verbose.Nodes...) {
		color, _ := n.Attributes.Get("color")
		assert.Equal(t, "blue", color, n.ID)
	}
}

func TestVerbose_ComposerEdges(t *testing.T) {
	g := run(t, loadVerbose(t), "", loadRows(t))

	ids := make([]string, 0, len(g.Edges))
	for _, e := range g.Edges {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{
		cmn + "ADAM1-" + cmn + "BOIE1",
		cmn + "ADAM1-" + cmn + "HERO1",
		cmn + "ADAM1-" + cmn + "DELI1",
		cmn + "ADAM2-" + cmn + "ADAM1",
		cmn + "ALAI-" + cmn + "DUPR1",
		cmn + "ALAI-" + cmn + "MESS1",
	}, ids)

	bundled := g.Edges[4]
	assert.Equal(t, 2, bundled.Count)
	arrow, _ := bundled.Attributes.Get("arrow")
	assert.Equal(t, "to", arrow, "the last bundled edge replaces the stored one")

	first, _ := g.Edges[0].Attributes.Get("arrow")
	assert.Equal(t, "from", first)

	for _, n := range g.Nodes {
		assert.Nil(t, n.Properties, "verbose nodes have no properties bag")
	}
}

func TestSimple_UnclaimedTriplesGoToPropertiesBag(t *testing.T) {
	g := run(t, loadSimple(t), string(readFixture(t, "composers.rq")), loadRows(t))

	var adam *graph.Node
	for _, n := range g.Nodes {
		if n.ID == cmn+"ADAM1" {
			adam = n
		}
	}
	require.NotNil(t, adam)
	assert.Equal(t, map[string]string{
		"http://www.w3.org/1999/02/22-rdf-syntax-ns#type": cmno + "Composer",
	}, adam.Properties)
}

func TestSimple_DeclaredPredicateIsAProperty(t *testing.T) {
	cfg := NewSimpleConfig()
	cfg.Prefixes = []string{"cmno: " + cmno, "foaf: http://xmlns.com/foaf/0.1/"}
	cfg.Nodes = map[string]SimpleNode{
		"s": {Group: "composer"},
		"o": {Group: "composer"},
	}
	cfg.Edges = []SimpleEdge{{Variable: "p", Matches: []string{"cmno:influencedBy"}}}

	tr, err := NewSimple(cfg, "SELECT * WHERE { ?s ?p ?o . }")
	require.NoError(t, err)

	rows := []results.Row{{
		"s": {Type: results.TypeURI, Value: cmn + "ADAM1"},
		"p": {Type: results.TypeURI, Value: "http://xmlns.com/foaf/0.1/name"},
		"o": {Type: results.TypeLiteral, Value: "Adolphe Adam"},
	}}
	g, err := tr.Transform(context.Background(), rows)
	require.NoError(t, err)

	assert.Empty(t, g.Edges)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "Adolphe Adam", g.Nodes[0].Properties["http://xmlns.com/foaf/0.1/name"])
}

func TestSimple_MissingOptionalBinding(t *testing.T) {
	tr, err := New(loadSimple(t), string(readFixture(t, "composers.rq")))
	require.NoError(t, err)

	rows := []results.Row{{
		"s": {Type: results.TypeURI, Value: cmn + "ALAI"},
		"p": {Type: results.TypeURI, Value: cmno + "influencedBy"},
		"o": {Type: results.TypeURI, Value: cmn + "MESS1"},
	}}
	g, err := tr.Transform(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, g.Nodes, 2)
	_, hasLabel := g.Nodes[1].Attributes.Get("label")
	assert.False(t, hasLabel)
	assert.Empty(t, g.Nodes[1].Properties)
	assert.Len(t, g.Edges, 1)
}

func TestProcess(t *testing.T) {
	row := results.Row{
		"s": {Type: results.TypeURI, Value: cmn + "ALAI"},
		"o": {Type: results.TypeURI, Value: cmn + "MESS1"},
	}

	bound := Process(scanner.Triple{"?s", "a", "$o"}, row)
	assert.True(t, bound.Valid())
	assert.Equal(t, Term{Value: cmn + "ALAI", Variable: "s", Raw: "?s", IsVariable: true, Bound: true}, bound.Subject)
	assert.Equal(t, rdfType, bound.Predicate.Value)
	assert.False(t, bound.Predicate.IsVariable)
	assert.Equal(t, "o", bound.Object.Variable)
	assert.Equal(t, cmn+"MESS1", bound.Field(KeyObject))
	assert.Equal(t, rdfType, bound.Field(KeyPredicate))

	unbound := Process(scanner.Triple{"?o", "foaf:name", "?otherName"}, row)
	assert.False(t, unbound.Valid())
	assert.True(t, unbound.Subject.Bound)
	assert.False(t, unbound.Object.Bound)
	assert.Equal(t, "foaf:name", unbound.Predicate.Value)
}

func TestSimple_RuleKeys(t *testing.T) {
	cfg := NewSimpleConfig()
	cfg.Prefixes = []string{"ex: http://example.org/"}
	cfg.Nodes = map[string]SimpleNode{
		"s": {Properties: map[string]PropertyRule{
			"name":  {Matches: Match{Key: KeyPredicate, Value: "ex:name"}},
			"title": {Matches: Match{Key: KeyObject, Value: "ex:Mr"}},
			"self":  {Matches: Match{Key: KeySubject, Value: "ex:me"}},
		}},
	}
	cfg.Edges = []SimpleEdge{{Matches: []string{"ex:knows"}}}

	tr, err := NewSimple(cfg, "SELECT * WHERE { ?s ?p ?o }")
	require.NoError(t, err)

	rows := []results.Row{
		{"s": {Value: "http://example.org/me"}, "p": {Value: "http://example.org/name"}, "o": {Value: "Me"}},
		{"s": {Value: "http://example.org/me"}, "p": {Value: "http://example.org/other"}, "o": {Value: "Myself"}},
		{"s": {Value: "http://example.org/you"}, "p": {Value: "http://example.org/honorific"}, "o": {Value: "http://example.org/Mr"}},
	}
	g, err := tr.Transform(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)

	me := g.Nodes[0]
	assert.Equal(t, map[string]any{"name": "Me", "self": "Myself"}, me.Attributes.Map(), "only the first matching rule applies")
	assert.Empty(t, me.Properties)

	you := g.Nodes[1]
	assert.Equal(t, map[string]any{"title": "http://example.org/Mr"}, you.Attributes.Map())
}

func TestSimple_EdgeMappingVariableAndProperties(t *testing.T) {
	cfg := NewSimpleConfig()
	cfg.Prefixes = []string{"ex: http://example.org/"}
	cfg.Nodes = map[string]SimpleNode{"a": {}, "b": {}, "c": {}}
	cfg.Edges = []SimpleEdge{{
		Variable:   "?p",
		Matches:    []string{"ex:knows"},
		Properties: map[string]any{"width": 2, "color": "red"},
	}}

	query := `PREFIX ex: <http://example.org/>
SELECT * WHERE { ?a ?p ?b . ?b ex:knows ?c . }`
	tr, err := NewSimple(cfg, query)
	require.NoError(t, err)

	rows := []results.Row{{
		"a": {Value: "http://example.org/1"},
		"p": {Value: "http://example.org/knows"},
		"b": {Value: "http://example.org/2"},
		"c": {Value: "http://example.org/3"},
	}}
	g, err := tr.Transform(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, g.Edges, 2, "constant predicates match regardless of the mapped variable")
	e := g.Edges[0]
	assert.Equal(t, "http://example.org/1-http://example.org/2", e.ID)
	assert.Equal(t, []string{"color", "width"}, e.Attributes.Keys())
	assert.Equal(t, "http://example.org/2-http://example.org/3", g.Edges[1].ID)
}

func TestSimple_EdgeMappingVariableSkipsOtherVariables(t *testing.T) {
	cfg := NewSimpleConfig()
	cfg.Prefixes = []string{"ex: http://example.org/"}
	cfg.Nodes = map[string]SimpleNode{"a": {}, "b": {}}
	cfg.Edges = []SimpleEdge{{Variable: "p", Matches: []string{"ex:knows"}}}

	tr, err := NewSimple(cfg, "SELECT * WHERE { ?a ?q ?b . }")
	require.NoError(t, err)

	g, err := tr.Transform(context.Background(), []results.Row{{
		"a": {Value: "http://example.org/1"},
		"q": {Value: "http://example.org/knows"},
		"b": {Value: "http://example.org/2"},
	}})
	require.NoError(t, err)
	assert.Empty(t, g.Edges)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "http://example.org/2", g.Nodes[0].Properties["http://example.org/knows"])
}

func TestSimple_FirstMatchingRuleWins(t *testing.T) {
	cfg := NewSimpleConfig()
	cfg.Prefixes = []string{"ex: http://example.org/"}
	cfg.Nodes = map[string]SimpleNode{
		"s": {Properties: map[string]PropertyRule{
			"title": {Matches: Match{Key: KeyPredicate, Value: "ex:name"}},
			"label": {Matches: Match{Key: KeyPredicate, Value: "http://example.org/name"}},
		}},
	}

	tr, err := NewSimple(cfg, "SELECT * WHERE { ?s ?p ?o . }")
	require.NoError(t, err)

	g, err := tr.Transform(context.Background(), []results.Row{{
		"s": {Value: "http://example.org/1"},
		"p": {Value: "http://example.org/name"},
		"o": {Value: "One"},
	}})
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, map[string]any{"label": "One"}, g.Nodes[0].Attributes.Map())
	assert.Empty(t, g.Nodes[0].Properties)
}

func TestSimple_FullIRIPatterns(t *testing.T) {
	cfg := NewSimpleConfig()
	cfg.Prefixes = []string{"ex: http://example.org/"}
	cfg.Nodes = map[string]SimpleNode{
		"s": {Properties: map[string]PropertyRule{
			"label": {Matches: Match{Key: KeyPredicate, Value: "ex:name"}},
			"kind":  {Matches: Match{Key: KeyPredicate, Value: "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"}},
		}},
	}
	cfg.Edges = []SimpleEdge{{Matches: []string{"ex:knows"}}}

	tr, err := NewSimple(cfg, "SELECT * WHERE { ?s <http://example.org/name> ?n ; a ?t . }")
	require.NoError(t, err)

	g, err := tr.Transform(context.Background(), []results.Row{{
		"s": {Value: "http://example.org/1"},
		"n": {Value: "One"},
		"t": {Value: "http://example.org/Thing"},
	}})
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, map[string]any{"label": "One", "kind": "http://example.org/Thing"}, g.Nodes[0].Attributes.Map())
}

func TestSimple_BundlingStrategy(t *testing.T) {
	tests := []struct {
		strategy graph.StrategyType
		edges    int
	}{
		{graph.StrategyAllow, 7},
		{graph.StrategyBidirectional, 6},
		{graph.StrategyUnidirectional, 6},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			cfg := loadSimple(t)
			cfg.Simple.EdgeSettings.BundlingStrategy = graph.BundlingStrategy{Type: tt.strategy, Count: true}
			g := run(t, cfg, string(readFixture(t, "composers.rq")), loadRows(t))
			assert.Len(t, g.Edges, tt.edges)
		})
	}
}

func TestSimple_Errors(t *testing.T) {
	_, err := NewSimple(NewSimpleConfig(), "  ")
	assert.ErrorIs(t, err, ErrMissingQuery)

	cfg := NewSimpleConfig()
	cfg.Prefixes = []string{"not a prefix"}
	_, err = NewSimple(cfg, "SELECT * WHERE { ?s ?p ?o }")
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "prefixes", cfgErr.Field)

	_, err = NewSimple(NewSimpleConfig(), "SELECT* WHERE { ?s ?p ?o }")
	assert.Error(t, err)
}

func TestVerbose_Conditions(t *testing.T) {
	cfg := NewVerboseConfig()
	cfg.Prefixes = []string{"ex: http://example.org/", "other: http://other.org/"}
	cfg.Groups = map[string]Group{"thing": {Properties: map[string]any{"shape": "box"}}}
	cfg.Nodes = []VerboseNode{{
		Variable:  "x",
		Group:     "thing",
		Condition: &Condition{Prefix: "ex"},
		Properties: []PropertyDef{
			{Name: "kind", Value: "example"},
			{Name: "tagged", Value: true, Condition: &Condition{Variable: "tag", Equals: "ex:yes"}},
			{Name: "both", Value: 1, Condition: &Condition{Variable: "tag", Prefix: "ex", Equals: "ex:no"}},
			{Name: "note", Variable: "note"},
		},
	}}

	tr, err := NewVerbose(cfg)
	require.NoError(t, err)

	rows := []results.Row{
		{"x": {Value: "http://example.org/a"}, "tag": {Value: "http://example.org/yes"}, "note": {Value: "hello"}},
		{"x": {Value: "http://other.org/b"}},
		{"x": {Value: "http://example.org/c"}, "tag": {Value: "http://other.org/no"}},
		{"tag": {Value: "http://example.org/yes"}},
	}
	g, err := tr.Transform(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)

	a := g.Nodes[0]
	assert.Equal(t, "thing", a.Group)
	assert.Equal(t, []string{"shape", "kind", "tagged", "note"}, a.Attributes.Keys())

	c := g.Nodes[1]
	assert.Equal(t, "http://example.org/c", c.ID)
	assert.Equal(t, map[string]any{"shape": "box", "kind": "example"}, c.Attributes.Map())
}

func TestVerbose_PrefixConditionChecksDefinitionVariable(t *testing.T) {
	cfg := NewVerboseConfig()
	cfg.Prefixes = []string{"ex: http://example.org/"}
	cfg.Nodes = []VerboseNode{{
		Variable:  "x",
		Condition: &Condition{Variable: "tag", Prefix: "ex"},
	}}
	cfg.Edges = []VerboseEdge{{
		From:      "x",
		To:        "y",
		Condition: &Condition{Variable: "tag", Prefix: "ex"},
	}}

	tr, err := NewVerbose(cfg)
	require.NoError(t, err)

	g, err := tr.Transform(context.Background(), []results.Row{
		{"x": {Value: "http://example.org/a"}, "y": {Value: "http://other.org/b"}, "tag": {Value: "http://other.org/no"}},
		{"x": {Value: "http://other.org/c"}, "y": {Value: "http://example.org/d"}, "tag": {Value: "http://example.org/yes"}},
	})
	require.NoError(t, err)

	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "http://example.org/a", g.Nodes[0].ID)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "http://example.org/a", g.Edges[0].From)
}

func TestVerbose_LiteralValueWinsOverVariable(t *testing.T) {
	cfg := NewVerboseConfig()
	cfg.Nodes = []VerboseNode{{
		Variable: "x",
		Properties: []PropertyDef{
			{Name: "fixed", Variable: "label", Value: "literal"},
			{Name: "empty", Variable: "label", Value: ""},
		},
	}}

	tr, err := NewVerbose(cfg)
	require.NoError(t, err)

	g, err := tr.Transform(context.Background(), []results.Row{
		{"x": {Value: "http://example.org/a"}, "label": {Value: "bound"}},
	})
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, map[string]any{"fixed": "literal", "empty": "bound"}, g.Nodes[0].Attributes.Map())
}

func TestVerbose_UnknownPrefix(t *testing.T) {
	cfg := NewVerboseConfig()
	cfg.Prefixes = []string{"ex: http://example.org/"}
	cfg.Nodes = []VerboseNode{{Variable: "x", Condition: &Condition{Prefix: "nope"}}}

	_, err := NewVerbose(cfg)
	assert.ErrorIs(t, err, ErrUnknownPrefix)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "nodes[0].condition", cfgErr.Field)
}

func TestVerbose_UnknownGroupHasNoDefaults(t *testing.T) {
	cfg := NewVerboseConfig()
	cfg.Nodes = []VerboseNode{{Variable: "x", Group: "missing"}}

	tr, err := NewVerbose(cfg)
	require.NoError(t, err)
	g, err := tr.Transform(context.Background(), []results.Row{{"x": {Value: "a"}}})
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, 0, g.Nodes[0].Attributes.Len())
	assert.Equal(t, "missing", g.Nodes[0].Group)
}

func TestTransform_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr, err := New(loadVerbose(t), "")
	require.NoError(t, err)
	_, err = tr.Transform(ctx, loadRows(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_EmptyConfig(t *testing.T) {
	_, err := New(&Config{}, "")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
