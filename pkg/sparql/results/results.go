// Package results decodes SPARQL SELECT results into rows of bindings.
//
// JSON (https://www.w3.org/TR/sparql11-results-json/), XML
// (https://www.w3.org/TR/rdf-sparql-XMLres/) and TSV
// (https://www.w3.org/TR/sparql11-results-csv-tsv/) are supported.
package results

import (
	"encoding/json"
	"strings"

	"github.com/aleksaelezovic/sparqlgraph/pkg/rdf"
)

// Binding types as they appear in SPARQL JSON results
const (
	TypeURI          = "uri"
	TypeBlankNode    = "bnode"
	TypeLiteral      = "literal"
	TypeTypedLiteral = "typed-literal" // SPARQL 1.0 JSON
)

// Results is a decoded SELECT result set
type Results struct {
	Head    Head      `json:"head"`
	Results *Bindings `json:"results,omitempty"`
	Boolean *bool     `json:"boolean,omitempty"`
}

// Head contains the variable names
type Head struct {
	Vars []string `json:"vars"`
}

// Bindings contains the result rows
type Bindings struct {
	Bindings []Row `json:"bindings"`
}

// Row maps a variable name (without '?') to its binding. Variables the
// solution leaves unbound are absent.
type Row map[string]Binding

// Binding is a single bound value
type Binding struct {
	Type     string  `json:"type,omitempty"`
	Value    string  `json:"value"`
	Datatype *string `json:"datatype,omitempty"`
	XMLLang  *string `json:"xml:lang,omitempty"`

	// missing is set when a JSON binding object carries no value at all.
	missing bool
}

func (b *Binding) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type     string  `json:"type"`
		Value    *string `json:"value"`
		Datatype *string `json:"datatype"`
		XMLLang  *string `json:"xml:lang"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*b = Binding{Type: raw.Type, Datatype: raw.Datatype, XMLLang: raw.XMLLang}
	if raw.Value == nil {
		b.missing = true
	} else {
		b.Value = *raw.Value
	}
	return nil
}

// Term converts the binding to an RDF term. Bindings without a type are
// treated as plain literals.
func (b Binding) Term() rdf.Term {
	switch b.Type {
	case TypeURI:
		return rdf.NewNamedNode(b.Value)
	case TypeBlankNode:
		return rdf.NewBlankNode(b.Value)
	}
	if b.XMLLang != nil && *b.XMLLang != "" {
		return rdf.NewLiteralWithLanguage(b.Value, *b.XMLLang)
	}
	if b.Datatype != nil && *b.Datatype != "" {
		return rdf.NewLiteralWithDatatype(b.Value, rdf.NewNamedNode(*b.Datatype))
	}
	return rdf.NewLiteral(b.Value)
}

// BindingFromTerm converts an RDF term to its binding form.
func BindingFromTerm(term rdf.Term) Binding {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return Binding{Type: TypeURI, Value: t.IRI}
	case *rdf.BlankNode:
		return Binding{Type: TypeBlankNode, Value: t.ID}
	case *rdf.Literal:
		b := Binding{Type: TypeLiteral, Value: t.Lexical}
		if t.Language != "" {
			lang := t.Language
			b.XMLLang = &lang
		} else if t.Datatype != nil {
			dt := t.Datatype.IRI
			b.Datatype = &dt
		}
		return b
	default:
		return Binding{Type: TypeLiteral, Value: term.Value()}
	}
}

// Value returns the value bound to variable. A leading '?' or '$' on the
// name is ignored.
func (r Row) Value(variable string) (string, bool) {
	b, ok := r[strings.TrimLeft(variable, "?$")]
	if !ok || b.missing {
		return "", false
	}
	return b.Value, true
}

// Rows returns the solutions, or nil for a boolean result.
func (r *Results) Rows() []Row {
	if r.Results == nil {
		return nil
	}
	return r.Results.Bindings
}
