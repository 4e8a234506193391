// Package scanner extracts prefixes, triple patterns and VALUES blocks
// from SPARQL query text.
//
// It is not a SPARQL parser: it only understands PREFIX, SELECT/WHERE,
// OPTIONAL, UNION and VALUES, with triples terminated by '.', ';' or '}'.
// The query is assumed to be valid, since it already produced the result
// set being transformed.
package scanner

import (
	"fmt"

	"github.com/aleksaelezovic/sparqlgraph/pkg/prefix"
)

// Triple is a triple pattern as written in the query: variables keep
// their leading '?', prefixed names are not expanded.
type Triple [3]string

func (t Triple) Subject() string   { return t[0] }
func (t Triple) Predicate() string { return t[1] }
func (t Triple) Object() string    { return t[2] }

func (t Triple) String() string {
	return fmt.Sprintf("%s %s %s .", t[0], t[1], t[2])
}

// ValuesColumn is one variable of a VALUES block with its inline terms.
// UNDEF terms are omitted.
type ValuesColumn struct {
	Variable string   `json:"variable"`
	Terms    []string `json:"terms"`
}

// ValuesBlock is one VALUES clause
type ValuesBlock struct {
	Columns []ValuesColumn `json:"columns"`
}

// Result holds everything the scanner recognized in a query.
type Result struct {
	Prefixes []*prefix.Prefix `json:"prefixes"`
	Triples  []Triple         `json:"triples"`
	Values   []ValuesBlock    `json:"values"`

	// Variables is the SELECT projection, for information only.
	Variables []string `json:"variables,omitempty"`
}

// ScanError reports a character the scanner cannot accept while reading
// a keyword.
type ScanError struct {
	Offset int
	Char   rune
	Token  string
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("invalid token found: %q in %q at offset %d", e.Char, e.Token, e.Offset)
}

// Scanner scans a single query
type Scanner struct {
	input string
}

// New creates a scanner for query
func New(query string) *Scanner {
	return &Scanner{input: query}
}

// Scan is shorthand for New(query).Scan().
func Scan(query string) (*Result, error) {
	return New(query).Scan()
}

// Scan runs the scanner over the whole query.
func (s *Scanner) Scan() (*Result, error) {
	st := &scanState{
		result: &Result{
			Prefixes: []*prefix.Prefix{},
			Triples:  []Triple{},
			Values:   []ValuesBlock{},
		},
	}

	for offset, c := range s.input {
		st.offset = offset
		transition := seek
		if m, ok := st.current(); ok {
			transition = transitions[m]
		}
		if err := transition(st, c); err != nil {
			return nil, err
		}
		st.prev = c
	}

	return st.result, nil
}
