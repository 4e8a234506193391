package rdf

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidTerm = errors.New("invalid RDF term")

// TermType represents the type of an RDF term
type TermType byte

const (
	TermTypeNamedNode TermType = iota + 1
	TermTypeBlankNode
	TermTypeLiteral
)

func (t TermType) String() string {
	switch t {
	case TermTypeNamedNode:
		return "uri"
	case TermTypeBlankNode:
		return "bnode"
	case TermTypeLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// Term represents an RDF term (IRI, blank node, or literal)
type Term interface {
	Type() TermType
	// Value is the lexical value without any syntax: the IRI, the blank
	// node label or the literal's text.
	Value() string
	String() string
	Equals(other Term) bool
}

// NamedNode represents an IRI
type NamedNode struct {
	IRI string
}

func NewNamedNode(iri string) *NamedNode {
	return &NamedNode{IRI: iri}
}

func (n *NamedNode) Type() TermType {
	return TermTypeNamedNode
}

func (n *NamedNode) Value() string {
	return n.IRI
}

func (n *NamedNode) String() string {
	return fmt.Sprintf("<%s>", n.IRI)
}

func (n *NamedNode) Equals(other Term) bool {
	if on, ok := other.(*NamedNode); ok {
		return n.IRI == on.IRI
	}
	return false
}

// BlankNode represents a blank node
type BlankNode struct {
	ID string
}

func NewBlankNode(id string) *BlankNode {
	return &BlankNode{ID: id}
}

func (b *BlankNode) Type() TermType {
	return TermTypeBlankNode
}

func (b *BlankNode) Value() string {
	return b.ID
}

func (b *BlankNode) String() string {
	return fmt.Sprintf("_:%s", b.ID)
}

func (b *BlankNode) Equals(other Term) bool {
	if ob, ok := other.(*BlankNode); ok {
		return b.ID == ob.ID
	}
	return false
}

// Literal represents an RDF literal
type Literal struct {
	Lexical  string
	Language string     // for language-tagged strings
	Datatype *NamedNode // for typed literals
}

func NewLiteral(value string) *Literal {
	return &Literal{Lexical: value}
}

func NewLiteralWithLanguage(value, language string) *Literal {
	return &Literal{Lexical: value, Language: language}
}

func NewLiteralWithDatatype(value string, datatype *NamedNode) *Literal {
	return &Literal{Lexical: value, Datatype: datatype}
}

func (l *Literal) Type() TermType {
	return TermTypeLiteral
}

func (l *Literal) Value() string {
	return l.Lexical
}

func (l *Literal) String() string {
	result := fmt.Sprintf("%q", l.Lexical)
	if l.Language != "" {
		result += "@" + l.Language
	} else if l.Datatype != nil {
		result += "^^" + l.Datatype.String()
	}
	return result
}

func (l *Literal) Equals(other Term) bool {
	ol, ok := other.(*Literal)
	if !ok {
		return false
	}
	if l.Lexical != ol.Lexical || l.Language != ol.Language {
		return false
	}
	if l.Datatype == nil || ol.Datatype == nil {
		return l.Datatype == nil && ol.Datatype == nil
	}
	return l.Datatype.Equals(ol.Datatype)
}

// Common XSD datatypes
var (
	XSDString  = NewNamedNode("http://www.w3.org/2001/XMLSchema#string")
	XSDInteger = NewNamedNode("http://www.w3.org/2001/XMLSchema#integer")
	XSDDecimal = NewNamedNode("http://www.w3.org/2001/XMLSchema#decimal")
	XSDDouble  = NewNamedNode("http://www.w3.org/2001/XMLSchema#double")
	XSDBoolean = NewNamedNode("http://www.w3.org/2001/XMLSchema#boolean")
)

var (
	integerPattern = regexp.MustCompile(`^[+-]?[0-9]+$`)
	decimalPattern = regexp.MustCompile(`^[+-]?[0-9]*\.[0-9]+$`)
	doublePattern  = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)[eE][+-]?[0-9]+$`)
)

// ParseTerm parses a single term in the N-Triples based syntax used by
// SPARQL TSV results: <iri>, _:label, "text", "text"@lang,
// "text"^^<datatype>, and bare numbers and booleans.
func ParseTerm(s string) (Term, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, fmt.Errorf("%w: empty", ErrInvalidTerm)
	case strings.HasPrefix(s, "<"):
		if !strings.HasSuffix(s, ">") || len(s) < 2 {
			return nil, fmt.Errorf("%w: unterminated IRI %q", ErrInvalidTerm, s)
		}
		return NewNamedNode(s[1 : len(s)-1]), nil
	case strings.HasPrefix(s, "_:"):
		if len(s) == 2 {
			return nil, fmt.Errorf("%w: empty blank node label", ErrInvalidTerm)
		}
		return NewBlankNode(s[2:]), nil
	case strings.HasPrefix(s, `"`):
		return parseQuotedLiteral(s)
	case s == "true" || s == "false":
		return NewLiteralWithDatatype(s, XSDBoolean), nil
	case integerPattern.MatchString(s):
		return NewLiteralWithDatatype(s, XSDInteger), nil
	case decimalPattern.MatchString(s):
		return NewLiteralWithDatatype(s, XSDDecimal), nil
	case doublePattern.MatchString(s):
		return NewLiteralWithDatatype(s, XSDDouble), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTerm, s)
	}
}

func parseQuotedLiteral(s string) (Term, error) {
	var value strings.Builder
	pos := 1
	closed := false
	for pos < len(s) {
		ch := s[pos]
		if ch == '"' {
			closed = true
			pos++
			break
		}
		if ch != '\\' {
			value.WriteByte(ch)
			pos++
			continue
		}

		pos++
		if pos >= len(s) {
			return nil, fmt.Errorf("%w: unexpected end of input in escape sequence", ErrInvalidTerm)
		}
		switch s[pos] {
		case 'n':
			value.WriteByte('\n')
		case 't':
			value.WriteByte('\t')
		case 'r':
			value.WriteByte('\r')
		case 'b':
			value.WriteByte('\b')
		case 'f':
			value.WriteByte('\f')
		case '"':
			value.WriteByte('"')
		case '\\':
			value.WriteByte('\\')
		default:
			return nil, fmt.Errorf("%w: invalid escape sequence \\%c", ErrInvalidTerm, s[pos])
		}
		pos++
	}
	if !closed {
		return nil, fmt.Errorf("%w: unclosed string literal", ErrInvalidTerm)
	}

	rest := s[pos:]
	switch {
	case rest == "":
		return NewLiteral(value.String()), nil
	case strings.HasPrefix(rest, "@"):
		if len(rest) == 1 {
			return nil, fmt.Errorf("%w: empty language tag", ErrInvalidTerm)
		}
		return NewLiteralWithLanguage(value.String(), rest[1:]), nil
	case strings.HasPrefix(rest, "^^"):
		dt, err := ParseTerm(rest[2:])
		if err != nil {
			return nil, err
		}
		iri, ok := dt.(*NamedNode)
		if !ok {
			return nil, fmt.Errorf("%w: datatype must be an IRI, got %s", ErrInvalidTerm, dt)
		}
		return NewLiteralWithDatatype(value.String(), iri), nil
	default:
		return nil, fmt.Errorf("%w: unexpected %q after literal", ErrInvalidTerm, rest)
	}
}
