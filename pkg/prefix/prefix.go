package prefix

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidPrefix = errors.New("invalid prefix declaration")
	ErrUnresolved    = errors.New("no registered prefix for uri")
)

var prefixPattern = regexp.MustCompile(`^([^:\s<>]+)\s*:\s*(.+)$`)

// ParseError reports a prefix declaration that does not have the
// form "short: long".
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidPrefix, e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrInvalidPrefix
}

// Prefix is a SPARQL/Turtle namespace declaration, e.g.
// "foaf: <http://xmlns.com/foaf/0.1/>".
type Prefix struct {
	Short string `json:"short"`
	Long  string `json:"long"`

	raw string
}

// Parse creates a Prefix from its textual form. Angle brackets around the
// namespace IRI are optional.
func Parse(text string) (*Prefix, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.Contains(trimmed, ":") {
		return nil, &ParseError{Input: text, Reason: "missing ':'"}
	}

	matches := prefixPattern.FindStringSubmatch(trimmed)
	if matches == nil {
		return nil, &ParseError{Input: text, Reason: "expected 'short: long'"}
	}

	long := strings.TrimSpace(matches[2])
	long = strings.TrimPrefix(long, "<")
	long = strings.TrimSuffix(long, ">")
	if long == "" {
		return nil, &ParseError{Input: text, Reason: "empty namespace"}
	}

	return &Prefix{
		Short: matches[1],
		Long:  long,
		raw:   text,
	}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level declarations.
func MustParse(text string) *Prefix {
	p, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the declaration as it was parsed, or a canonical form for
// prefixes built without Parse.
func (p *Prefix) String() string {
	if p.raw == "" {
		return fmt.Sprintf("%s: <%s>", p.Short, p.Long)
	}
	return p.raw
}
