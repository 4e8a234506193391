package prefix

import (
	"fmt"
	"strings"
)

// Register holds the prefixes known to a transformation and answers
// questions about short (foaf:name) and long
// (http://xmlns.com/foaf/0.1/name) forms of the same URI.
type Register struct {
	lookup map[string]*Prefix
	// forms holds every short and long form in load order; the first
	// form matching a URI decides its prefix.
	forms []string
}

// NewRegister creates an empty register
func NewRegister() *Register {
	return &Register{
		lookup: make(map[string]*Prefix),
	}
}

// Load registers both forms of p. A later load under the same key
// replaces the earlier prefix.
func (r *Register) Load(p *Prefix) {
	r.lookup[p.Short] = p
	r.lookup[p.Long] = p
	r.forms = append(r.forms, p.Short, p.Long)
}

// LoadAll parses and loads every declaration in raw.
func (r *Register) LoadAll(raw []string) error {
	for _, text := range raw {
		p, err := Parse(text)
		if err != nil {
			return err
		}
		r.Load(p)
	}
	return nil
}

// Lookup returns the prefix registered under key (short or long form).
func (r *Register) Lookup(key string) (*Prefix, bool) {
	p, ok := r.lookup[key]
	return p, ok
}

// Len returns the number of distinct keys in the register.
func (r *Register) Len() int {
	return len(r.lookup)
}

// Resolve finds the prefix a URI is written in.
func (r *Register) Resolve(uri string) (*Prefix, error) {
	for _, form := range r.forms {
		if r.matches(form, uri) {
			return r.lookup[form], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnresolved, uri)
}

// ResolveAll resolves each URI. The result is aligned with uris; entries
// for unresolved URIs are nil.
func (r *Register) ResolveAll(uris ...string) []*Prefix {
	found := make([]*Prefix, len(uris))
	for i, uri := range uris {
		if p, err := r.Resolve(uri); err == nil {
			found[i] = p
		}
	}
	return found
}

// matches reports whether form is a prefix of uri. Short forms must be
// followed by the ':' separator so that "cmn" does not claim "cmno:x".
func (r *Register) matches(form, uri string) bool {
	if form == "" || !strings.HasPrefix(uri, form) {
		return false
	}
	p := r.lookup[form]
	if form == p.Short && form != p.Long {
		return len(uri) > len(form) && uri[len(form)] == ':'
	}
	return true
}

// Qualify expands a short-form URI to its long form. URIs already in long
// form, or in no registered prefix, are returned unchanged.
func (r *Register) Qualify(uri string) string {
	p, err := r.Resolve(uri)
	if err != nil {
		return uri
	}
	if strings.HasPrefix(uri, p.Short+":") {
		return p.Long + uri[len(p.Short)+1:]
	}
	return uri
}

// IsPrefixMatch reports whether both URIs are written in the same
// registered prefix, in either form.
func (r *Register) IsPrefixMatch(a, b string) bool {
	found := r.ResolveAll(a, b)
	return found[0] != nil && found[0] == found[1]
}

// IsURIMatch reports whether a and b name the same resource, regardless
// of which of them uses the short form.
func (r *Register) IsURIMatch(a, b string) bool {
	if a == b {
		return true
	}
	return r.Qualify(a) == r.Qualify(b)
}
