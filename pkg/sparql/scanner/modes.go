package scanner

import (
	"fmt"
	"strings"

	"github.com/aleksaelezovic/sparqlgraph/pkg/prefix"
)

type mode int

const (
	modeComment mode = iota + 1
	modeToken
	modePrefix
	modeSelect
	modeWhere
	modeUnion
	modeOptional
	modeValues
	modeValuesValues
)

func (m mode) String() string {
	switch m {
	case modeComment:
		return "comment"
	case modeToken:
		return "token"
	case modePrefix:
		return "prefix"
	case modeSelect:
		return "select"
	case modeWhere:
		return "where"
	case modeUnion:
		return "union"
	case modeOptional:
		return "optional"
	case modeValues:
		return "values"
	case modeValuesValues:
		return "valuesvalues"
	default:
		return "unknown"
	}
}

// topLevel maps keywords read outside any clause to the mode they open.
var topLevel = map[string]mode{
	"prefix":   modePrefix,
	"select":   modeSelect,
	"where":    modeWhere,
	"union":    modeUnion,
	"optional": modeOptional,
	"values":   modeValues,
}

// nested maps keywords that open a sub-clause inside a group pattern.
var nested = map[string]mode{
	"union":    modeUnion,
	"optional": modeOptional,
	"values":   modeValues,
}

type transition func(st *scanState, c rune) error

var transitions = map[mode]transition{
	modeComment:      comment,
	modeToken:        keyword,
	modePrefix:       prefixDecl,
	modeSelect:       selectClause,
	modeWhere:        groupPattern,
	modeUnion:        groupPattern,
	modeOptional:     groupPattern,
	modeValues:       valuesVariables,
	modeValuesValues: valuesTerms,
}

// scanState is the mutable context shared by all transitions.
type scanState struct {
	modes  []mode
	token  []rune
	triple []string
	offset int
	prev   rune

	// VALUES bookkeeping: the block being filled and the column the next
	// inline term belongs to.
	block  int
	column int

	result *Result
}

func (st *scanState) current() (mode, bool) {
	if len(st.modes) == 0 {
		return 0, false
	}
	return st.modes[len(st.modes)-1], true
}

func (st *scanState) push(m mode) {
	if m == modeValues {
		st.result.Values = append(st.result.Values, ValuesBlock{})
		st.block = len(st.result.Values) - 1
		st.column = 0
	}
	st.modes = append(st.modes, m)
}

func (st *scanState) values() *ValuesBlock {
	return &st.result.Values[st.block]
}

func (st *scanState) pop() {
	if len(st.modes) > 0 {
		st.modes = st.modes[:len(st.modes)-1]
	}
}

func (st *scanState) tokenString() string {
	return string(st.token)
}

func (st *scanState) resetToken() {
	st.token = st.token[:0]
}

// flushTriple emits the pending triple if it is complete. After ';' the
// subject carries over to the next triple.
func (st *scanState) flushTriple(end rune) {
	if len(st.triple) == 3 {
		st.result.Triples = append(st.result.Triples, Triple{st.triple[0], st.triple[1], st.triple[2]})
	}
	var next []string
	if end == ';' && len(st.triple) > 0 {
		next = append(next, st.triple[0])
	}
	st.triple = next
}

func isWhitespace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// isWord matches the characters SPARQL keywords are made of.
func isWord(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isTripleEnd(c rune) bool {
	return c == '.' || c == ';' || c == '}'
}

// seek runs while no mode is active, looking for the next keyword. Words
// glued to punctuation (IRIs, variables) are not keywords.
func seek(st *scanState, c rune) error {
	switch {
	case c == '#':
		st.push(modeComment)
	case isWord(c) && (st.prev == 0 || st.prev == '}' || isWhitespace(st.prev)):
		st.token = append(st.token[:0], c)
		st.push(modeToken)
	}
	return nil
}

func comment(st *scanState, c rune) error {
	if c == '\n' {
		st.pop()
	}
	return nil
}

// keyword reads a bare keyword and switches to the clause it opens.
// Keywords the scanner does not know (LIMIT, ORDER, BASE, ...) are
// dropped.
func keyword(st *scanState, c rune) error {
	switch {
	case isWord(c):
		st.token = append(st.token, c)
	case isWhitespace(c):
		word := strings.ToLower(st.tokenString())
		st.pop()
		st.resetToken()
		if m, ok := topLevel[word]; ok {
			st.push(m)
		}
	case c == '{' && isGroupKeyword(st.tokenString()):
		word := strings.ToLower(st.tokenString())
		st.pop()
		st.resetToken()
		st.push(topLevel[word])
	default:
		return &ScanError{Offset: st.offset, Char: c, Token: st.tokenString()}
	}
	return nil
}

func isGroupKeyword(token string) bool {
	switch strings.ToLower(token) {
	case "where", "union", "optional":
		return true
	}
	return false
}

func prefixDecl(st *scanState, c rune) error {
	st.token = append(st.token, c)
	if c != '>' {
		return nil
	}

	p, err := prefix.Parse(st.tokenString())
	if err != nil {
		return fmt.Errorf("prefix declaration ending at offset %d: %w", st.offset, err)
	}
	st.result.Prefixes = append(st.result.Prefixes, p)
	st.pop()
	st.resetToken()
	return nil
}

func selectClause(st *scanState, c rune) error {
	if strings.EqualFold(st.tokenString(), "where") {
		st.pop()
		st.push(modeWhere)
		st.resetToken()
		return nil
	}

	switch {
	case isWhitespace(c) || c == '{':
		token := st.tokenString()
		if strings.HasPrefix(token, "?") {
			st.result.Variables = append(st.result.Variables, strings.TrimRight(token, ","))
		}
		st.resetToken()
		if c == '{' {
			st.pop()
			st.push(modeWhere)
		}
	case c == '#' && len(st.token) == 0:
		st.push(modeComment)
	default:
		st.token = append(st.token, c)
	}
	return nil
}

// groupPattern collects triple patterns inside WHERE, OPTIONAL and UNION
// groups. Braces are not tracked; a closing brace ends the innermost
// clause.
func groupPattern(st *scanState, c rune) error {
	switch {
	case c == '}':
		if len(st.token) > 0 {
			st.endTerm()
		}
		st.pop()
		st.resetToken()
		st.flushTriple(c)

	case isWhitespace(c):
		if len(st.token) == 0 {
			return nil
		}
		token := st.tokenString()
		if m, ok := nested[strings.ToLower(token)]; ok {
			st.push(m)
			st.resetToken()
			return nil
		}
		st.endTerm()

	case c == '{':
		if m, ok := nested[strings.ToLower(st.tokenString())]; ok && m != modeValues {
			st.push(m)
			st.resetToken()
		}

	case c == '#' && len(st.token) == 0:
		st.push(modeComment)

	case len(st.token) == 1 && (st.token[0] == '.' || st.token[0] == ';'):
		// a lone terminator glued to the next term
		st.flushTriple(st.token[0])
		st.token = append(st.token[:0], c)

	default:
		st.token = append(st.token, c)
	}
	return nil
}

// endTerm adds the pending token to the triple, flushing the triple when
// the token carries a terminator.
func (st *scanState) endTerm() {
	last := st.token[len(st.token)-1]
	if isTripleEnd(last) {
		if term := string(st.token[:len(st.token)-1]); term != "" {
			st.triple = append(st.triple, term)
		}
		st.resetToken()
		st.flushTriple(last)
		return
	}
	st.triple = append(st.triple, st.tokenString())
	st.resetToken()
}

// valuesVariables reads the variable list of a VALUES clause.
func valuesVariables(st *scanState, c rune) error {
	switch {
	case isWhitespace(c):
		st.addValuesColumn()
	case c == '{':
		st.addValuesColumn()
		st.push(modeValuesValues)
	case c == '(' || c == ')':
	default:
		st.token = append(st.token, c)
	}
	return nil
}

func (st *scanState) addValuesColumn() {
	if len(st.token) > 0 {
		block := st.values()
		block.Columns = append(block.Columns, ValuesColumn{Variable: st.tokenString()})
	}
	st.resetToken()
}

// valuesTerms reads the inline data of a VALUES clause, one row per
// parenthesized group (or one term per row for a single variable).
func valuesTerms(st *scanState, c rune) error {
	switch {
	case c == '}':
		st.addValuesTerm()
		st.resetToken()
		st.pop() // values
		st.pop() // enclosing clause
	case isWhitespace(c):
		if len(st.token) > 0 {
			st.addValuesTerm()
			if len(st.values().Columns) > 1 {
				st.column++
			}
		}
		st.resetToken()
	case c == '(':
		st.column = 0
	case c == ')':
		st.addValuesTerm()
		st.resetToken()
		st.column = 0
	default:
		st.token = append(st.token, c)
	}
	return nil
}

func (st *scanState) addValuesTerm() {
	block := st.values()
	if len(st.token) == 0 || st.column >= len(block.Columns) {
		return
	}
	term := st.tokenString()
	if strings.EqualFold(term, "undef") {
		return
	}
	col := &block.Columns[st.column]
	col.Terms = append(col.Terms, term)
}
