// Package query compiles boolean search expressions into SQLite FTS5 MATCH
// syntax. Grammar, lowest to highest precedence: OR, AND, NOT, with
// parentheses overriding. Quoted phrases match literally; bare terms longer
// than two characters are prefix-expanded. There is no escape syntax for
// literal AND/OR/NOT or parentheses inside terms; that is a documented
// limitation of the grammar.
package query

import (
	"errors"
	"fmt"
	"strings"
)

// Compiled is the executable form of a user query: a single string in FTS5
// boolean/prefix syntax. Expanded reports whether prefix expansion was
// applied, which the retriever uses to decide on a second pass.
type Compiled struct {
	Match    string
	Expanded bool
}

var errParse = errors.New("query parse error")

// Compile turns a user query into FTS5 syntax. Parse failures never reach
// the caller: any malformed input degrades to prefix expansion of the raw
// tokens, and a query without operators skips parsing entirely.
func Compile(q string) Compiled {
	q = strings.TrimSpace(q)
	if q == "" {
		return Compiled{}
	}

	if !hasOperators(q) {
		return Compiled{Match: ExpandTerms(q), Expanded: true}
	}

	p := &parser{tokens: tokenize(q)}
	out, err := p.parseOr()
	if err != nil || p.pos != len(p.tokens) || out == "" {
		return Compiled{Match: ExpandTerms(q), Expanded: true}
	}
	return Compiled{Match: out, Expanded: strings.Contains(out, "*")}
}

// hasOperators reports whether the query uses any boolean keyword,
// parenthesis, or quote and therefore needs full parsing.
func hasOperators(q string) bool {
	if strings.ContainsAny(q, `()"`) {
		return true
	}
	for _, f := range strings.Fields(strings.ToUpper(q)) {
		if f == "AND" || f == "OR" || f == "NOT" {
			return true
		}
	}
	return false
}

// ExpandTerms prefix-expands every whitespace-separated token: terms longer
// than two characters without reserved punctuation get a trailing wildcard;
// everything else passes through verbatim. Em and en dashes are treated as
// whitespace.
func ExpandTerms(q string) string {
	q = strings.NewReplacer("–", " ", "—", " ").Replace(q)
	parts := strings.Fields(q)
	expanded := make([]string, 0, len(parts))
	for _, p := range parts {
		expanded = append(expanded, expandTerm(p))
	}
	return strings.Join(expanded, " ")
}

func expandTerm(tok string) string {
	if len(tok) > 2 && !strings.ContainsAny(tok, `"':`) {
		return tok + "*"
	}
	return tok
}

// tokenize splits on whitespace while keeping double-quoted phrases and
// parenthesis characters as atomic tokens.
func tokenize(q string) []string {
	var tokens []string
	i := 0
	for i < len(q) {
		c := q[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(' || c == ')':
			tokens = append(tokens, string(c))
			i++
		case c == '"':
			end := strings.IndexByte(q[i+1:], '"')
			if end < 0 {
				// Unterminated quote: take the rest as a phrase token.
				tokens = append(tokens, q[i:]+`"`)
				i = len(q)
			} else {
				tokens = append(tokens, q[i:i+end+2])
				i += end + 2
			}
		default:
			j := i
			for j < len(q) && !strings.ContainsRune(" \t\n\r()\"", rune(q[j])) {
				j++
			}
			tokens = append(tokens, q[i:j])
			i = j
		}
	}
	return tokens
}

type parser struct {
	tokens []string
	pos    int
}

func (p *parser) current() (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}
	return p.tokens[p.pos], true
}

func (p *parser) consume() string {
	tok := p.tokens[p.pos]
	p.pos++
	return tok
}

func (p *parser) parseOr() (string, error) {
	left, err := p.parseAnd()
	if err != nil {
		return "", err
	}
	for {
		tok, ok := p.current()
		if !ok || !strings.EqualFold(tok, "OR") {
			return left, nil
		}
		p.consume()
		right, err := p.parseAnd()
		if err != nil {
			return "", err
		}
		left = fmt.Sprintf("(%s) OR (%s)", left, right)
	}
}

func (p *parser) parseAnd() (string, error) {
	left, err := p.parseNot()
	if err != nil {
		return "", err
	}
	for {
		tok, ok := p.current()
		if !ok || !strings.EqualFold(tok, "AND") {
			return left, nil
		}
		p.consume()
		right, err := p.parseNot()
		if err != nil {
			return "", err
		}
		left = fmt.Sprintf("(%s) AND (%s)", left, right)
	}
}

func (p *parser) parseNot() (string, error) {
	if tok, ok := p.current(); ok && strings.EqualFold(tok, "NOT") {
		p.consume()
		expr, err := p.parsePrimary()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", expr), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (string, error) {
	tok, ok := p.current()
	if !ok {
		return "", errParse
	}

	switch {
	case tok == "(":
		p.consume()
		expr, err := p.parseOr()
		if err != nil {
			return "", err
		}
		next, ok := p.current()
		if !ok || next != ")" {
			return "", errParse
		}
		p.consume()
		return "(" + expr + ")", nil

	case tok == ")":
		return "", errParse

	case len(tok) >= 2 && strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`):
		p.consume()
		return tok, nil

	case strings.EqualFold(tok, "AND"), strings.EqualFold(tok, "OR"):
		// An operator where a term is expected.
		return "", errParse

	default:
		p.consume()
		return expandTerm(tok), nil
	}
}
