// Package cypher - query text parsing.
//
// The parser is a hand-written tokenizer plus recursive descent over the
// supported grammar subset: MATCH / OPTIONAL MATCH / WHERE / CREATE /
// RETURN / WITH / UNWIND / CALL, linear patterns, and the expression forms
// the evaluator understands. Malformed input fails with ParsingError and no
// partial AST.
//
// Parsing also runs a parameterization pass: inline property-map literals
// are extracted into residual parameters so the planner and evaluator see a
// uniform Parameter reference for every constant in a pattern.
package cypher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/orneryd/cypherframe/pkg/graph"
)

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenNumber
	tokenString
	tokenParam
	tokenPunct
	tokenEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// Parser parses Cypher query text into an AST. It is stateless; one Parser
// serves any number of Parse calls.
type Parser struct{}

// NewParser creates a parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses query text into an immutable ParsedQuery: AST, residual
// parameters, and semantic state.
func (p *Parser) Parse(text string) (*ParsedQuery, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, parseErrorf("empty query")
	}

	tokens, err := tokenizeQuery(trimmed)
	if err != nil {
		return nil, err
	}

	ps := &parseState{tokens: tokens}
	query, err := ps.parseQuery()
	if err != nil {
		return nil, err
	}

	parsed := &ParsedQuery{
		Text:     text,
		AST:      query,
		Residual: make(map[string]any),
	}
	parameterize(parsed)
	parsed.Semantics = collectSemantics(query)
	return parsed, nil
}

// tokenizeQuery splits query text into tokens. Strings keep their content
// without quotes; multi-character comparison operators are fused; pattern
// punctuation stays single-character so the pattern grammar can read
// arrows piecewise.
func tokenizeQuery(text string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < len(text) && text[j] != quote {
				if text[j] == '\\' && j+1 < len(text) {
					j++
				}
				sb.WriteByte(text[j])
				j++
			}
			if j >= len(text) {
				return nil, parseErrorf("unterminated string starting at offset %d", i)
			}
			tokens = append(tokens, token{kind: tokenString, text: sb.String(), pos: i})
			i = j + 1
		case c >= '0' && c <= '9':
			j := i
			seenDot := false
			for j < len(text) {
				ch := text[j]
				if ch >= '0' && ch <= '9' {
					j++
					continue
				}
				if ch == '.' && !seenDot && j+1 < len(text) && text[j+1] >= '0' && text[j+1] <= '9' {
					seenDot = true
					j++
					continue
				}
				break
			}
			tokens = append(tokens, token{kind: tokenNumber, text: text[i:j], pos: i})
			i = j
		case c == '$':
			j := i + 1
			for j < len(text) && isIdentChar(text[j]) {
				j++
			}
			if j == i+1 {
				return nil, parseErrorf("bare $ at offset %d", i)
			}
			tokens = append(tokens, token{kind: tokenParam, text: text[i+1 : j], pos: i})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(text) && isIdentChar(text[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokenIdent, text: text[i:j], pos: i})
			i = j
		default:
			// Fused two-character comparison operators; everything else is
			// single-character punctuation.
			if i+1 < len(text) {
				two := text[i : i+2]
				if two == "<=" || two == ">=" || two == "<>" {
					tokens = append(tokens, token{kind: tokenPunct, text: two, pos: i})
					i += 2
					continue
				}
			}
			switch c {
			case '(', ')', '[', ']', '{', '}', ':', ',', '.', '=', '<', '>', '-', '+', '*', '/', '%', '|':
				tokens = append(tokens, token{kind: tokenPunct, text: string(c), pos: i})
				i++
			default:
				return nil, parseErrorf("unexpected character %q at offset %d", string(c), i)
			}
		}
	}
	tokens = append(tokens, token{kind: tokenEOF, pos: len(text)})
	return tokens, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// parseState walks the token stream.
type parseState struct {
	tokens []token
	pos    int
	anon   int // counter for generated variable names
}

func (ps *parseState) cur() token {
	return ps.tokens[ps.pos]
}

func (ps *parseState) advance() token {
	t := ps.tokens[ps.pos]
	if t.kind != tokenEOF {
		ps.pos++
	}
	return t
}

func (ps *parseState) isKeyword(kw string) bool {
	t := ps.cur()
	return t.kind == tokenIdent && strings.EqualFold(t.text, kw)
}

func (ps *parseState) acceptKeyword(kw string) bool {
	if ps.isKeyword(kw) {
		ps.advance()
		return true
	}
	return false
}

func (ps *parseState) expectKeyword(kw string) error {
	if !ps.acceptKeyword(kw) {
		return parseErrorf("expected %s, found %q", kw, ps.cur().text)
	}
	return nil
}

func (ps *parseState) isPunct(text string) bool {
	t := ps.cur()
	return t.kind == tokenPunct && t.text == text
}

func (ps *parseState) acceptPunct(text string) bool {
	if ps.isPunct(text) {
		ps.advance()
		return true
	}
	return false
}

func (ps *parseState) expectPunct(text string) error {
	if !ps.acceptPunct(text) {
		return parseErrorf("expected %q, found %q", text, ps.cur().text)
	}
	return nil
}

func (ps *parseState) nextAnon(prefix string) string {
	ps.anon++
	return fmt.Sprintf("_%s%d", prefix, ps.anon)
}

func (ps *parseState) parseQuery() (*Query, error) {
	query := &Query{}
	for ps.cur().kind != tokenEOF {
		switch {
		case ps.isKeyword("MATCH"), ps.isKeyword("OPTIONAL"):
			clause, err := ps.parseMatch()
			if err != nil {
				return nil, err
			}
			query.Clauses = append(query.Clauses, clause)
		case ps.isKeyword("CREATE"):
			ps.advance()
			pattern, err := ps.parsePattern()
			if err != nil {
				return nil, err
			}
			query.Clauses = append(query.Clauses, &CreateClause{Pattern: pattern})
		case ps.isKeyword("RETURN"):
			clause, err := ps.parseReturn()
			if err != nil {
				return nil, err
			}
			query.Clauses = append(query.Clauses, clause)
		case ps.isKeyword("WITH"):
			clause, err := ps.parseWith()
			if err != nil {
				return nil, err
			}
			query.Clauses = append(query.Clauses, clause)
		case ps.isKeyword("UNWIND"):
			ps.advance()
			expr, err := ps.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := ps.expectKeyword("AS"); err != nil {
				return nil, err
			}
			alias := ps.cur()
			if alias.kind != tokenIdent {
				return nil, parseErrorf("expected alias after AS, found %q", alias.text)
			}
			ps.advance()
			query.Clauses = append(query.Clauses, &UnwindClause{Expr: expr, Alias: alias.text})
		case ps.isKeyword("CALL"):
			clause, err := ps.parseCall()
			if err != nil {
				return nil, err
			}
			query.Clauses = append(query.Clauses, clause)
		default:
			return nil, parseErrorf("unexpected token %q", ps.cur().text)
		}
	}
	if len(query.Clauses) == 0 {
		return nil, parseErrorf("query has no clauses")
	}
	return query, nil
}

func (ps *parseState) parseMatch() (*MatchClause, error) {
	optional := false
	if ps.acceptKeyword("OPTIONAL") {
		optional = true
	}
	if err := ps.expectKeyword("MATCH"); err != nil {
		return nil, err
	}
	pattern, err := ps.parsePattern()
	if err != nil {
		return nil, err
	}
	clause := &MatchClause{Pattern: pattern, Optional: optional}
	if ps.acceptKeyword("WHERE") {
		where, err := ps.parseExpression()
		if err != nil {
			return nil, err
		}
		clause.Where = where
	}
	return clause, nil
}

// parsePattern parses a linear pattern:
// (a:Label {k: v})-[r:TYPE]->(b) ...
func (ps *parseState) parsePattern() (Pattern, error) {
	var pattern Pattern
	node, err := ps.parseNodePattern()
	if err != nil {
		return pattern, err
	}
	pattern.Nodes = append(pattern.Nodes, node)

	for ps.isPunct("-") || ps.isPunct("<") {
		edge, err := ps.parseEdgePattern()
		if err != nil {
			return pattern, err
		}
		next, err := ps.parseNodePattern()
		if err != nil {
			return pattern, err
		}
		pattern.Edges = append(pattern.Edges, edge)
		pattern.Nodes = append(pattern.Nodes, next)
	}
	return pattern, nil
}

func (ps *parseState) parseNodePattern() (NodePattern, error) {
	var node NodePattern
	if err := ps.expectPunct("("); err != nil {
		return node, err
	}
	if ps.cur().kind == tokenIdent && !ps.isPunct(")") {
		node.Variable = ps.advance().text
	}
	for ps.acceptPunct(":") {
		label := ps.cur()
		if label.kind != tokenIdent {
			return node, parseErrorf("expected label name, found %q", label.text)
		}
		ps.advance()
		node.Labels = append(node.Labels, label.text)
	}
	if ps.isPunct("{") {
		props, err := ps.parsePropertyMap()
		if err != nil {
			return node, err
		}
		node.Properties = props
	}
	if err := ps.expectPunct(")"); err != nil {
		return node, err
	}
	if node.Variable == "" {
		node.Variable = ps.nextAnon("n")
	}
	return node, nil
}

// parseEdgePattern reads arrow punctuation piecewise: <-[r:T]-, -[r:T]->,
// -[r:T]-, and the bracketless forms -->, <--, --.
func (ps *parseState) parseEdgePattern() (EdgePattern, error) {
	edge := EdgePattern{Direction: graph.DirectionBoth}

	incoming := false
	if ps.acceptPunct("<") {
		incoming = true
	}
	if err := ps.expectPunct("-"); err != nil {
		return edge, err
	}

	if ps.acceptPunct("[") {
		if ps.cur().kind == tokenIdent {
			edge.Variable = ps.advance().text
		}
		if ps.acceptPunct(":") {
			for {
				typ := ps.cur()
				if typ.kind != tokenIdent {
					return edge, parseErrorf("expected relationship type, found %q", typ.text)
				}
				ps.advance()
				edge.Types = append(edge.Types, typ.text)
				if !ps.acceptPunct("|") {
					break
				}
			}
		}
		if ps.isPunct("{") {
			props, err := ps.parsePropertyMap()
			if err != nil {
				return edge, err
			}
			edge.Properties = props
		}
		if err := ps.expectPunct("]"); err != nil {
			return edge, err
		}
	}

	if err := ps.expectPunct("-"); err != nil {
		return edge, err
	}
	outgoing := ps.acceptPunct(">")

	switch {
	case incoming && outgoing:
		return edge, parseErrorf("relationship pattern cannot point both ways")
	case incoming:
		edge.Direction = graph.DirectionIncoming
	case outgoing:
		edge.Direction = graph.DirectionOutgoing
	default:
		edge.Direction = graph.DirectionBoth
	}
	if edge.Variable == "" {
		edge.Variable = ps.nextAnon("r")
	}
	return edge, nil
}

func (ps *parseState) parsePropertyMap() (map[string]Expression, error) {
	if err := ps.expectPunct("{"); err != nil {
		return nil, err
	}
	props := make(map[string]Expression)
	if ps.acceptPunct("}") {
		return props, nil
	}
	for {
		key := ps.cur()
		if key.kind != tokenIdent && key.kind != tokenString {
			return nil, parseErrorf("expected property key, found %q", key.text)
		}
		ps.advance()
		if err := ps.expectPunct(":"); err != nil {
			return nil, err
		}
		value, err := ps.parseExpression()
		if err != nil {
			return nil, err
		}
		props[key.text] = value
		if ps.acceptPunct(",") {
			continue
		}
		break
	}
	if err := ps.expectPunct("}"); err != nil {
		return nil, err
	}
	return props, nil
}

func (ps *parseState) parseReturn() (*ReturnClause, error) {
	if err := ps.expectKeyword("RETURN"); err != nil {
		return nil, err
	}
	clause := &ReturnClause{}
	clause.Distinct = ps.acceptKeyword("DISTINCT")
	items, err := ps.parseReturnItems()
	if err != nil {
		return nil, err
	}
	clause.Items = items
	clause.OrderBy, clause.Skip, clause.Limit, err = ps.parseTrailingModifiers()
	return clause, err
}

func (ps *parseState) parseWith() (*WithClause, error) {
	if err := ps.expectKeyword("WITH"); err != nil {
		return nil, err
	}
	clause := &WithClause{}
	clause.Distinct = ps.acceptKeyword("DISTINCT")
	items, err := ps.parseReturnItems()
	if err != nil {
		return nil, err
	}
	clause.Items = items
	clause.OrderBy, clause.Skip, clause.Limit, err = ps.parseTrailingModifiers()
	if err != nil {
		return nil, err
	}
	if ps.acceptKeyword("WHERE") {
		where, err := ps.parseExpression()
		if err != nil {
			return nil, err
		}
		clause.Where = where
	}
	return clause, nil
}

func (ps *parseState) parseReturnItems() ([]ReturnItem, error) {
	var items []ReturnItem
	for {
		expr, err := ps.parseExpression()
		if err != nil {
			return nil, err
		}
		item := ReturnItem{Expr: expr}
		if ps.acceptKeyword("AS") {
			alias := ps.cur()
			if alias.kind != tokenIdent {
				return nil, parseErrorf("expected alias after AS, found %q", alias.text)
			}
			ps.advance()
			item.Alias = alias.text
		}
		items = append(items, item)
		if !ps.acceptPunct(",") {
			break
		}
	}
	return items, nil
}

func (ps *parseState) parseTrailingModifiers() ([]OrderItem, *int64, *int64, error) {
	var orderBy []OrderItem
	var skip, limit *int64

	if ps.acceptKeyword("ORDER") {
		if err := ps.expectKeyword("BY"); err != nil {
			return nil, nil, nil, err
		}
		for {
			expr, err := ps.parseExpression()
			if err != nil {
				return nil, nil, nil, err
			}
			item := OrderItem{Expr: expr}
			if ps.acceptKeyword("DESC") || ps.acceptKeyword("DESCENDING") {
				item.Descending = true
			} else if ps.acceptKeyword("ASC") || ps.acceptKeyword("ASCENDING") {
				item.Descending = false
			}
			orderBy = append(orderBy, item)
			if !ps.acceptPunct(",") {
				break
			}
		}
	}
	if ps.acceptKeyword("SKIP") {
		n, err := ps.parseCount("SKIP")
		if err != nil {
			return nil, nil, nil, err
		}
		skip = &n
	}
	if ps.acceptKeyword("LIMIT") {
		n, err := ps.parseCount("LIMIT")
		if err != nil {
			return nil, nil, nil, err
		}
		limit = &n
	}
	return orderBy, skip, limit, nil
}

func (ps *parseState) parseCount(kw string) (int64, error) {
	t := ps.cur()
	if t.kind != tokenNumber {
		return 0, parseErrorf("expected number after %s, found %q", kw, t.text)
	}
	ps.advance()
	n, err := strconv.ParseInt(t.text, 10, 64)
	if err != nil || n < 0 {
		return 0, parseErrorf("invalid %s count %q", kw, t.text)
	}
	return n, nil
}

func (ps *parseState) parseCall() (*CallClause, error) {
	if err := ps.expectKeyword("CALL"); err != nil {
		return nil, err
	}
	first := ps.cur()
	if first.kind != tokenIdent {
		return nil, parseErrorf("expected procedure name, found %q", first.text)
	}
	ps.advance()

	parts := []string{first.text}
	for ps.acceptPunct(".") {
		next := ps.cur()
		if next.kind != tokenIdent {
			return nil, parseErrorf("expected procedure name segment, found %q", next.text)
		}
		ps.advance()
		parts = append(parts, next.text)
	}
	if len(parts) < 2 {
		return nil, parseErrorf("procedure name must be namespace-qualified")
	}
	clause := &CallClause{
		Namespace: strings.Join(parts[:len(parts)-1], "."),
		Name:      parts[len(parts)-1],
	}

	if ps.acceptPunct("(") {
		if !ps.isPunct(")") {
			for {
				arg, err := ps.parseExpression()
				if err != nil {
					return nil, err
				}
				clause.Args = append(clause.Args, arg)
				if !ps.acceptPunct(",") {
					break
				}
			}
		}
		if err := ps.expectPunct(")"); err != nil {
			return nil, err
		}
	}

	if ps.acceptKeyword("YIELD") {
		for {
			col := ps.cur()
			if col.kind != tokenIdent {
				return nil, parseErrorf("expected YIELD column, found %q", col.text)
			}
			ps.advance()
			clause.Yield = append(clause.Yield, col.text)
			if !ps.acceptPunct(",") {
				break
			}
		}
	}
	return clause, nil
}

// Expression precedence, loosest first: OR, XOR, AND, NOT, comparison,
// additive, multiplicative, unary minus, property access, primary.

func (ps *parseState) parseExpression() (Expression, error) {
	return ps.parseOr()
}

func (ps *parseState) parseOr() (Expression, error) {
	left, err := ps.parseXor()
	if err != nil {
		return nil, err
	}
	for ps.acceptKeyword("OR") {
		right, err := ps.parseXor()
		if err != nil {
			return nil, err
		}
		left = &BoolOp{Operator: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (ps *parseState) parseXor() (Expression, error) {
	left, err := ps.parseAnd()
	if err != nil {
		return nil, err
	}
	for ps.acceptKeyword("XOR") {
		right, err := ps.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BoolOp{Operator: "XOR", Left: left, Right: right}
	}
	return left, nil
}

func (ps *parseState) parseAnd() (Expression, error) {
	left, err := ps.parseNot()
	if err != nil {
		return nil, err
	}
	for ps.acceptKeyword("AND") {
		right, err := ps.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BoolOp{Operator: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (ps *parseState) parseNot() (Expression, error) {
	if ps.acceptKeyword("NOT") {
		inner, err := ps.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{Expr: inner}, nil
	}
	return ps.parseComparison()
}

func (ps *parseState) parseComparison() (Expression, error) {
	left, err := ps.parseAdditive()
	if err != nil {
		return nil, err
	}

	t := ps.cur()
	if t.kind == tokenPunct {
		switch t.text {
		case "=", "<>", "<", "<=", ">", ">=":
			ps.advance()
			right, err := ps.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &Comparison{Left: left, Operator: t.text, Right: right}, nil
		}
	}

	switch {
	case ps.isKeyword("IS"):
		ps.advance()
		negated := ps.acceptKeyword("NOT")
		if err := ps.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return &IsNull{Expr: left, Negated: negated}, nil
	case ps.isKeyword("IN"):
		ps.advance()
		list, err := ps.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &InOp{Left: left, List: list}, nil
	case ps.isKeyword("STARTS"):
		ps.advance()
		if err := ps.expectKeyword("WITH"); err != nil {
			return nil, err
		}
		right, err := ps.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &StringPredicate{Operator: "STARTS WITH", Left: left, Right: right}, nil
	case ps.isKeyword("ENDS"):
		ps.advance()
		if err := ps.expectKeyword("WITH"); err != nil {
			return nil, err
		}
		right, err := ps.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &StringPredicate{Operator: "ENDS WITH", Left: left, Right: right}, nil
	case ps.isKeyword("CONTAINS"):
		ps.advance()
		right, err := ps.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &StringPredicate{Operator: "CONTAINS", Left: left, Right: right}, nil
	}
	return left, nil
}

func (ps *parseState) parseAdditive() (Expression, error) {
	left, err := ps.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for ps.isPunct("+") || ps.isPunct("-") {
		op := ps.advance().text
		right, err := ps.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Arithmetic{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (ps *parseState) parseMultiplicative() (Expression, error) {
	left, err := ps.parseUnary()
	if err != nil {
		return nil, err
	}
	for ps.isPunct("*") || ps.isPunct("/") || ps.isPunct("%") {
		op := ps.advance().text
		right, err := ps.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Arithmetic{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (ps *parseState) parseUnary() (Expression, error) {
	if ps.acceptPunct("-") {
		inner, err := ps.parseUnary()
		if err != nil {
			return nil, err
		}
		if lit, ok := inner.(*Literal); ok {
			switch v := lit.Value.(type) {
			case int64:
				return &Literal{Value: -v}, nil
			case float64:
				return &Literal{Value: -v}, nil
			}
		}
		return &Arithmetic{Left: &Literal{Value: int64(0)}, Operator: "-", Right: inner}, nil
	}
	return ps.parsePostfix()
}

func (ps *parseState) parsePostfix() (Expression, error) {
	expr, err := ps.parsePrimary()
	if err != nil {
		return nil, err
	}
	for ps.isPunct(".") {
		// Only a property access when followed by an identifier.
		if ps.tokens[ps.pos+1].kind != tokenIdent {
			break
		}
		ps.advance()
		prop := ps.advance().text
		expr = &PropertyAccess{Subject: expr, Property: prop}
	}
	return expr, nil
}

func (ps *parseState) parsePrimary() (Expression, error) {
	t := ps.cur()
	switch t.kind {
	case tokenNumber:
		ps.advance()
		if strings.Contains(t.text, ".") {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, parseErrorf("invalid number %q", t.text)
			}
			return &Literal{Value: f}, nil
		}
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, parseErrorf("invalid number %q", t.text)
		}
		return &Literal{Value: n}, nil
	case tokenString:
		ps.advance()
		return &Literal{Value: t.text}, nil
	case tokenParam:
		ps.advance()
		return &Parameter{Name: t.text}, nil
	case tokenIdent:
		switch {
		case strings.EqualFold(t.text, "true"):
			ps.advance()
			return &Literal{Value: true}, nil
		case strings.EqualFold(t.text, "false"):
			ps.advance()
			return &Literal{Value: false}, nil
		case strings.EqualFold(t.text, "null"):
			ps.advance()
			return &Literal{Value: nil}, nil
		}
		ps.advance()
		if ps.acceptPunct("(") {
			call := &FunctionCall{Name: t.text}
			if !ps.isPunct(")") {
				for {
					arg, err := ps.parseExpression()
					if err != nil {
						return nil, err
					}
					call.Args = append(call.Args, arg)
					if !ps.acceptPunct(",") {
						break
					}
				}
			}
			if err := ps.expectPunct(")"); err != nil {
				return nil, err
			}
			return call, nil
		}
		return &Variable{Name: t.text}, nil
	case tokenPunct:
		switch t.text {
		case "(":
			ps.advance()
			inner, err := ps.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := ps.expectPunct(")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "[":
			ps.advance()
			list := &ListLiteral{}
			if !ps.isPunct("]") {
				for {
					item, err := ps.parseExpression()
					if err != nil {
						return nil, err
					}
					list.Items = append(list.Items, item)
					if !ps.acceptPunct(",") {
						break
					}
				}
			}
			if err := ps.expectPunct("]"); err != nil {
				return nil, err
			}
			return list, nil
		case "{":
			ps.advance()
			m := &MapLiteral{}
			if !ps.isPunct("}") {
				for {
					key := ps.cur()
					if key.kind != tokenIdent && key.kind != tokenString {
						return nil, parseErrorf("expected map key, found %q", key.text)
					}
					ps.advance()
					if err := ps.expectPunct(":"); err != nil {
						return nil, err
					}
					value, err := ps.parseExpression()
					if err != nil {
						return nil, err
					}
					m.Keys = append(m.Keys, key.text)
					m.Values = append(m.Values, value)
					if !ps.acceptPunct(",") {
						break
					}
				}
			}
			if err := ps.expectPunct("}"); err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	return nil, parseErrorf("unexpected token %q in expression", t.text)
}

// parameterize extracts literal property values inside pattern maps into
// residual parameters, leaving a Parameter reference behind. Structurally
// identical queries then share the same AST shape, and the evaluator sees
// one resolution path for every constant.
func parameterize(parsed *ParsedQuery) {
	n := 0
	extract := func(props map[string]Expression) {
		for key, expr := range props {
			lit, ok := expr.(*Literal)
			if !ok {
				continue
			}
			name := fmt.Sprintf("_auto%d", n)
			n++
			parsed.Residual[name] = NormalizeValue(lit.Value)
			props[key] = &Parameter{Name: name}
		}
	}
	for _, clause := range parsed.AST.Clauses {
		var pattern *Pattern
		switch c := clause.(type) {
		case *MatchClause:
			pattern = &c.Pattern
		case *CreateClause:
			pattern = &c.Pattern
		default:
			continue
		}
		for i := range pattern.Nodes {
			extract(pattern.Nodes[i].Properties)
		}
		for i := range pattern.Edges {
			extract(pattern.Edges[i].Properties)
		}
	}
}

// collectSemantics walks the clause list and records variable bindings in
// declaration order. Scope narrowing at WITH is recorded by replacing the
// variable set with the projected names.
func collectSemantics(query *Query) *SemanticState {
	state := newSemanticState()
	for _, clause := range query.Clauses {
		switch c := clause.(type) {
		case *MatchClause:
			declarePattern(state, c.Pattern)
		case *CreateClause:
			declarePattern(state, c.Pattern)
		case *UnwindClause:
			state.Declare(c.Alias, SymbolValue)
		case *CallClause:
			for _, col := range c.Yield {
				state.Declare(col, SymbolValue)
			}
		case *WithClause:
			narrowed := newSemanticState()
			for _, item := range c.Items {
				kind := SymbolValue
				if v, ok := item.Expr.(*Variable); ok {
					if k, known := state.Variables[v.Name]; known {
						kind = k
					}
				}
				narrowed.Declare(item.Name(), kind)
			}
			state = narrowed
		}
	}
	return state
}

func declarePattern(state *SemanticState, pattern Pattern) {
	for _, n := range pattern.Nodes {
		state.Declare(n.Variable, SymbolNode)
	}
	for _, e := range pattern.Edges {
		state.Declare(e.Variable, SymbolRelationship)
	}
}
