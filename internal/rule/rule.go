// Package rule implements data-quality rules: small boolean expressions
// evaluated against each finalized ledger, e.g.
//
//	latency > 10 AND validations_late >= 2
//
// Fields are the fixed per-ledger metrics; operands are numbers or booleans.
package rule

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/gyaneshwarpardhi/ledgertrace/internal/ledger"
)

// Fields resolvable in an expression.
const (
	FieldSeq              = "seq"
	FieldLatency          = "latency"
	FieldBuiltLatency     = "built_latency"
	FieldValidationsTotal = "validations_total"
	FieldValidationsLate  = "validations_late"
	FieldOutOfOrder       = "out_of_order"
)

// Rule is a named, compiled expression.
type Rule struct {
	ID          string
	Description string
	expr        expr
}

// Match evaluates the rule against one finalized ledger.
func (r *Rule) Match(l *ledger.Ledger) bool {
	return r.expr.eval(l)
}

// Compile parses an expression into a Rule.
func Compile(id, description, expression string) (*Rule, error) {
	toks, err := tokenize(expression)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", id, err)
	}
	p := &parser{tokens: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", id, err)
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("rule %s: unexpected token %q after expression", id, p.peek().val)
	}
	return &Rule{ID: id, Description: description, expr: e}, nil
}

// -----------------------------------------------------------------------
// AST
// -----------------------------------------------------------------------

type expr interface {
	eval(l *ledger.Ledger) bool
}

type binaryExpr struct {
	or          bool // false = AND
	left, right expr
}

func (e *binaryExpr) eval(l *ledger.Ledger) bool {
	if e.or {
		return e.left.eval(l) || e.right.eval(l)
	}
	return e.left.eval(l) && e.right.eval(l)
}

type notExpr struct {
	inner expr
}

func (e *notExpr) eval(l *ledger.Ledger) bool { return !e.inner.eval(l) }

type cmpExpr struct {
	field string
	op    string
	value float64
}

func (e *cmpExpr) eval(l *ledger.Ledger) bool {
	v := fieldValue(l, e.field)
	switch e.op {
	case "==":
		return v == e.value
	case "!=":
		return v != e.value
	case ">":
		return v > e.value
	case ">=":
		return v >= e.value
	case "<":
		return v < e.value
	case "<=":
		return v <= e.value
	}
	return false
}

func fieldValue(l *ledger.Ledger, field string) float64 {
	switch field {
	case FieldSeq:
		return float64(l.Seq)
	case FieldLatency:
		return l.Latency
	case FieldBuiltLatency:
		return l.BuiltLatency
	case FieldValidationsTotal:
		return float64(l.ValidationsTotal)
	case FieldValidationsLate:
		return float64(l.ValidationsLate)
	case FieldOutOfOrder:
		if l.OutOfOrder {
			return 1
		}
		return 0
	}
	return 0
}

func validField(name string) bool {
	switch name {
	case FieldSeq, FieldLatency, FieldBuiltLatency,
		FieldValidationsTotal, FieldValidationsLate, FieldOutOfOrder:
		return true
	}
	return false
}

// -----------------------------------------------------------------------
// Tokenizer
// -----------------------------------------------------------------------

type tokenKind int

const (
	tokWord tokenKind = iota // field name or AND/OR/NOT/true/false
	tokOp                    // ==, !=, >=, <=, >, <
	tokNumber
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
}

func tokenize(s string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(s) {
		ch := s[i]
		if unicode.IsSpace(rune(ch)) {
			i++
			continue
		}
		if ch == '(' {
			tokens = append(tokens, token{tokLParen, "("})
			i++
			continue
		}
		if ch == ')' {
			tokens = append(tokens, token{tokRParen, ")"})
			i++
			continue
		}
		if ch == '=' || ch == '!' || ch == '<' || ch == '>' {
			if i+1 < len(s) && s[i+1] == '=' {
				tokens = append(tokens, token{tokOp, s[i : i+2]})
				i += 2
			} else {
				tokens = append(tokens, token{tokOp, string(ch)})
				i++
			}
			continue
		}
		if unicode.IsDigit(rune(ch)) || (ch == '-' && i+1 < len(s) && unicode.IsDigit(rune(s[i+1]))) {
			j := i + 1
			for j < len(s) && (unicode.IsDigit(rune(s[j])) || s[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, s[i:j]})
			i = j
			continue
		}
		if unicode.IsLetter(rune(ch)) || ch == '_' {
			j := i
			for j < len(s) && (unicode.IsLetter(rune(s[j])) || unicode.IsDigit(rune(s[j])) || s[j] == '_') {
				j++
			}
			tokens = append(tokens, token{tokWord, s[i:j]})
			i = j
			continue
		}
		return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
	}
	tokens = append(tokens, token{tokEOF, ""})
	return tokens, nil
}

// -----------------------------------------------------------------------
// Recursive-descent parser
// -----------------------------------------------------------------------

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) consume() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

// or_expr = and_expr ( "OR" and_expr )*
func (p *parser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokWord && strings.EqualFold(p.peek().val, "OR") {
		p.consume()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{or: true, left: left, right: right}
	}
	return left, nil
}

// and_expr = not_expr ( "AND" not_expr )*
func (p *parser) parseAnd() (expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokWord && strings.EqualFold(p.peek().val, "AND") {
		p.consume()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{left: left, right: right}
	}
	return left, nil
}

// not_expr = [ "NOT" ] comparison | "(" or_expr ")"
func (p *parser) parseNot() (expr, error) {
	if p.peek().kind == tokWord && strings.EqualFold(p.peek().val, "NOT") {
		p.consume()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notExpr{inner: inner}, nil
	}
	if p.peek().kind == tokLParen {
		p.consume()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("expected ) but got %q", p.peek().val)
		}
		p.consume()
		return inner, nil
	}
	return p.parseComparison()
}

// comparison = field operator number | field (bare boolean field)
func (p *parser) parseComparison() (expr, error) {
	t := p.peek()
	if t.kind != tokWord {
		return nil, fmt.Errorf("expected field name, got %q", t.val)
	}
	if !validField(t.val) {
		return nil, fmt.Errorf("unknown field %q", t.val)
	}
	field := p.consume().val

	// A bare boolean field reads as "field != 0".
	if p.peek().kind != tokOp {
		if field != FieldOutOfOrder {
			return nil, fmt.Errorf("expected comparison operator after %q, got %q", field, p.peek().val)
		}
		return &cmpExpr{field: field, op: "!=", value: 0}, nil
	}

	op := p.consume().val
	switch op {
	case "==", "!=", ">", ">=", "<", "<=":
	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}

	v := p.peek()
	switch v.kind {
	case tokNumber:
		p.consume()
		f, err := strconv.ParseFloat(v.val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", v.val)
		}
		return &cmpExpr{field: field, op: op, value: f}, nil
	case tokWord:
		// true/false for the boolean field.
		switch strings.ToLower(v.val) {
		case "true":
			p.consume()
			return &cmpExpr{field: field, op: op, value: 1}, nil
		case "false":
			p.consume()
			return &cmpExpr{field: field, op: op, value: 0}, nil
		}
	}
	return nil, fmt.Errorf("expected value, got %q", v.val)
}
