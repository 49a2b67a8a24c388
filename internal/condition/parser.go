package condition

import (
	"fmt"
	"strings"
)

type node interface {
	eval(vars map[string]any) (any, error)
}

type literalNode struct{ value any }

type varNode struct{ name string }

type notNode struct{ inner node }

type binaryNode struct {
	op    string // AND OR
	left  node
	right node
}

type compareNode struct {
	op    string // = == != > >= < <=
	left  node
	right node
}

type inNode struct {
	negate bool
	left   node
	items  []node
}

// Recursive descent over the token stream. Precedence, loosest first:
// OR, AND, NOT, comparison/membership, primary.
type parser struct {
	tokens []token
	pos    int
}

func (p *parser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token {
	if p.atEnd() {
		return token{}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	if p.atEnd() || p.peek().kind != kind {
		return token{}, fmt.Errorf("expected %s, got %q", what, p.peek().text)
	}
	return p.next(), nil
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for !p.atEnd() && p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "OR", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for !p.atEnd() && p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "AND", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if !p.atEnd() && p.peek().kind == tokNot {
		// A NOT directly followed by IN belongs to the comparison level.
		if p.pos+1 < len(p.tokens) && p.tokens[p.pos+1].kind == tokIn {
			return p.parseComparison()
		}
		p.next()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{inner: inner}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.atEnd() {
		return left, nil
	}
	switch p.peek().kind {
	case tokOp:
		op := p.next().text
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &compareNode{op: op, left: left, right: right}, nil
	case tokIn:
		p.next()
		items, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return &inNode{left: left, items: items}, nil
	case tokNot:
		if p.pos+1 < len(p.tokens) && p.tokens[p.pos+1].kind == tokIn {
			p.next()
			p.next()
			items, err := p.parseList()
			if err != nil {
				return nil, err
			}
			return &inNode{negate: true, left: left, items: items}, nil
		}
	}
	return left, nil
}

func (p *parser) parsePrimary() (node, error) {
	if p.atEnd() {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	t := p.next()
	switch t.kind {
	case tokString:
		return &literalNode{value: t.text}, nil
	case tokNumber:
		return &literalNode{value: t.num}, nil
	case tokBool:
		return &literalNode{value: strings.EqualFold(t.text, "true")}, nil
	case tokIdent:
		return &varNode{name: t.text}, nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return nil, fmt.Errorf("unexpected token %q", t.text)
}

// A membership list is a parenthesized, comma-separated sequence of
// literals or variable references.
func (p *parser) parseList() ([]node, error) {
	if _, err := p.expect(tokLParen, "'(' after IN"); err != nil {
		return nil, err
	}
	var items []node
	for {
		if p.atEnd() {
			return nil, fmt.Errorf("unterminated list")
		}
		t := p.next()
		switch t.kind {
		case tokString:
			items = append(items, &literalNode{value: t.text})
		case tokNumber:
			items = append(items, &literalNode{value: t.num})
		case tokBool:
			items = append(items, &literalNode{value: strings.EqualFold(t.text, "true")})
		case tokIdent:
			items = append(items, &varNode{name: t.text})
		default:
			return nil, fmt.Errorf("unexpected token %q in list", t.text)
		}
		if p.atEnd() {
			return nil, fmt.Errorf("unterminated list")
		}
		switch p.peek().kind {
		case tokComma:
			p.next()
		case tokRParen:
			p.next()
			return items, nil
		default:
			return nil, fmt.Errorf("expected ',' or ')' in list, got %q", p.peek().text)
		}
	}
}
