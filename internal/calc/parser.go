package calc

import (
	"fmt"
	"math"
	"strconv"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
	pos  int
	num  float64
}

// grammar:
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/") unary }
//	unary  = ("+" | "-") unary | factor
//	factor = number | "(" expr ")"
type parser struct {
	src   string
	pos   int
	tok   token
	err   error
	depth int
}

const maxDepth = 256

func (p *parser) next() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok = token{kind: tokEOF, pos: p.pos}
		return
	}

	start := p.pos
	c := p.src[p.pos]
	switch {
	case c == '+' || c == '-' || c == '*' || c == '/':
		p.pos++
		p.tok = token{kind: tokOp, text: string(c), pos: start}
	case c == '(':
		p.pos++
		p.tok = token{kind: tokLParen, text: "(", pos: start}
	case c == ')':
		p.pos++
		p.tok = token{kind: tokRParen, text: ")", pos: start}
	case isDigit(c) || c == '.':
		dots := 0
		for p.pos < len(p.src) && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.') {
			if p.src[p.pos] == '.' {
				dots++
			}
			p.pos++
		}
		text := p.src[start:p.pos]
		n, err := strconv.ParseFloat(text, 64)
		if dots > 1 || text == "." || err != nil {
			p.err = fmt.Errorf("%w: bad number %q at %d", ErrSyntax, text, start)
			p.tok = token{kind: tokEOF, pos: start}
			return
		}
		p.tok = token{kind: tokNum, text: text, pos: start, num: n}
	default:
		p.pos++
		p.err = fmt.Errorf("%w: %q at %d", ErrUnsafeCharacter, c, start)
		p.tok = token{kind: tokEOF, pos: start}
	}
}

func (p *parser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		p.next()
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
	return left, p.err
}

func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/") {
		op := p.tok.text
		p.next()
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == "*" {
			left *= right
			continue
		}
		if right == 0 {
			return 0, ErrDivisionByZero
		}
		left /= right
	}
	if math.IsInf(left, 0) || math.IsNaN(left) {
		return 0, fmt.Errorf("%w: result out of range", ErrSyntax)
	}
	return left, p.err
}

func (p *parser) unary() (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return 0, fmt.Errorf("%w: expression nested too deeply", ErrSyntax)
	}

	if p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		neg := p.tok.text == "-"
		p.next()
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		if neg {
			v = -v
		}
		return v, nil
	}
	return p.factor()
}

func (p *parser) factor() (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	switch p.tok.kind {
	case tokNum:
		v := p.tok.num
		p.next()
		return v, p.err
	case tokLParen:
		p.next()
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.tok.kind != tokRParen {
			return 0, fmt.Errorf("%w: missing ')' at %d", ErrSyntax, p.tok.pos)
		}
		p.next()
		return v, p.err
	case tokEOF:
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	default:
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.tok.text, p.tok.pos)
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
