// Package calc pulls an arithmetic expression out of free text and evaluates it
// with a small recursive-descent parser. Only numbers, + - * /, unary minus and
// parentheses are understood; nothing else is ever executed.
package calc

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrNoExpression    = errors.New("no arithmetic expression")
	ErrSyntax          = errors.New("syntax error")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrUnsafeCharacter = errors.New("unsafe character in expression")
)

var exprRe = regexp.MustCompile(`[\d+\-*/().]+`)

const allowed = "0123456789+-*/(). "

// Extract concatenates every run of digits, operators, dots and parentheses
// found in text, so "calculate 15 + 25" becomes "15+25".
func Extract(text string) (string, error) {
	parts := exprRe.FindAllString(text, -1)
	if len(parts) == 0 {
		return "", ErrNoExpression
	}
	expr := strings.Join(parts, "")
	for _, c := range expr {
		if !strings.ContainsRune(allowed, c) {
			return "", fmt.Errorf("%w: %q", ErrUnsafeCharacter, c)
		}
	}
	return expr, nil
}

// Eval parses and evaluates expr.
func Eval(expr string) (float64, error) {
	p := &parser{src: expr}
	p.next()
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if p.tok.kind != tokEOF {
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.tok.text, p.tok.pos)
	}
	return v, nil
}

// Calculate is Extract followed by Eval.
func Calculate(text string) (float64, error) {
	expr, err := Extract(text)
	if err != nil {
		return 0, err
	}
	return Eval(expr)
}

// Format renders a result without a trailing ".0" for whole numbers.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
