// Package formula evaluates user-defined arithmetic over trading statistics.
//
// The grammar is deliberately small:
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/") unary }
//	unary  = "-" unary | factor
//	factor = number | ident | ident "(" expr { "," expr } ")" | "(" expr ")"
//
// Identifiers are the statistics variables supplied by the caller; the only
// functions are abs, min and max.
package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Error describes why a formula could not be evaluated. Pos is the 0-based
// byte offset of the offending token.
type Error struct {
	Pos int
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("formula error at position %d: %s", e.Pos, e.Msg)
}

// MaxLength bounds the accepted formula size.
const MaxLength = 512

// Evaluate parses and evaluates expr against vars.
func Evaluate(expr string, vars map[string]float64) (float64, error) {
	if strings.TrimSpace(expr) == "" {
		return 0, &Error{Msg: "formula is empty"}
	}
	if len(expr) > MaxLength {
		return 0, &Error{Msg: fmt.Sprintf("formula longer than %d characters", MaxLength)}
	}
	toks, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	p := &parser{toks: toks, vars: vars}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return 0, &Error{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &Error{Msg: "result is not a finite number"}
	}
	return v, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c, width := utf8.DecodeRuneInString(s[i:])
		switch {
		case unicode.IsSpace(c):
			i += width
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
				i++
			}
			n, err := strconv.ParseFloat(s[start:i], 64)
			if err != nil {
				return nil, &Error{Pos: start, Msg: fmt.Sprintf("invalid number %q", s[start:i])}
			}
			toks = append(toks, token{kind: tokNum, text: s[start:i], num: n, pos: start})
		case isIdentStart(c):
			start := i
			for i < len(s) && (s[i] == '_' || s[i] >= 'a' && s[i] <= 'z' || s[i] >= 'A' && s[i] <= 'Z' || s[i] >= '0' && s[i] <= '9') {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: strings.ToLower(s[start:i]), pos: start})
		case strings.ContainsRune("+-*/", c):
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		default:
			return nil, &Error{Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(s)}), nil
}

// isIdentStart reports whether c may begin an identifier. Only ASCII is
// accepted, matching the identifier scan in tokenize.
func isIdentStart(c rune) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

type parser struct {
	toks  []token
	i     int
	vars  map[string]float64
	depth int
}

const maxDepth = 64

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) expr() (float64, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return 0, &Error{Pos: p.peek().pos, Msg: "formula nested too deeply"}
	}

	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if t.text == "+" {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		if t.text == "*" {
			left *= right
			continue
		}
		if right == 0 {
			return 0, &Error{Pos: t.pos, Msg: "division by zero"}
		}
		left /= right
	}
}

func (p *parser) unary() (float64, error) {
	if t := p.peek(); t.kind == tokOp && t.text == "-" {
		p.next()
		p.depth++
		defer func() { p.depth-- }()
		if p.depth > maxDepth {
			return 0, &Error{Pos: t.pos, Msg: "formula nested too deeply"}
		}
		v, err := p.unary()
		return -v, err
	}
	return p.factor()
}

func (p *parser) factor() (float64, error) {
	t := p.next()
	switch t.kind {
	case tokNum:
		return t.num, nil
	case tokLParen:
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if c := p.next(); c.kind != tokRParen {
			return 0, &Error{Pos: c.pos, Msg: "expected )"}
		}
		return v, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.call(t)
		}
		v, ok := p.vars[t.text]
		if !ok {
			return 0, &Error{Pos: t.pos, Msg: fmt.Sprintf("unknown variable %q", t.text)}
		}
		return v, nil
	case tokEOF:
		return 0, &Error{Pos: t.pos, Msg: "unexpected end of formula"}
	default:
		return 0, &Error{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
}

func (p *parser) call(name token) (float64, error) {
	p.next() // (
	var args []float64
	for {
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		args = append(args, v)
		t := p.next()
		if t.kind == tokRParen {
			break
		}
		if t.kind != tokComma {
			return 0, &Error{Pos: t.pos, Msg: "expected , or )"}
		}
	}

	switch name.text {
	case "abs":
		if len(args) != 1 {
			return 0, &Error{Pos: name.pos, Msg: "abs takes exactly one argument"}
		}
		return math.Abs(args[0]), nil
	case "min", "max":
		if len(args) < 2 {
			return 0, &Error{Pos: name.pos, Msg: name.text + " takes at least two arguments"}
		}
		out := args[0]
		for _, a := range args[1:] {
			if name.text == "min" {
				out = math.Min(out, a)
			} else {
				out = math.Max(out, a)
			}
		}
		return out, nil
	default:
		return 0, &Error{Pos: name.pos, Msg: fmt.Sprintf("unknown function %q", name.text)}
	}
}
