package param

import (
	"fmt"
	"strconv"
	"unicode"
)

// Expr is a parsed symbolic value: name, optionally followed by a
// parenthesised numeric argument with an optional unit suffix.
//
//	open
//	closed()
//	strobe(0.4)
//	pan(-12.5deg)
//	dmx(128)
type Expr struct {
	Name   string
	Arg    float64 // Arg is 0 when no argument was given.
	Unit   string  // Unit is kept for callers; it does not scale Arg.
	HasArg bool
}

// ParseExpr parses s into an Expr. Surrounding whitespace is ignored, as is
// whitespace around the parentheses. Anything left after the closing
// parenthesis is an error.
func ParseExpr(s string) (Expr, error) {
	p := exprParser{src: []rune(s)}
	return p.parse()
}

type exprParser struct {
	src []rune
	pos int
}

func (p *exprParser) parse() (Expr, error) {
	var e Expr

	p.skipSpace()
	name := p.ident()
	if name == "" {
		return e, p.errorf("expected a name")
	}
	e.Name = name

	p.skipSpace()
	if p.eof() {
		return e, nil
	}
	if !p.accept('(') {
		return e, p.errorf("unexpected %q", p.peek())
	}

	p.skipSpace()
	if num := p.number(); num != "" {
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return e, p.errorf("malformed number %q", num)
		}
		e.Arg = v
		e.HasArg = true

		p.skipSpace()
		e.Unit = p.unit()
		p.skipSpace()
	}

	if !p.accept(')') {
		if p.eof() {
			return e, p.errorf("missing \")\"")
		}
		return e, p.errorf("unexpected %q", p.peek())
	}

	p.skipSpace()
	if !p.eof() {
		return e, p.errorf("unexpected %q", p.peek())
	}
	return e, nil
}

func (p *exprParser) ident() string {
	start := p.pos
	for !p.eof() {
		r := p.peek()
		if r == '_' || unicode.IsLetter(r) || (p.pos > start && unicode.IsDigit(r)) {
			p.pos++
			continue
		}
		break
	}
	return string(p.src[start:p.pos])
}

// number scans [+-]? (digits ("." digits*)? | "." digits).
func (p *exprParser) number() string {
	start := p.pos
	if !p.eof() && (p.peek() == '+' || p.peek() == '-') {
		p.pos++
	}
	intDigits := p.digits()
	fracDigits := 0
	if !p.eof() && p.peek() == '.' {
		p.pos++
		fracDigits = p.digits()
	}
	if intDigits == 0 && fracDigits == 0 {
		p.pos = start
		return ""
	}
	return string(p.src[start:p.pos])
}

func (p *exprParser) digits() int {
	n := 0
	for !p.eof() && unicode.IsDigit(p.peek()) {
		p.pos++
		n++
	}
	return n
}

func (p *exprParser) unit() string {
	start := p.pos
	for !p.eof() && (unicode.IsLetter(p.peek()) || p.peek() == '%') {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *exprParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.peek()) {
		p.pos++
	}
}

func (p *exprParser) accept(r rune) bool {
	if !p.eof() && p.peek() == r {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) peek() rune { return p.src[p.pos] }

func (p *exprParser) eof() bool { return p.pos >= len(p.src) }

func (p *exprParser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %q at offset %d: %s", ErrSyntax, string(p.src), p.pos, fmt.Sprintf(format, args...))
}
