package ucum

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Bounds on user-supplied expressions. Exponents are applied by repeated
// multiplication of exact decimals.
const (
	maxExpressionLength = 256
	maxExponent         = 24
)

// parser is a recursive-descent parser over the UCUM grammar:
//
//	main      = "/" term | term
//	term      = component { ("." | "/") component }
//	component = "(" term ")" [annotation] | annotation | symbol [annotation]
//	symbol    = factor | [prefix] atom [exponent]
type parser struct {
	expr  string
	pos   int
	atoms map[string]*Unit
	defs  map[string]atomDef
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Expr: p.expr, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.expr) {
		return 0
	}
	return p.expr[p.pos]
}

func (p *parser) parse() (*Unit, error) {
	if p.expr == "" {
		return nil, p.errorf("empty expression")
	}
	if len(p.expr) > maxExpressionLength {
		return nil, p.errorf("expression longer than %d characters", maxExpressionLength)
	}
	if i := strings.IndexAny(p.expr, " \t\r\n"); i >= 0 {
		p.pos = i
		return nil, p.errorf("whitespace is not allowed")
	}

	var (
		u   *Unit
		err error
	)
	if p.peek() == '/' {
		p.pos++
		t, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		u = unity().divide(t)
	} else {
		u, err = p.parseTerm()
		if err != nil {
			return nil, err
		}
	}
	if p.pos != len(p.expr) {
		return nil, p.errorf("unexpected %q", p.expr[p.pos])
	}
	out := *u
	out.Expr = p.expr
	return &out, nil
}

func (p *parser) parseTerm() (*Unit, error) {
	u, err := p.parseComponent()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek() {
		case '.':
			p.pos++
			next, err := p.parseComponent()
			if err != nil {
				return nil, err
			}
			u = u.multiply(next)
		case '/':
			p.pos++
			next, err := p.parseComponent()
			if err != nil {
				return nil, err
			}
			u = u.divide(next)
		default:
			return u, nil
		}
	}
}

func (p *parser) parseComponent() (*Unit, error) {
	switch p.peek() {
	case 0:
		return nil, p.errorf("missing unit")
	case '(':
		p.pos++
		u, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, p.errorf("missing closing parenthesis")
		}
		p.pos++
		if err := p.skipAnnotation(); err != nil {
			return nil, err
		}
		return u, nil
	case '{':
		if err := p.skipAnnotation(); err != nil {
			return nil, err
		}
		return unity(), nil
	case ')', '}', '.', '/':
		return nil, p.errorf("unexpected %q", p.peek())
	}

	sym, err := p.readSymbol()
	if err != nil {
		return nil, err
	}
	u, err := p.resolveSymbol(sym)
	if err != nil {
		return nil, err
	}
	if err := p.skipAnnotation(); err != nil {
		return nil, err
	}
	return u, nil
}

// readSymbol consumes characters up to the next operator, parenthesis or
// annotation. Square brackets are consumed whole.
func (p *parser) readSymbol() (string, error) {
	start := p.pos
	for p.pos < len(p.expr) {
		c := p.expr[p.pos]
		switch c {
		case '.', '/', '(', ')', '{', '}':
			return p.expr[start:p.pos], nil
		case '[':
			end := strings.IndexByte(p.expr[p.pos:], ']')
			if end < 0 {
				return "", p.errorf("missing closing bracket")
			}
			p.pos += end + 1
			continue
		case ']':
			return "", p.errorf("unexpected ']'")
		}
		if c < 33 || c > 126 {
			return "", p.errorf("invalid character %q", c)
		}
		p.pos++
	}
	return p.expr[start:p.pos], nil
}

func (p *parser) skipAnnotation() error {
	if p.peek() != '{' {
		return nil
	}
	end := strings.IndexByte(p.expr[p.pos:], '}')
	if end < 0 {
		return p.errorf("missing closing brace")
	}
	body := p.expr[p.pos+1 : p.pos+end]
	if strings.ContainsAny(body, "{") {
		return p.errorf("nested annotation")
	}
	p.pos += end + 1
	return nil
}

// resolveSymbol turns a symbol into a unit: a bare integer factor, or an
// optionally prefixed atom with an optional integer exponent.
func (p *parser) resolveSymbol(sym string) (*Unit, error) {
	if isDigits(sym) {
		f, err := decimal.NewFromString(sym)
		if err != nil {
			return nil, p.errorf("invalid factor %q", sym)
		}
		u := unity()
		u.num = f
		return u, nil
	}

	code, exp := splitExponent(sym)
	if exp > maxExponent || exp < -maxExponent {
		return nil, p.errorf("exponent %d of %q out of range", exp, code)
	}
	u, ok := p.lookup(code)
	if !ok {
		return nil, p.errorf("unknown unit %q", code)
	}
	return u.pow(exp), nil
}

func (p *parser) lookup(code string) (*Unit, bool) {
	if u, ok := p.atoms[code]; ok {
		return u, true
	}
	for _, pre := range prefixes {
		if !strings.HasPrefix(code, pre.code) || len(code) == len(pre.code) {
			continue
		}
		rest := code[len(pre.code):]
		def, ok := p.defs[rest]
		if !ok || !def.metric {
			continue
		}
		u, ok := p.atoms[rest]
		if !ok {
			continue
		}
		scaled := u.scale(decimal.RequireFromString(pre.value))
		return scaled, true
	}
	return nil, false
}

// splitExponent separates a trailing signed integer exponent from an atom
// code: "m2" → ("m", 2), "10*-3" → ("10*", -3), "g" → ("g", 1).
func splitExponent(sym string) (string, int) {
	i := len(sym)
	for i > 0 && sym[i-1] >= '0' && sym[i-1] <= '9' {
		i--
	}
	if i == len(sym) || i == 0 {
		return sym, 1
	}
	j := i
	if sym[j-1] == '+' || sym[j-1] == '-' {
		j--
	}
	if j == 0 {
		return sym, 1
	}
	n, err := strconv.Atoi(sym[j:])
	if err != nil {
		return sym, 1
	}
	return sym[:j], n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
