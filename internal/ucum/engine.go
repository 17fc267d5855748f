// Package ucum parses, validates and converts unit expressions written in
// the Unified Code for Units of Measure (https://ucum.org).
//
// Magnitudes are held as exact decimal fractions so that conversions between
// commensurable units with terminating factors (g/dl to g/L, Cel to [degF])
// produce exact results. Arbitrary units such as [IU] or [arb'U] are valid
// but never convertible to any other unit, as UCUM defines them.
package ucum

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Engine validates and converts UCUM expressions. It is immutable after
// construction and safe for concurrent use.
type Engine struct {
	atoms map[string]*Unit
	defs  map[string]atomDef
}

// Option configures an Engine.
type Option func(*Engine)

// WithBaseUnit registers code as an additional base unit with its own
// dimension. Such a unit converts only to itself (and scaled or compound
// forms of itself) and is incommensurable with everything else.
func WithBaseUnit(code string) Option {
	return func(e *Engine) {
		if code == "" {
			return
		}
		def := atomDef{code: code, base: code}
		e.defs[code] = def
		e.atoms[code] = &Unit{Expr: code, num: one, den: one, dim: dimension{code: 1}}
	}
}

// New builds an engine over the built-in atom table.
func New(opts ...Option) *Engine {
	e := &Engine{
		atoms: make(map[string]*Unit, len(atomDefs)),
		defs:  make(map[string]atomDef, len(atomDefs)),
	}
	for _, def := range atomDefs {
		u, err := e.define(def)
		if err != nil {
			panic(fmt.Sprintf("ucum: bad atom definition %q: %v", def.code, err))
		}
		e.defs[def.code] = def
		e.atoms[def.code] = u
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) define(def atomDef) (*Unit, error) {
	switch {
	case def.base != "":
		return &Unit{Expr: def.code, num: one, den: one, dim: dimension{def.base: 1}}, nil
	case def.arbitrary:
		return &Unit{Expr: def.code, num: one, den: one, dim: dimension{}, arbitrary: []string{def.code}}, nil
	case def.special != nil:
		return &Unit{Expr: def.code, num: one, den: one, dim: def.special.dim, special: def.special}, nil
	}
	ref, err := e.Parse(def.unit)
	if err != nil {
		return nil, err
	}
	v, err := decimal.NewFromString(def.value)
	if err != nil {
		return nil, err
	}
	u := ref.scale(v)
	u.Expr = def.code
	return u, nil
}

// Parse parses expr into a Unit.
func (e *Engine) Parse(expr string) (*Unit, error) {
	p := &parser{expr: expr, atoms: e.atoms, defs: e.defs}
	return p.parse()
}

// Validate returns a *ParseError when expr is not a valid UCUM expression.
func (e *Engine) Validate(expr string) error {
	_, err := e.Parse(expr)
	return err
}

// Convert converts value expressed in from into the unit to. It returns a
// *ParseError when either expression is invalid and a *ConversionError when
// the two are not commensurable or not convertible at all.
func (e *Engine) Convert(from string, value decimal.Decimal, to string) (decimal.Decimal, error) {
	src, err := e.Parse(from)
	if err != nil {
		return zero, err
	}
	dst, err := e.Parse(to)
	if err != nil {
		return zero, err
	}

	fail := func(format string, args ...interface{}) (decimal.Decimal, error) {
		return zero, &ConversionError{From: from, To: to, Reason: fmt.Sprintf(format, args...)}
	}

	if src.IsArbitrary() {
		return fail("%s is an arbitrary unit", src.arbitrary[0])
	}
	if dst.IsArbitrary() {
		return fail("%s is an arbitrary unit", dst.arbitrary[0])
	}
	if src.nonRatio {
		return fail("%s combines a non-ratio unit with other units", from)
	}
	if dst.nonRatio {
		return fail("%s combines a non-ratio unit with other units", to)
	}
	if !src.dim.equal(dst.dim) {
		return fail("%s (%s) is not commensurable with %s (%s)", from, src.dim, to, dst.dim)
	}

	if src.special == nil && dst.special == nil {
		return value.Mul(src.num).Mul(dst.den).DivRound(src.den.Mul(dst.num), divisionScale), nil
	}

	base := value.Mul(src.num).DivRound(src.den, divisionScale)
	if src.special != nil {
		base = src.special.toBase(base)
	}
	if dst.special != nil {
		// dst.num/den only carry the prefix of a prefixed non-ratio atom.
		return dst.special.fromBase(base).Mul(dst.den).DivRound(dst.num, divisionScale), nil
	}
	return base.Mul(dst.den).DivRound(dst.num, divisionScale), nil
}
