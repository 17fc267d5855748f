package ucum

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// divisionScale is the number of decimal places kept when a conversion
// cannot be expressed exactly (e.g. thirds).
const divisionScale = 40

var (
	one  = decimal.NewFromInt(1)
	zero = decimal.Zero
)

// dimension maps a base dimension to its exponent. Zero exponents are never
// stored.
type dimension map[string]int

func (d dimension) mul(o dimension, sign int) dimension {
	out := make(dimension, len(d)+len(o))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range o {
		out[k] += sign * v
		if out[k] == 0 {
			delete(out, k)
		}
	}
	return out
}

func (d dimension) pow(n int) dimension {
	out := make(dimension, len(d))
	if n == 0 {
		return out
	}
	for k, v := range d {
		out[k] = v * n
	}
	return out
}

func (d dimension) equal(o dimension) bool {
	if len(d) != len(o) {
		return false
	}
	for k, v := range d {
		if o[k] != v {
			return false
		}
	}
	return true
}

// String renders the dimension as a UCUM-style product of base units,
// e.g. "g.m-3". A dimensionless unit renders as "1".
func (d dimension) String() string {
	if len(d) == 0 {
		return "1"
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if d[k] == 1 {
			parts = append(parts, k)
			continue
		}
		parts = append(parts, k+strconv.Itoa(d[k]))
	}
	return strings.Join(parts, ".")
}

// Unit is a parsed UCUM expression. Its magnitude is kept as a fraction
// num/den relative to the base units so that conversions divide only once.
type Unit struct {
	Expr string

	num decimal.Decimal
	den decimal.Decimal
	dim dimension

	// special is set when the whole expression is a single non-ratio atom
	// such as Cel or [degF], possibly prefixed.
	special *special
	// nonRatio is set when a non-ratio atom appears inside a larger term,
	// which makes the expression valid but not convertible.
	nonRatio bool
	// arbitrary lists the arbitrary atoms the expression contains.
	arbitrary []string
}

func unity() *Unit {
	return &Unit{num: one, den: one, dim: dimension{}}
}

// Dimension returns the unit's dimension in base units, e.g. "g.m-3".
func (u *Unit) Dimension() string {
	return u.dim.String()
}

// IsArbitrary reports whether the expression contains an arbitrary unit.
func (u *Unit) IsArbitrary() bool {
	return len(u.arbitrary) > 0
}

func (u *Unit) multiply(o *Unit) *Unit {
	return &Unit{
		num:       u.num.Mul(o.num),
		den:       u.den.Mul(o.den),
		dim:       u.dim.mul(o.dim, 1),
		nonRatio:  u.nonRatio || o.nonRatio || u.special != nil || o.special != nil,
		arbitrary: append(append([]string{}, u.arbitrary...), o.arbitrary...),
	}
}

func (u *Unit) divide(o *Unit) *Unit {
	return &Unit{
		num:       u.num.Mul(o.den),
		den:       u.den.Mul(o.num),
		dim:       u.dim.mul(o.dim, -1),
		nonRatio:  u.nonRatio || o.nonRatio || u.special != nil || o.special != nil,
		arbitrary: append(append([]string{}, u.arbitrary...), o.arbitrary...),
	}
}

func (u *Unit) pow(n int) *Unit {
	if n == 1 {
		return u
	}
	out := &Unit{
		num:       one,
		den:       one,
		dim:       u.dim.pow(n),
		nonRatio:  u.nonRatio || u.special != nil,
		arbitrary: u.arbitrary,
	}
	abs := n
	if abs < 0 {
		abs = -abs
	}
	for i := 0; i < abs; i++ {
		out.num = out.num.Mul(u.num)
		out.den = out.den.Mul(u.den)
	}
	if n < 0 {
		out.num, out.den = out.den, out.num
	}
	return out
}

func (u *Unit) scale(f decimal.Decimal) *Unit {
	out := *u
	out.num = u.num.Mul(f)
	return &out
}

// magnitude returns num/den as a single decimal.
func (u *Unit) magnitude() decimal.Decimal {
	return u.num.DivRound(u.den, divisionScale)
}
