package conversion

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ehr/loinc-conversion/internal/platform/refdata"
	"github.com/ehr/loinc-conversion/internal/ucum"
)

// UnitConverter is the unit algebra the resolver relies on. *ucum.Engine
// implements it.
type UnitConverter interface {
	Validate(unit string) error
	Convert(from string, value decimal.Decimal, to string) (decimal.Decimal, error)
}

// ReferenceData is the read-only lookup context. *refdata.ReferenceData
// implements it.
type ReferenceData interface {
	Loinc(code string) (refdata.LoincUnit, bool)
	Synonym(unit string) (string, bool)
	Rule(code string) (refdata.ConversionRule, bool)
}

// Resolver harmonizes (loinc, unit, value) triples. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	data   ReferenceData
	units  UnitConverter
	bridge arbitraryBridge
}

// NewResolver creates a resolver. units must know ArbitraryPlaceholder for
// [arb'U] conversions to succeed; see NewUnitEngine.
func NewResolver(data ReferenceData, units UnitConverter) *Resolver {
	return &Resolver{data: data, units: units, bridge: arbitraryBridge{units: units}}
}

// Resolve converts value from unit into the canonical unit of loinc,
// applying at most one harmonization rule on the way.
func (r *Resolver) Resolve(loinc, unit string, value float64) (*Result, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, &Error{Kind: ErrInvalidValue, Loinc: loinc, Unit: unit, Value: fmt.Sprint(value)}
	}
	if loinc == "" {
		return nil, &Error{Kind: ErrMissingLoinc}
	}
	if unit == "" {
		return nil, &Error{Kind: ErrMissingUnit, Loinc: loinc}
	}
	if _, ok := r.data.Loinc(loinc); !ok {
		return nil, &Error{Kind: ErrInvalidLoinc, Loinc: loinc}
	}
	if canonical, ok := r.data.Synonym(unit); ok {
		unit = canonical
	}
	if strings.Contains(unit, ArbitraryPlaceholder) {
		return nil, &Error{Kind: ErrInvalidUnit, Loinc: loinc, Unit: unit,
			Err: &ucum.ParseError{Expr: unit, Msg: fmt.Sprintf("unknown unit %q", ArbitraryPlaceholder)}}
	}
	if err := r.units.Validate(toPlaceholder(unit)); err != nil {
		return nil, &Error{Kind: ErrInvalidUnit, Loinc: loinc, Unit: unit, Err: revertError(err)}
	}

	v := decimal.NewFromFloat(value)

	if rule, ok := r.data.Rule(loinc); ok {
		converted, err := r.bridge.Convert(unit, v, rule.FromUnit)
		if err != nil {
			return nil, conversionFailed(loinc, unit, rule.FromUnit, err)
		}
		v = converted.Mul(rule.Factor)
		unit = rule.ToUnit
		loinc = rule.ToLoinc
	}

	entry, _ := r.data.Loinc(loinc)
	if entry.ExampleUCUMUnit == "" {
		f, _ := v.Float64()
		return &Result{
			Value:   f,
			Unit:    unit,
			Loinc:   loinc,
			Display: entry.Display,
			Warning: fmt.Sprintf("no UCUM unit is defined for loinc %q; unit %q passed through unchanged", loinc, unit),
		}, nil
	}

	converted, err := r.bridge.Convert(unit, v, entry.ExampleUCUMUnit)
	if err != nil {
		return nil, conversionFailed(loinc, unit, entry.ExampleUCUMUnit, err)
	}
	f, _ := converted.Float64()
	return &Result{
		Value:   f,
		Unit:    entry.ExampleUCUMUnit,
		Loinc:   loinc,
		Display: entry.Display,
	}, nil
}

func conversionFailed(loinc, from, to string, err error) *Error {
	reason := err.Error()
	var ce *ucum.ConversionError
	if errors.As(err, &ce) {
		reason = ce.Reason
	}
	return &Error{Kind: ErrConversionFailed, Loinc: loinc, Unit: from, Target: to, Reason: reason, Err: err}
}
