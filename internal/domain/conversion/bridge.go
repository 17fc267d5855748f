package conversion

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ehr/loinc-conversion/internal/ucum"
)

// ArbitraryPlaceholder replaces the [arb'U] marker while the unit engine is
// consulted. The engine refuses to convert arbitrary units; the placeholder
// is registered as a base unit of its own, so [arb'U] converts to itself
// (and [arb'U]/mL to [arb'U]/L) while a mismatch such as [arb'U] to mg still
// fails as incommensurable.
const ArbitraryPlaceholder = "[arbitrary]"

// NewUnitEngine returns a UCUM engine that knows ArbitraryPlaceholder.
func NewUnitEngine() *ucum.Engine {
	return ucum.New(ucum.WithBaseUnit(ArbitraryPlaceholder))
}

// arbitraryBridge wraps a UnitConverter with the marker↔placeholder
// translation so the resolver never sees the placeholder.
type arbitraryBridge struct {
	units UnitConverter
}

func (b arbitraryBridge) Convert(from string, value decimal.Decimal, to string) (decimal.Decimal, error) {
	v, err := b.units.Convert(toPlaceholder(from), value, toPlaceholder(to))
	if err != nil {
		return v, revertError(err)
	}
	return v, nil
}

func toPlaceholder(unit string) string {
	return strings.ReplaceAll(unit, ucum.ArbitraryUnit, ArbitraryPlaceholder)
}

func fromPlaceholder(unit string) string {
	return strings.ReplaceAll(unit, ArbitraryPlaceholder, ucum.ArbitraryUnit)
}

// revertError rewrites engine errors so that they name the marker again.
func revertError(err error) error {
	var ce *ucum.ConversionError
	if errors.As(err, &ce) {
		return &ucum.ConversionError{
			From:   fromPlaceholder(ce.From),
			To:     fromPlaceholder(ce.To),
			Reason: fromPlaceholder(ce.Reason),
		}
	}
	var pe *ucum.ParseError
	if errors.As(err, &pe) {
		return &ucum.ParseError{
			Expr: fromPlaceholder(pe.Expr),
			Pos:  pe.Pos,
			Msg:  fromPlaceholder(pe.Msg),
		}
	}
	return err
}
