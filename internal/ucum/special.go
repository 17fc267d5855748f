package ucum

import "github.com/shopspring/decimal"

// special describes a non-ratio unit: one whose relation to its base unit is
// not a pure factor, such as the temperature scales with an offset.
type special struct {
	dim      dimension
	toBase   func(decimal.Decimal) decimal.Decimal
	fromBase func(decimal.Decimal) decimal.Decimal
}

var (
	absoluteZeroCelsius    = decimal.RequireFromString("273.15")
	absoluteZeroFahrenheit = decimal.RequireFromString("459.67")
	nine                   = decimal.NewFromInt(9)
	five                   = decimal.NewFromInt(5)
)

var celsius = &special{
	dim: dimension{dimTemperature: 1},
	toBase: func(v decimal.Decimal) decimal.Decimal {
		return v.Add(absoluteZeroCelsius)
	},
	fromBase: func(k decimal.Decimal) decimal.Decimal {
		return k.Sub(absoluteZeroCelsius)
	},
}

var fahrenheit = &special{
	dim: dimension{dimTemperature: 1},
	toBase: func(v decimal.Decimal) decimal.Decimal {
		return v.Add(absoluteZeroFahrenheit).Mul(five).DivRound(nine, divisionScale)
	},
	fromBase: func(k decimal.Decimal) decimal.Decimal {
		return k.Mul(nine).DivRound(five, divisionScale).Sub(absoluteZeroFahrenheit)
	},
}
