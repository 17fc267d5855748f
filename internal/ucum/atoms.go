package ucum

// Base dimensions. The UCUM base units are the metre, second, gram, radian,
// kelvin, coulomb and candela; every other atom is defined in terms of them.
const (
	dimLength      = "m"
	dimTime        = "s"
	dimMass        = "g"
	dimAngle       = "rad"
	dimTemperature = "K"
	dimCharge      = "C"
	dimLuminosity  = "cd"
)

// ArbitraryUnit is the UCUM code for an arbitrary unit, the marker LOINC uses
// when a measurement has no fixed conversion to any other unit.
const ArbitraryUnit = "[arb'U]"

type prefix struct {
	code  string
	value string
}

// prefixes are the UCUM metric prefixes, two-character codes first so that
// "da" wins over "d".
var prefixes = []prefix{
	{"da", "1e1"},
	{"Y", "1e24"},
	{"Z", "1e21"},
	{"E", "1e18"},
	{"P", "1e15"},
	{"T", "1e12"},
	{"G", "1e9"},
	{"M", "1e6"},
	{"k", "1e3"},
	{"h", "1e2"},
	{"d", "1e-1"},
	{"c", "1e-2"},
	{"m", "1e-3"},
	{"u", "1e-6"},
	{"n", "1e-9"},
	{"p", "1e-12"},
	{"f", "1e-15"},
	{"a", "1e-18"},
	{"z", "1e-21"},
	{"y", "1e-24"},
}

// atomDef describes a unit atom. Base atoms carry their own dimension;
// derived atoms are defined as value × unit, where unit is itself a UCUM
// expression over previously known atoms.
type atomDef struct {
	code      string
	metric    bool
	base      string
	value     string
	unit      string
	arbitrary bool
	special   *special
}

var atomDefs = []atomDef{
	// base units
	{code: "m", metric: true, base: dimLength},
	{code: "s", metric: true, base: dimTime},
	{code: "g", metric: true, base: dimMass},
	{code: "rad", metric: true, base: dimAngle},
	{code: "K", metric: true, base: dimTemperature},
	{code: "C", metric: true, base: dimCharge},
	{code: "cd", metric: true, base: dimLuminosity},

	// dimensionless
	{code: "10*", value: "10", unit: "1"},
	{code: "10^", value: "10", unit: "1"},
	{code: "[pi]", value: "3.1415926535897932384626433832795028841971693993751058209749445923", unit: "1"},
	{code: "%", value: "1", unit: "10*-2"},
	{code: "[ppth]", value: "1", unit: "10*-3"},
	{code: "[ppm]", value: "1", unit: "10*-6"},
	{code: "[ppb]", value: "1", unit: "10*-9"},
	{code: "[pptr]", value: "1", unit: "10*-12"},
	{code: "[HPF]", value: "1", unit: "1"},
	{code: "[LPF]", value: "100", unit: "1"},

	// SI
	{code: "mol", metric: true, value: "6.0221367", unit: "10*23"},
	{code: "sr", metric: true, value: "1", unit: "rad2"},
	{code: "Hz", metric: true, value: "1", unit: "s-1"},
	{code: "N", metric: true, value: "1", unit: "kg.m/s2"},
	{code: "Pa", metric: true, value: "1", unit: "N/m2"},
	{code: "J", metric: true, value: "1", unit: "N.m"},
	{code: "W", metric: true, value: "1", unit: "J/s"},
	{code: "A", metric: true, value: "1", unit: "C/s"},
	{code: "V", metric: true, value: "1", unit: "J/C"},
	{code: "F", metric: true, value: "1", unit: "C/V"},
	{code: "Ohm", metric: true, value: "1", unit: "V/A"},
	{code: "S", metric: true, value: "1", unit: "Ohm-1"},
	{code: "Wb", metric: true, value: "1", unit: "V.s"},
	{code: "T", metric: true, value: "1", unit: "Wb/m2"},
	{code: "H", metric: true, value: "1", unit: "Wb/A"},
	{code: "lm", metric: true, value: "1", unit: "cd.sr"},
	{code: "lx", metric: true, value: "1", unit: "lm/m2"},
	{code: "Bq", metric: true, value: "1", unit: "s-1"},
	{code: "Gy", metric: true, value: "1", unit: "J/kg"},
	{code: "Sv", metric: true, value: "1", unit: "J/kg"},
	{code: "Cel", metric: true, special: celsius},

	// time
	{code: "min", value: "60", unit: "s"},
	{code: "h", value: "60", unit: "min"},
	{code: "d", value: "24", unit: "h"},
	{code: "wk", value: "7", unit: "d"},
	{code: "a_j", value: "365.25", unit: "d"},
	{code: "a", value: "1", unit: "a_j"},
	{code: "mo_j", value: "1", unit: "a_j/12"},
	{code: "mo", value: "1", unit: "mo_j"},

	// volume, area, mass
	{code: "l", metric: true, value: "1", unit: "dm3"},
	{code: "L", metric: true, value: "1", unit: "l"},
	{code: "ar", metric: true, value: "100", unit: "m2"},
	{code: "t", metric: true, value: "1e3", unit: "kg"},
	{code: "u", metric: true, value: "1.6605402e-24", unit: "g"},
	{code: "Ao", value: "0.1", unit: "nm"},
	{code: "[car_m]", value: "2e-1", unit: "g"},

	// pressure, energy, acceleration
	{code: "bar", metric: true, value: "1e5", unit: "Pa"},
	{code: "atm", value: "101325", unit: "Pa"},
	{code: "m[Hg]", metric: true, value: "133.3220", unit: "kPa"},
	{code: "m[H2O]", metric: true, value: "9.80665", unit: "kPa"},
	{code: "cal", metric: true, value: "4.184", unit: "J"},
	{code: "[Cal]", value: "1", unit: "kcal"},
	{code: "[g]", value: "9.80665", unit: "m/s2"},
	{code: "gf", metric: true, value: "1", unit: "g.[g]"},
	{code: "Ci", metric: true, value: "3.7e10", unit: "Bq"},

	// chemistry and clinical
	{code: "kat", metric: true, value: "1", unit: "mol/s"},
	{code: "U", metric: true, value: "1", unit: "umol/min"},
	{code: "eq", metric: true, value: "1", unit: "mol"},
	{code: "osm", metric: true, value: "1", unit: "mol"},
	{code: "g%", metric: true, value: "1", unit: "g/dl"},
	{code: "[drp]", value: "1", unit: "ml/20"},

	// international customary and avoirdupois
	{code: "[in_i]", value: "2.54", unit: "cm"},
	{code: "[ft_i]", value: "12", unit: "[in_i]"},
	{code: "[yd_i]", value: "3", unit: "[ft_i]"},
	{code: "[mi_i]", value: "5280", unit: "[ft_i]"},
	{code: "[gr]", value: "64.79891", unit: "mg"},
	{code: "[lb_av]", value: "7000", unit: "[gr]"},
	{code: "[oz_av]", value: "437.5", unit: "[gr]"},
	{code: "[gal_us]", value: "231", unit: "[in_i]3"},
	{code: "[qt_us]", value: "1", unit: "[gal_us]/4"},
	{code: "[pt_us]", value: "1", unit: "[qt_us]/2"},
	{code: "[foz_us]", value: "1", unit: "[pt_us]/16"},
	{code: "[degF]", special: fahrenheit},

	// arbitrary units
	{code: ArbitraryUnit, arbitrary: true},
	{code: "[iU]", metric: true, arbitrary: true},
	{code: "[IU]", metric: true, arbitrary: true},
	{code: "[CFU]", metric: true, arbitrary: true},
	{code: "[USP'U]", metric: true, arbitrary: true},
	{code: "[APL'U]", metric: true, arbitrary: true},
	{code: "[GPL'U]", metric: true, arbitrary: true},
	{code: "[MPL'U]", metric: true, arbitrary: true},
	{code: "[beth'U]", arbitrary: true},
	{code: "[PFU]", metric: true, arbitrary: true},
	{code: "[FFU]", metric: true, arbitrary: true},
}
