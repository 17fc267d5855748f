package refdata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ehr/loinc-conversion/internal/ucum"
)

// Table names used in logs and LoadFailure.
const (
	TableArbitrary   = "arbitrary"
	TableLoinc       = "loinc"
	TableSynonyms    = "synonyms"
	TableConversions = "conversions"
)

// FailureKind classifies a LoadFailure.
type FailureKind int

const (
	FileMissing FailureKind = iota + 1
	ParseError
)

func (k FailureKind) String() string {
	switch k {
	case FileMissing:
		return "file missing"
	case ParseError:
		return "parse error"
	}
	return "unknown"
}

// LoadFailure is returned when a reference table cannot be read or parsed.
// It is fatal: the service must not start with partial reference data.
type LoadFailure struct {
	Kind  FailureKind
	Table string
	Path  string
	Row   int
	Err   error
}

func (e *LoadFailure) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("load %s table %s: %s at line %d: %v", e.Table, e.Path, e.Kind, e.Row, e.Err)
	}
	return fmt.Sprintf("load %s table %s: %s: %v", e.Table, e.Path, e.Kind, e.Err)
}

func (e *LoadFailure) Unwrap() error { return e.Err }

// Paths locates the four reference tables.
type Paths struct {
	Loinc       string
	Arbitrary   string
	Synonyms    string
	Conversions string
}

// Load reads all reference tables. The arbitrary-unit table is read before
// the LOINC table because LOINC rows whose example unit is [arb'U] are
// rewritten from it; conversion rules are read last so they override units
// taken from the LOINC table. Every unit in the tables must be valid UCUM.
func Load(paths Paths, logger zerolog.Logger) (*ReferenceData, error) {
	b := NewBuilder()
	units := ucum.New()

	arbitrary, err := loadArbitrary(paths.Arbitrary, logger)
	if err != nil {
		return nil, err
	}
	if err := loadLoinc(b, units, paths.Loinc, arbitrary, logger); err != nil {
		return nil, err
	}
	if err := loadSynonyms(b, units, paths.Synonyms, logger); err != nil {
		return nil, err
	}
	if err := loadConversions(b, units, paths.Conversions, logger); err != nil {
		return nil, err
	}

	data := b.Build()
	stats := data.Stats()
	logger.Info().
		Int("loinc_codes", stats.LoincCodes).
		Int("synonyms", stats.Synonyms).
		Int("conversion_rules", stats.ConversionRules).
		Int("arbitrary_substitutions", stats.ArbitrarySubstitutions).
		Msg("reference data loaded")
	return data, nil
}

func openTable(name, path string, logger zerolog.Logger, columns ...string) (*Table, error) {
	t, err := ReadTable(name, path)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("table", name).Str("path", path).Int("rows", t.Len()).Msg("parsed reference table")
	if err := t.require(columns...); err != nil {
		return nil, &LoadFailure{Kind: ParseError, Table: name, Path: path, Row: 1, Err: err}
	}
	return t, nil
}

func rowError(t *Table, i int, format string, args ...interface{}) error {
	return &LoadFailure{Kind: ParseError, Table: t.Name, Path: t.Path, Row: t.Line(i), Err: fmt.Errorf(format, args...)}
}

func loadArbitrary(path string, logger zerolog.Logger) (map[string]string, error) {
	t, err := openTable(TableArbitrary, path, logger, "FROM_UNIT", "TO_UNIT")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, t.Len())
	for i := 0; i < t.Len(); i++ {
		if t.blank(i) {
			continue
		}
		from, to := t.Get(i, "FROM_UNIT"), t.Get(i, "TO_UNIT")
		if from == "" || to == "" {
			return nil, rowError(t, i, "FROM_UNIT and TO_UNIT are required")
		}
		out[from] = to
	}
	return out, nil
}

func loadLoinc(b *Builder, units *ucum.Engine, path string, arbitrary map[string]string, logger zerolog.Logger) error {
	t, err := openTable(TableLoinc, path, logger, "LOINC_NUM", "EXAMPLE_UCUM_UNITS")
	if err != nil {
		return err
	}
	for i := 0; i < t.Len(); i++ {
		if t.blank(i) {
			continue
		}
		code := t.Get(i, "LOINC_NUM")
		if code == "" {
			return rowError(t, i, "LOINC_NUM is empty")
		}
		unit := t.Get(i, "EXAMPLE_UCUM_UNITS")
		if unit == ucum.ArbitraryUnit {
			if sub, ok := substituteArbitrary(t.Get(i, "EXAMPLE_UNITS"), arbitrary); ok {
				unit = sub
				b.substitutions++
			}
		}
		if unit != "" {
			if err := units.Validate(unit); err != nil {
				return rowError(t, i, "invalid EXAMPLE_UCUM_UNITS: %w", err)
			}
		}
		b.AddLoinc(code, unit, t.Get(i, "LONG_COMMON_NAME"))
	}
	return nil
}

// substituteArbitrary returns the replacement for the first of the
// semicolon-separated example units that the arbitrary table knows.
func substituteArbitrary(exampleUnits string, arbitrary map[string]string) (string, bool) {
	for _, u := range strings.Split(exampleUnits, ";") {
		if to, ok := arbitrary[strings.TrimSpace(u)]; ok {
			return to, true
		}
	}
	return "", false
}

func loadSynonyms(b *Builder, units *ucum.Engine, path string, logger zerolog.Logger) error {
	t, err := openTable(TableSynonyms, path, logger, "NOT_UCUM", "UCUM")
	if err != nil {
		return err
	}
	for i := 0; i < t.Len(); i++ {
		if t.blank(i) {
			continue
		}
		notUCUM, canonical := t.Get(i, "NOT_UCUM"), t.Get(i, "UCUM")
		if notUCUM == "" || canonical == "" {
			return rowError(t, i, "NOT_UCUM and UCUM are required")
		}
		if err := units.Validate(canonical); err != nil {
			return rowError(t, i, "invalid UCUM: %w", err)
		}
		b.AddSynonym(notUCUM, canonical)
	}
	return nil
}

func loadConversions(b *Builder, units *ucum.Engine, path string, logger zerolog.Logger) error {
	t, err := openTable(TableConversions, path, logger, "FROM_LOINC", "FROM_UNIT", "TO_UNIT", "FACTOR")
	if err != nil {
		return err
	}
	if !t.Has("TO_LOINC") && !t.Has("TARGET_LOINC") {
		return &LoadFailure{Kind: ParseError, Table: t.Name, Path: t.Path, Row: 1,
			Err: errors.New("missing required column TO_LOINC or TARGET_LOINC")}
	}
	for i := 0; i < t.Len(); i++ {
		if t.blank(i) {
			continue
		}
		rule := ConversionRule{
			FromLoinc: t.Get(i, "FROM_LOINC"),
			FromUnit:  t.Get(i, "FROM_UNIT"),
			ToUnit:    t.Get(i, "TO_UNIT"),
			ToLoinc:   t.Get(i, "TO_LOINC"),
		}
		if rule.ToLoinc == "" {
			rule.ToLoinc = t.Get(i, "TARGET_LOINC")
		}
		if rule.FromLoinc == "" || rule.ToLoinc == "" {
			return rowError(t, i, "FROM_LOINC and TO_LOINC are required")
		}
		if rule.FromUnit == "" || rule.ToUnit == "" {
			return rowError(t, i, "FROM_UNIT and TO_UNIT are required")
		}
		for _, u := range []string{rule.FromUnit, rule.ToUnit} {
			if err := units.Validate(u); err != nil {
				return rowError(t, i, "invalid unit: %w", err)
			}
		}
		factor, err := decimal.NewFromString(t.Get(i, "FACTOR"))
		if err != nil {
			return rowError(t, i, "invalid FACTOR %q: %w", t.Get(i, "FACTOR"), err)
		}
		rule.Factor = factor
		b.AddRule(rule)
	}
	return nil
}
