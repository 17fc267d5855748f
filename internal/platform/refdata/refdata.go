// Package refdata loads the static reference tables behind LOINC unit
// harmonization: the LOINC table, the unit synonym table, the LOINC-to-LOINC
// conversion rules and the arbitrary-unit substitution table.
//
// The result is a ReferenceData value that is built once at startup and
// never mutated afterwards, so it can be shared by any number of concurrent
// requests without locking.
package refdata

import (
	"github.com/shopspring/decimal"
)

// LoincUnit is the canonical unit for a LOINC code.
type LoincUnit struct {
	Code            string `json:"loinc"`
	ExampleUCUMUnit string `json:"unit"`
	Display         string `json:"display,omitempty"`
}

// ConversionRule harmonizes one LOINC code into another: a value in FromUnit
// is multiplied by Factor and reported as ToUnit under ToLoinc.
type ConversionRule struct {
	FromLoinc string
	FromUnit  string
	ToUnit    string
	Factor    decimal.Decimal
	ToLoinc   string
}

// Stats summarizes the loaded tables.
type Stats struct {
	LoincCodes             int `json:"loinc_codes"`
	Synonyms               int `json:"synonyms"`
	ConversionRules        int `json:"conversion_rules"`
	ArbitrarySubstitutions int `json:"arbitrary_substitutions"`
}

// ReferenceData is the immutable lookup context used by the resolver.
type ReferenceData struct {
	loinc    map[string]LoincUnit
	synonyms map[string]string
	rules    map[string]ConversionRule
	stats    Stats
}

// Loinc returns the canonical unit entry for code.
func (r *ReferenceData) Loinc(code string) (LoincUnit, bool) {
	u, ok := r.loinc[code]
	return u, ok
}

// Synonym returns the canonical spelling for a non-standard unit spelling.
func (r *ReferenceData) Synonym(unit string) (string, bool) {
	s, ok := r.synonyms[unit]
	return s, ok
}

// Rule returns the harmonization rule keyed by the source LOINC code.
func (r *ReferenceData) Rule(code string) (ConversionRule, bool) {
	rule, ok := r.rules[code]
	return rule, ok
}

// Stats returns table sizes.
func (r *ReferenceData) Stats() Stats {
	return r.stats
}

// Builder assembles a ReferenceData. It is used by Load and by tests that
// need a small in-memory data set.
type Builder struct {
	loinc         map[string]LoincUnit
	synonyms      map[string]string
	rules         map[string]ConversionRule
	substitutions int
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		loinc:    make(map[string]LoincUnit),
		synonyms: make(map[string]string),
		rules:    make(map[string]ConversionRule),
	}
}

// AddLoinc creates or replaces the entry for code.
func (b *Builder) AddLoinc(code, unit, display string) *Builder {
	b.loinc[code] = LoincUnit{Code: code, ExampleUCUMUnit: unit, Display: display}
	return b
}

// AddSynonym maps a non-standard spelling to its canonical spelling.
func (b *Builder) AddSynonym(notUCUM, ucum string) *Builder {
	b.synonyms[notUCUM] = ucum
	return b
}

// AddRule registers a harmonization rule. The rule's target unit supersedes
// the LOINC table's unit for ToLoinc; a known display name is kept.
func (b *Builder) AddRule(rule ConversionRule) *Builder {
	b.rules[rule.FromLoinc] = rule
	target := b.loinc[rule.ToLoinc]
	b.loinc[rule.ToLoinc] = LoincUnit{Code: rule.ToLoinc, ExampleUCUMUnit: rule.ToUnit, Display: target.Display}
	return b
}

// Build returns the ReferenceData. The builder must not be used afterwards.
func (b *Builder) Build() *ReferenceData {
	r := &ReferenceData{
		loinc:    b.loinc,
		synonyms: b.synonyms,
		rules:    b.rules,
		stats: Stats{
			LoincCodes:             len(b.loinc),
			Synonyms:               len(b.synonyms),
			ConversionRules:        len(b.rules),
			ArbitrarySubstitutions: b.substitutions,
		},
	}
	b.loinc, b.synonyms, b.rules = nil, nil, nil
	return r
}
