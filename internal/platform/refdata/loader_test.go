package refdata

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ehr/loinc-conversion/internal/ucum"
)

func testPaths() Paths {
	return Paths{
		Loinc:       filepath.Join("testdata", "Loinc.csv"),
		Arbitrary:   filepath.Join("testdata", "arbitrary.tsv"),
		Synonyms:    filepath.Join("testdata", "synonyms.tsv"),
		Conversions: filepath.Join("testdata", "conversion.tsv"),
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_Testdata(t *testing.T) {
	data, err := Load(testPaths(), zerolog.Nop())
	require.NoError(t, err)

	stats := data.Stats()
	assert.Equal(t, 11, stats.LoincCodes) // ten rows plus 2243-4 created by a rule
	assert.Equal(t, 5, stats.Synonyms)
	assert.Equal(t, 3, stats.ConversionRules)
	assert.Equal(t, 2, stats.ArbitrarySubstitutions)

	hgb, ok := data.Loinc("718-7")
	require.True(t, ok)
	assert.Equal(t, "g/dL", hgb.ExampleUCUMUnit)
	assert.Equal(t, "Hemoglobin [Mass/volume] in Blood", hgb.Display)

	canonical, ok := data.Synonym("g/dl")
	require.True(t, ok)
	assert.Equal(t, "g/dL", canonical)

	degC, ok := data.Synonym("°C")
	require.True(t, ok)
	assert.Equal(t, "Cel", degC)

	rule, ok := data.Rule("59260-0")
	require.True(t, ok)
	assert.Equal(t, "mmol/L", rule.FromUnit)
	assert.Equal(t, "g/dL", rule.ToUnit)
	assert.Equal(t, "718-7", rule.ToLoinc)
	assert.Equal(t, "1.61", rule.Factor.String())

	_, ok = data.Loinc("does-not-exist")
	assert.False(t, ok)
}

func TestLoad_ConversionRuleOverridesLoincUnit(t *testing.T) {
	data, err := Load(testPaths(), zerolog.Nop())
	require.NoError(t, err)

	core, ok := data.Loinc("8329-5")
	require.True(t, ok)
	assert.Equal(t, "[degF]", core.ExampleUCUMUnit)
	assert.Equal(t, "Body temperature - Core", core.Display)

	created, ok := data.Loinc("2243-4")
	require.True(t, ok, "rule target must be inserted into the LOINC mapping")
	assert.Equal(t, "ug/(24.h)", created.ExampleUCUMUnit)
	assert.Empty(t, created.Display)
}

func TestLoad_ArbitraryUnitSubstitution(t *testing.T) {
	data, err := Load(testPaths(), zerolog.Nop())
	require.NoError(t, err)

	tests := []struct {
		code string
		want string
	}{
		{"5196-1", "U/mL"},
		{"5048-4", "{titer}"}, // second of "Index; titer"
		{"20507-0", "[arb'U]"},
	}
	for _, tt := range tests {
		entry, ok := data.Loinc(tt.code)
		require.True(t, ok, tt.code)
		assert.Equal(t, tt.want, entry.ExampleUCUMUnit, tt.code)
	}
}

func TestLoad_FileMissing(t *testing.T) {
	paths := testPaths()
	paths.Synonyms = filepath.Join(t.TempDir(), "nope.tsv")

	_, err := Load(paths, zerolog.Nop())
	require.Error(t, err)

	var lf *LoadFailure
	require.True(t, errors.As(err, &lf))
	assert.Equal(t, FileMissing, lf.Kind)
	assert.Equal(t, TableSynonyms, lf.Table)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoad_MissingColumn(t *testing.T) {
	paths := testPaths()
	paths.Arbitrary = writeFile(t, "arbitrary.tsv", "FROM\tTO_UNIT\nU/mL\tU/mL\n")

	_, err := Load(paths, zerolog.Nop())

	var lf *LoadFailure
	require.True(t, errors.As(err, &lf))
	assert.Equal(t, ParseError, lf.Kind)
	assert.Equal(t, 1, lf.Row)
	assert.Contains(t, err.Error(), "FROM_UNIT")
}

func TestLoad_InvalidFactor(t *testing.T) {
	paths := testPaths()
	paths.Conversions = writeFile(t, "conversion.tsv",
		"FROM_LOINC\tFROM_UNIT\tTO_UNIT\tFACTOR\tTO_LOINC\n"+
			"59260-0\tmmol/L\tg/dL\t1.61\t718-7\n"+
			"8329-5\t[degF]\t[degF]\tone\t8329-5\n")

	_, err := Load(paths, zerolog.Nop())

	var lf *LoadFailure
	require.True(t, errors.As(err, &lf))
	assert.Equal(t, ParseError, lf.Kind)
	assert.Equal(t, TableConversions, lf.Table)
	assert.Equal(t, 3, lf.Row)
}

func TestLoad_InvalidUnits(t *testing.T) {
	tests := []struct {
		name  string
		paths func(t *testing.T) Paths
		table string
		row   int
	}{
		{"rule from unit", func(t *testing.T) Paths {
			p := testPaths()
			p.Conversions = writeFile(t, "conversion.tsv",
				"FROM_LOINC\tFROM_UNIT\tTO_UNIT\tFACTOR\tTO_LOINC\n"+
					"59260-0\tmmol/L\tg/dL\t1.61\t718-7\n"+
					"14715-7\tnmol/(24.h\tug/(24.h)\t0.2724\t2243-4\n")
			return p
		}, TableConversions, 3},
		{"rule to unit", func(t *testing.T) Paths {
			p := testPaths()
			p.Conversions = writeFile(t, "conversion.tsv",
				"FROM_LOINC\tFROM_UNIT\tTO_UNIT\tFACTOR\tTO_LOINC\n59260-0\tmmol/L\tg/dL/\t1.61\t718-7\n")
			return p
		}, TableConversions, 2},
		{"loinc example unit", func(t *testing.T) Paths {
			p := testPaths()
			p.Loinc = writeFile(t, "Loinc.csv",
				"LOINC_NUM,EXAMPLE_UCUM_UNITS\n718-7,g/dL\n2345-7,mg/dl/\n")
			return p
		}, TableLoinc, 3},
		{"synonym target", func(t *testing.T) Paths {
			p := testPaths()
			p.Synonyms = writeFile(t, "synonyms.tsv", "NOT_UCUM\tUCUM\ng/dl\tgrams/dL\n")
			return p
		}, TableSynonyms, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.paths(t), zerolog.Nop())
			require.Error(t, err)

			var lf *LoadFailure
			require.True(t, errors.As(err, &lf))
			assert.Equal(t, ParseError, lf.Kind)
			assert.Equal(t, tt.table, lf.Table)
			assert.Equal(t, tt.row, lf.Row)
			assert.True(t, errors.Is(err, ucum.ErrInvalidUnit))
		})
	}
}

func TestLoad_MissingTargetColumn(t *testing.T) {
	paths := testPaths()
	paths.Conversions = writeFile(t, "conversion.tsv",
		"FROM_LOINC\tFROM_UNIT\tTO_UNIT\tFACTOR\n59260-0\tmmol/L\tg/dL\t1.61\n")

	_, err := Load(paths, zerolog.Nop())

	var lf *LoadFailure
	require.True(t, errors.As(err, &lf))
	assert.Equal(t, ParseError, lf.Kind)
	assert.Contains(t, err.Error(), "TARGET_LOINC")
}

func TestLoad_TargetLoincColumn(t *testing.T) {
	paths := testPaths()
	paths.Conversions = writeFile(t, "conversion.tsv",
		"FROM_LOINC\tFROM_UNIT\tTO_UNIT\tFACTOR\tTARGET_LOINC\n59260-0\tmmol/L\tg/dL\t1.61\t718-7\n")

	data, err := Load(paths, zerolog.Nop())
	require.NoError(t, err)

	rule, ok := data.Rule("59260-0")
	require.True(t, ok)
	assert.Equal(t, "718-7", rule.ToLoinc)
}

func TestLoad_EmptyLoincCode(t *testing.T) {
	paths := testPaths()
	paths.Loinc = writeFile(t, "Loinc.csv",
		"LOINC_NUM,EXAMPLE_UCUM_UNITS\n718-7,g/dL\n,mg/dL\n")

	_, err := Load(paths, zerolog.Nop())

	var lf *LoadFailure
	require.True(t, errors.As(err, &lf))
	assert.Equal(t, ParseError, lf.Kind)
	assert.Equal(t, 3, lf.Row)
}

func TestLoad_RowAfterMultilineField(t *testing.T) {
	paths := testPaths()
	paths.Loinc = writeFile(t, "Loinc.csv",
		"LOINC_NUM,EXAMPLE_UCUM_UNITS,LONG_COMMON_NAME\n"+
			"718-7,g/dL,\"Hemoglobin\n[Mass/volume]\nin Blood\"\n"+
			",mg/dL,Glucose\n")

	_, err := Load(paths, zerolog.Nop())

	var lf *LoadFailure
	require.True(t, errors.As(err, &lf))
	assert.Equal(t, 5, lf.Row)
}

func TestReadTable_Lines(t *testing.T) {
	path := writeFile(t, "t.csv", "A,B\n1,\"x\ny\"\n2,z\n")

	tbl, err := ReadTable("t", path)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, 2, tbl.Line(0))
	assert.Equal(t, 4, tbl.Line(1))
	assert.Equal(t, "x\ny", tbl.Get(0, "B"))
}

func TestLoad_MalformedCSV(t *testing.T) {
	paths := testPaths()
	paths.Loinc = writeFile(t, "Loinc.csv", "LOINC_NUM,EXAMPLE_UCUM_UNITS\n\"718-7,g/dL\n")

	_, err := Load(paths, zerolog.Nop())

	var lf *LoadFailure
	require.True(t, errors.As(err, &lf))
	assert.Equal(t, ParseError, lf.Kind)
	assert.Equal(t, TableLoinc, lf.Table)
}

func TestLoad_Workbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"LOINC_NUM", "EXAMPLE_UNITS", "EXAMPLE_UCUM_UNITS", "LONG_COMMON_NAME"},
		{"718-7", "g/dL", "g/dL", "Hemoglobin [Mass/volume] in Blood"},
		{"59260-0", "mmol/L", "mmol/L"},
		{"5196-1", "U/mL", "[arb'U]", "Hepatitis B virus surface Ag"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "Loinc.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	paths := testPaths()
	paths.Loinc = path
	data, err := Load(paths, zerolog.Nop())
	require.NoError(t, err)

	hgb, ok := data.Loinc("59260-0")
	require.True(t, ok)
	assert.Equal(t, "mmol/L", hgb.ExampleUCUMUnit)
	assert.Empty(t, hgb.Display)

	hbs, ok := data.Loinc("5196-1")
	require.True(t, ok)
	assert.Equal(t, "U/mL", hbs.ExampleUCUMUnit)
}

func TestReadTable_BOMAndShortRows(t *testing.T) {
	path := writeFile(t, "t.csv", "\ufeffA,B,C\n1,2\n")

	tbl, err := ReadTable("t", path)
	require.NoError(t, err)
	assert.True(t, tbl.Has("A"))
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, "2", tbl.Get(0, "B"))
	assert.Equal(t, "", tbl.Get(0, "C"))
	assert.Equal(t, "", tbl.Get(0, "D"))
}

func TestBuilder_AddRuleKeepsDisplay(t *testing.T) {
	data := NewBuilder().
		AddLoinc("718-7", "g/dL", "Hemoglobin").
		AddRule(ConversionRule{FromLoinc: "59260-0", FromUnit: "mmol/L", ToUnit: "g/L", ToLoinc: "718-7"}).
		Build()

	entry, ok := data.Loinc("718-7")
	require.True(t, ok)
	assert.Equal(t, "g/L", entry.ExampleUCUMUnit)
	assert.Equal(t, "Hemoglobin", entry.Display)

	// The rule source is not implicitly added to the LOINC mapping.
	_, ok = data.Loinc("59260-0")
	assert.False(t, ok)
}
