package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tradepanel/internal/config"
)

func writePopulationFixture(t *testing.T, dataDir string, rows [][]string) {
	t.Helper()

	// metadata banner above the header row
	padded := make([][]string, 0, populationSkip+len(rows))
	for range populationSkip {
		padded = append(padded, []string{"United Nations population estimates"})
	}
	padded = append(padded, rows...)
	writeWorkbook(t, filepath.Join(dataDir, "undesa", populationFile), populationSheet, padded)
}

func TestDemographicsJoinsIncomeAndPopulation(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	writeWorkbook(t, filepath.Join(dataDir, "world_bank", incomeFile), "Sheet1", [][]string{
		{"Economy", "Code", "Income group"},
		{"France", "FRA", "High income"},
		{"Malawi", "MWI", "Low income"},
		{"Somewhere", "SMW", ""},
	})
	writePopulationFixture(t, dataDir, [][]string{
		{"Region, subregion, country or area *", "ISO3 Alpha-code", "Type", "Year", "Total Population, as of 1 January (thousands)"},
		{"France", "FRA", "Country/Area", "1995", "58000"},
		{"Malawi", "MWI", "Country/Area", "1995", "1000"},
		{"Somewhere", "SMW", "Country/Area", "1995", "50"},
		{"Europe", "", "Region", "1995", "700000"},
		{"France", "FRA", "Country/Area", "2030", "65000"}, // outside window
	})

	cfg := &config.Config{
		DataDir:               dataDir,
		SmallCountryThreshold: 1_500_000,
	}
	records := Demographics(context.Background(), cfg, config.Period{Start: 1990, End: 1999})

	require.Len(t, records, 3)
	byISO := make(map[string]int)
	for i, rec := range records {
		byISO[rec.ISO] = i
	}

	fra := records[byISO["FRA"]]
	assert.Equal(t, 58_000_000.0, fra.Population)
	assert.Equal(t, "High income", fra.IncomeGroup)
	assert.True(t, fra.HasIncome)
	assert.False(t, fra.IsPoor)
	assert.False(t, fra.IsSmall)

	mwi := records[byISO["MWI"]]
	assert.True(t, mwi.IsPoor)
	assert.True(t, mwi.IsSmall)

	// listed in the income source with an empty group cell
	smw := records[byISO["SMW"]]
	assert.True(t, smw.HasIncome)
	assert.Equal(t, "", smw.IncomeGroup)
}

func TestDemographicsMissingIncomeSource(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	writePopulationFixture(t, dataDir, [][]string{
		{"Region, subregion, country or area *", "ISO3 Alpha-code", "Type", "Year", "Total Population, as of 1 January (thousands)"},
		{"France", "FRA", "Country/Area", "1995", "58000"},
	})

	cfg := &config.Config{DataDir: dataDir}
	records := Demographics(context.Background(), cfg, config.Period{Start: 1990, End: 1999})

	require.Len(t, records, 1)
	assert.False(t, records[0].HasIncome)
}

func TestDemographicsExcludesCodes(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	writeWorkbook(t, filepath.Join(dataDir, "world_bank", incomeFile), "Sheet1", [][]string{
		{"Economy", "Code", "Income group"},
		{"Yugoslavia", "YUG", "Low income"},
	})
	writePopulationFixture(t, dataDir, [][]string{
		{"Region, subregion, country or area *", "ISO3 Alpha-code", "Type", "Year", "Total Population, as of 1 January (thousands)"},
		{"Yugoslavia", "YUG", "Country/Area", "1995", "23000"},
	})

	cfg := &config.Config{DataDir: dataDir, ExcludedISOCodes: []string{"YUG"}}
	records := Demographics(context.Background(), cfg, config.Period{Start: 1990, End: 1999})
	assert.Empty(t, records)
}
