package panel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tradepanel/internal/model"
)

func panelRow(iso string, year int, deaths, pop float64) model.PanelRow {
	return model.PanelRow{
		ISO: iso, Country: iso, Year: year,
		Categories: map[string]*model.CategoryStats{
			"flood": {Deaths: deaths},
		},
		Demographics: &model.DemographicRecord{
			ISO: iso, Year: year, Population: pop, HasIncome: true,
		},
	}
}

var floodOnly = []model.Category{{Name: "Flood", Slug: "flood", GeoMetSuffix: "fld", Labels: []string{"Flood"}}}

func TestDeriveSignificanceTracksWithinYearRank(t *testing.T) {
	t.Parallel()

	// Identical absolute deaths, different population distributions per
	// year: the flags must follow within-year rank, not absolute value.
	rows := []model.PanelRow{
		// 1985: ratios 100/1e6, 100/2e6, 100/4e6, 100/8e6, 100/16e6
		panelRow("AAA", 1985, 100, 1e6),
		panelRow("BBB", 1985, 100, 2e6),
		panelRow("CCC", 1985, 100, 4e6),
		panelRow("DDD", 1985, 100, 8e6),
		panelRow("EEE", 1985, 100, 16e6),
		// 1986: same deaths, AAA now the most populous
		panelRow("AAA", 1986, 100, 16e6),
		panelRow("BBB", 1986, 100, 8e6),
		panelRow("CCC", 1986, 100, 4e6),
		panelRow("DDD", 1986, 100, 2e6),
		panelRow("EEE", 1986, 100, 1e6),
	}

	DeriveSignificance(rows, floodOnly)

	byKey := make(map[model.CountryYear]*model.CategoryStats)
	for i := range rows {
		byKey[rows[i].Key()] = rows[i].Stats("flood")
	}

	// AAA has the top ratio in 1985 but the bottom one in 1986.
	assert.True(t, byKey[model.CountryYear{ISO: "AAA", Year: 1985}].SigP90)
	assert.False(t, byKey[model.CountryYear{ISO: "AAA", Year: 1986}].SigP90)
	assert.True(t, byKey[model.CountryYear{ISO: "EEE", Year: 1986}].SigP90)
	assert.False(t, byKey[model.CountryYear{ISO: "EEE", Year: 1985}].SigP90)

	// median flags split the cross-section the same way
	assert.True(t, byKey[model.CountryYear{ISO: "BBB", Year: 1985}].SigMedian)
	assert.False(t, byKey[model.CountryYear{ISO: "DDD", Year: 1985}].SigMedian)
}

func TestDeriveSignificanceMedianCountryNotFlagged(t *testing.T) {
	t.Parallel()

	// Equal populations, deaths 100..500: the middle country's ratio is
	// the cross-section median itself and must stay below the strict
	// threshold. Only the two countries above the median are flagged.
	rows := []model.PanelRow{
		panelRow("AAA", 1985, 100, 1e6),
		panelRow("BBB", 1985, 200, 1e6),
		panelRow("CCC", 1985, 300, 1e6),
		panelRow("DDD", 1985, 400, 1e6),
		panelRow("EEE", 1985, 500, 1e6),
	}

	DeriveSignificance(rows, floodOnly)

	want := map[string]bool{"AAA": false, "BBB": false, "CCC": false, "DDD": true, "EEE": true}
	for i := range rows {
		assert.Equal(t, want[rows[i].ISO], rows[i].Stats("flood").SigMedian, rows[i].ISO)
	}

	// p90 threshold sits at 460 deaths-equivalent: only the top country
	// exceeds it.
	for i := range rows {
		assert.Equal(t, rows[i].ISO == "EEE", rows[i].Stats("flood").SigP90, rows[i].ISO)
	}
}

func TestDeriveSignificanceUndefinedRatio(t *testing.T) {
	t.Parallel()

	rows := []model.PanelRow{
		panelRow("AAA", 1985, 100, 0), // zero population: ratio undefined
		panelRow("BBB", 1985, 2000, 1e6),
	}

	DeriveSignificance(rows, floodOnly)

	aaa := rows[0].Stats("flood")
	assert.False(t, aaa.SigMedian)
	assert.False(t, aaa.SigP90)
	// absolute flags do not depend on population
	assert.False(t, aaa.SigAbs1000)
	assert.True(t, aaa.SigAnyDeaths)

	// BBB is the only defined ratio, so the p90 threshold equals its
	// own ratio and the strict comparison stays false.
	bbb := rows[1].Stats("flood")
	assert.True(t, bbb.SigAbs1000)
	assert.False(t, bbb.SigP90)
}

func TestDeriveSignificanceNoDefinedRatios(t *testing.T) {
	t.Parallel()

	rows := []model.PanelRow{
		panelRow("AAA", 1985, 10, 0),
		panelRow("BBB", 1985, 20, 0),
	}

	DeriveSignificance(rows, floodOnly)

	for i := range rows {
		stats := rows[i].Stats("flood")
		assert.False(t, stats.SigMedian)
		assert.False(t, stats.SigP90)
	}
}

func TestDeriveSignificanceIntensityP90(t *testing.T) {
	t.Parallel()

	rows := []model.PanelRow{
		panelRow("AAA", 1985, 0, 1e6),
		panelRow("BBB", 1985, 0, 1e6),
		panelRow("CCC", 1985, 0, 1e6),
	}
	for i, v := range []float64{10, 1, 0.5} {
		stats := rows[i].Stats("flood")
		stats.Intensity = v
		stats.HasIntensity = true
	}

	DeriveSignificance(rows, floodOnly)

	assert.True(t, rows[0].Stats("flood").GeoMetSigP90)
	assert.False(t, rows[1].Stats("flood").GeoMetSigP90)
	assert.False(t, rows[2].Stats("flood").GeoMetSigP90)

	// extreme indicators mirror the p90 flags
	require.True(t, rows[0].Stats("flood").ExtremeGeoMet())
	assert.Equal(t, rows[0].Stats("flood").SigP90, rows[0].Stats("flood").ExtremeEMDAT())
}
