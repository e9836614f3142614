package panel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tradepanel/internal/config"
	"github.com/sells-group/tradepanel/internal/model"
)

func demographics(keys ...model.CountryYear) []model.DemographicRecord {
	recs := make([]model.DemographicRecord, 0, len(keys))
	for _, key := range keys {
		recs = append(recs, model.DemographicRecord{
			ISO: key.ISO, Year: key.Year,
			Population: 1_000_000, IncomeGroup: "High income", HasIncome: true,
		})
	}
	return recs
}

func TestBuildRestrictsToPopulationKeys(t *testing.T) {
	t.Parallel()

	cats := model.DefaultCategories()
	in := BuildInput{
		Events: []EventAggregate{
			{Key: model.CountryYear{ISO: "FRA", Year: 1985}, Country: "France",
				Totals: map[string]CategoryTotals{"flood": {Deaths: 35, Events: 3}}},
			{Key: model.CountryYear{ISO: "XKX", Year: 1985}, Country: "Kosovo",
				Totals: map[string]CategoryTotals{"flood": {Deaths: 5, Events: 1}}},
		},
		Demographics: demographics(model.CountryYear{ISO: "FRA", Year: 1985}),
		Categories:   cats,
		Period:       config.Period{Start: 1979, End: 2000},
	}

	rows := Build(in)
	require.Len(t, rows, 1)
	assert.Equal(t, "FRA", rows[0].ISO)
	assert.Equal(t, 35.0, rows[0].Stats("flood").Deaths)
	assert.NotNil(t, rows[0].Demographics)
}

func TestBuildZeroFillsAbsentCategories(t *testing.T) {
	t.Parallel()

	in := BuildInput{
		Events: []EventAggregate{
			{Key: model.CountryYear{ISO: "FRA", Year: 1985}, Country: "France",
				Totals: map[string]CategoryTotals{"flood": {Deaths: 1, Events: 1}}},
		},
		Demographics: demographics(model.CountryYear{ISO: "FRA", Year: 1985}),
		Categories:   model.DefaultCategories(),
		Period:       config.Period{Start: 1979, End: 2000},
	}

	rows := Build(in)
	require.Len(t, rows, 1)

	quake := rows[0].Stats("earthquake")
	assert.Equal(t, 0.0, quake.Deaths)
	assert.Equal(t, 0, quake.Events)
	assert.Equal(t, 0.0, quake.Intensity)
}

func TestBuildCountryBackfillPrefersEventSource(t *testing.T) {
	t.Parallel()

	keyA := model.CountryYear{ISO: "FRA", Year: 1985}
	keyB := model.CountryYear{ISO: "FRA", Year: 1986}
	in := BuildInput{
		Events: []EventAggregate{
			{Key: keyA, Country: "France", Totals: map[string]CategoryTotals{}},
		},
		Intensities: []IntensityAggregate{
			{Key: keyB, Intensity: map[string]float64{"flood": 1}},
		},
		ExportNames:  map[string]string{"FRA": "France (Comtrade)"},
		Demographics: demographics(keyA, keyB),
		Categories:   model.DefaultCategories(),
		Period:       config.Period{Start: 1979, End: 2000},
	}

	rows := Build(in)
	require.Len(t, rows, 2)
	// both rows resolve through the event source's name, not the export alias
	assert.Equal(t, "France", rows[0].Country)
	assert.Equal(t, "France", rows[1].Country)
}

func TestBuildDisasterIndexNormalizesByStdDev(t *testing.T) {
	t.Parallel()

	// Earthquake intensities 4, 0, 2 have sample std-dev 2; the flood
	// column is constant at 7, so it passes through unnormalized.
	keys := []model.CountryYear{
		{ISO: "AAA", Year: 1985}, {ISO: "BBB", Year: 1985}, {ISO: "CCC", Year: 1985},
	}
	in := BuildInput{
		Events: []EventAggregate{
			{Key: keys[0], Country: "A", Totals: map[string]CategoryTotals{}},
			{Key: keys[1], Country: "B", Totals: map[string]CategoryTotals{}},
			{Key: keys[2], Country: "C", Totals: map[string]CategoryTotals{}},
		},
		Intensities: []IntensityAggregate{
			{Key: keys[0], Intensity: map[string]float64{"earthquake": 4, "flood": 7}},
			{Key: keys[1], Intensity: map[string]float64{"earthquake": 0, "flood": 7}},
			{Key: keys[2], Intensity: map[string]float64{"earthquake": 2, "flood": 7}},
		},
		Demographics: demographics(keys...),
		Categories:   model.DefaultCategories(),
		Period:       config.Period{Start: 1979, End: 2000},
	}

	rows := Build(in)
	require.Len(t, rows, 3)

	assert.InDelta(t, 4.0/2.0+7.0, rows[0].DisasterIndex, 1e-12)
	assert.InDelta(t, 0.0/2.0+7.0, rows[1].DisasterIndex, 1e-12)
	assert.InDelta(t, 2.0/2.0+7.0, rows[2].DisasterIndex, 1e-12)
}

func TestBuildDropsRowsWithoutCountryName(t *testing.T) {
	t.Parallel()

	key := model.CountryYear{ISO: "FRA", Year: 1985}
	in := BuildInput{
		Intensities: []IntensityAggregate{
			{Key: key, Intensity: map[string]float64{"flood": 1}},
		},
		Demographics: demographics(key),
		Categories:   model.DefaultCategories(),
		Period:       config.Period{Start: 1979, End: 2000},
	}

	// the intensity source carries no display name and nothing else
	// covers the code
	rows := Build(in)
	assert.Empty(t, rows)
}
