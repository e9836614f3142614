package dataset

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tradepanel/internal/model"
)

var testCats = []model.Category{
	{Name: "Flood", Slug: "flood", GeoMetSuffix: "fld", Labels: []string{"Flood"}},
	{Name: "Storm", Slug: "storm", GeoMetSuffix: "str", Labels: []string{"Storm"}},
}

func testPanelRow(iso string, year int, pop float64, income string) model.PanelRow {
	return model.PanelRow{
		ISO: iso, Country: iso, Year: year,
		Categories: map[string]*model.CategoryStats{
			"flood": {Deaths: 10, Affected: 100, Events: 3},
			"storm": {Deaths: 0, Events: 0},
		},
		DisasterIndex: 1.5,
		Demographics: &model.DemographicRecord{
			ISO: iso, Year: year, Population: pop,
			IncomeGroup: income, HasIncome: true,
			IsPoor: income == "Low income",
		},
	}
}

func export(iso string, year int, product string, fob float64) model.ExportRecord {
	return model.ExportRecord{
		ISO: iso, Country: iso, Year: year,
		Scheme: "HS", ClassificationCode: "H0",
		ProductCode: product, FOBValue: fob,
		IsAgricultural: product <= "24",
	}
}

func TestBuildEconometricInnerJoin(t *testing.T) {
	t.Parallel()

	exports := []model.ExportRecord{
		export("FRA", 1985, "01", 100),
		export("FRA", 1986, "01", 110), // no panel row for 1986
		export("DEU", 1985, "01", 90),  // no panel row for DEU
	}
	panel := []model.PanelRow{testPanelRow("FRA", 1985, 58e6, "High income")}

	rows := BuildEconometric(exports, panel, testCats)
	require.Len(t, rows, 1)
	assert.Equal(t, "FRA", rows[0].Export.ISO)
	assert.Equal(t, 1985, rows[0].Export.Year)
}

func TestBuildEconometricDerivedColumns(t *testing.T) {
	t.Parallel()

	exports := []model.ExportRecord{export("FRA", 1985, "01", 100)}
	panel := []model.PanelRow{testPanelRow("FRA", 1985, 58e6, "High income")}

	rows := BuildEconometric(exports, panel, testCats)
	require.Len(t, rows, 1)
	row := rows[0]

	assert.InDelta(t, math.Log1p(3), row.LnTotalOccurrence, 1e-12)
	assert.InDelta(t, math.Log1p(10), row.LnTotalDeaths, 1e-12)
	assert.InDelta(t, math.Log1p(3), row.LnCount["flood"], 1e-12)
	assert.InDelta(t, 0, row.LnCount["storm"], 1e-12)
	assert.Equal(t, "High", row.IncomeGroupInternal)
	assert.InDelta(t, math.Log(58e6), row.LnPopulation, 1e-12)
	assert.False(t, row.HasDLnPopulation)
}

func TestBuildEconometricSizeGroups(t *testing.T) {
	t.Parallel()

	exports := []model.ExportRecord{
		export("FRA", 1985, "01", 100),
		export("MWI", 1985, "01", 10),
		export("LUX", 1985, "01", 5),
	}
	panel := []model.PanelRow{
		testPanelRow("FRA", 1985, 58e6, "High income"),
		testPanelRow("MWI", 1985, 8e6, "Low income"),
		testPanelRow("LUX", 1985, 4e5, "High income"),
	}

	rows := BuildEconometric(exports, panel, testCats)
	require.Len(t, rows, 3)

	byISO := make(map[string]Row)
	for _, row := range rows {
		byISO[row.Export.ISO] = row
	}
	assert.Equal(t, "Large", byISO["FRA"].SizeGroup)
	assert.Equal(t, "Small", byISO["MWI"].SizeGroup) // the median country is not Large
	assert.Equal(t, "Small", byISO["LUX"].SizeGroup)
	assert.Equal(t, "Low", byISO["MWI"].IncomeGroupInternal)
}

func TestBuildEconometricSizeGroupMedianWeighsProductRows(t *testing.T) {
	t.Parallel()

	// AAA exports five products, so its population enters the median
	// five times: the row-level median is 1e6, not the per-country 2e6,
	// and BBB lands strictly above it.
	exports := []model.ExportRecord{
		export("AAA", 1985, "01", 10),
		export("AAA", 1985, "02", 10),
		export("AAA", 1985, "03", 10),
		export("AAA", 1985, "04", 10),
		export("AAA", 1985, "05", 10),
		export("BBB", 1985, "01", 10),
		export("CCC", 1985, "01", 10),
	}
	panel := []model.PanelRow{
		testPanelRow("AAA", 1985, 1e6, "Low income"),
		testPanelRow("BBB", 1985, 2e6, "High income"),
		testPanelRow("CCC", 1985, 9e6, "High income"),
	}

	rows := BuildEconometric(exports, panel, testCats)
	require.Len(t, rows, 7)

	byISO := make(map[string]Row)
	for _, row := range rows {
		byISO[row.Export.ISO] = row
	}
	assert.Equal(t, "Small", byISO["AAA"].SizeGroup)
	assert.Equal(t, "Large", byISO["BBB"].SizeGroup)
	assert.Equal(t, "Large", byISO["CCC"].SizeGroup)
}

func TestBuildEconometricPopulationDiff(t *testing.T) {
	t.Parallel()

	exports := []model.ExportRecord{
		export("FRA", 1986, "01", 110),
		export("FRA", 1985, "01", 100),
		export("FRA", 1986, "02", 50),
	}
	panel := []model.PanelRow{
		testPanelRow("FRA", 1985, 58e6, "High income"),
		testPanelRow("FRA", 1986, 59e6, "High income"),
	}

	rows := BuildEconometric(exports, panel, testCats)
	require.Len(t, rows, 3)

	// sorted (ISO, product, Year): 01/1985, 01/1986, 02/1986
	assert.False(t, rows[0].HasDLnPopulation)
	require.True(t, rows[1].HasDLnPopulation)
	assert.InDelta(t, math.Log(59e6)-math.Log(58e6), rows[1].DLnPopulation, 1e-12)
	// first row of the 02 series has no predecessor
	assert.False(t, rows[2].HasDLnPopulation)
}

func TestWriteCSVColumnOrder(t *testing.T) {
	t.Parallel()

	exports := []model.ExportRecord{export("FRA", 1985, "01", 100)}
	panel := []model.PanelRow{testPanelRow("FRA", 1985, 58e6, "High income")}
	rows := BuildEconometric(exports, panel, testCats)

	path := filepath.Join(t.TempDir(), "econometric.csv")
	require.NoError(t, WriteCSV(path, rows, testCats))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	header := records[0]
	assert.Equal(t, Columns(testCats), header)
	require.Len(t, records[1], len(header))

	byCol := make(map[string]string, len(header))
	for i, col := range header {
		byCol[col] = records[1][i]
	}
	assert.Equal(t, "FRA", byCol["ISO"])
	assert.Equal(t, "1985", byCol["Year"])
	assert.Equal(t, "01", byCol["cmdCode"])
	assert.Equal(t, "true", byCol["is_agri"])
	assert.Equal(t, "10", byCol["flood_deaths"])
	assert.Equal(t, "3", byCol["flood_events"])
	assert.Equal(t, "0", byCol["flood_sig_median"])
	assert.Equal(t, "0", byCol["flood_sig_p90"])
	assert.Equal(t, "0", byCol["flood_geomet_sig_p90"])
	assert.Equal(t, "1.5", byCol["disaster_index"])
	assert.Equal(t, "High income", byCol["Income group"])
	assert.Equal(t, "false", byCol["is_poor_country"])
	assert.Equal(t, "", byCol["d_ln_population"])
}
