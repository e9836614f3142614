package dataset

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tradepanel/internal/model"
)

// Columns returns the ordered output header: the export grain, the
// per-category disaster columns, the demographic covariates, then the
// derived regression columns.
func Columns(cats []model.Category) []string {
	cols := []string{"ISO", "Country", "Year", "cmdCode", "fobvalue", "is_agri"}
	for _, cat := range cats {
		cols = append(cols,
			cat.Slug+"_deaths",
			cat.Slug+"_affected",
			cat.Slug+"_events",
			cat.Slug+"_intensity",
		)
	}
	cols = append(cols, "disaster_index")
	for _, cat := range cats {
		cols = append(cols,
			cat.Slug+"_sig_median",
			cat.Slug+"_sig_p90",
			cat.Slug+"_sig_abs1000",
			cat.Slug+"_sig_anydeaths",
			cat.Slug+"_geomet_sig_p90",
			"extreme_"+cat.Slug+"_emdat",
			"extreme_"+cat.Slug+"_geomet",
		)
	}
	cols = append(cols,
		"Population", "is_poor_country", "is_small_country", "Income group",
		"ln_total_occurrence", "ln_total_deaths",
	)
	for _, cat := range cats {
		cols = append(cols, "ln_"+cat.Slug+"_count")
	}
	cols = append(cols,
		"income_group_internal", "size_group",
		"ln_population", "d_ln_population",
	)
	return cols
}

// WriteCSV writes the econometric table to path with the column order
// from Columns.
func WriteCSV(path string, rows []Row, cats []model.Category) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "dataset: create file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(Columns(cats)); err != nil {
		return eris.Wrap(err, "dataset: write header")
	}
	for i := range rows {
		if err := w.Write(buildRecord(&rows[i], cats)); err != nil {
			return eris.Wrap(err, "dataset: write row")
		}
	}
	return eris.Wrap(w.Error(), "dataset: flush rows")
}

func buildRecord(row *Row, cats []model.Category) []string {
	rec := []string{
		row.Export.ISO,
		row.Export.Country,
		strconv.Itoa(row.Export.Year),
		row.Export.ProductCode,
		formatFloat(row.Export.FOBValue),
		formatBool(row.Export.IsAgricultural),
	}
	for _, cat := range cats {
		stats := row.Panel.Stats(cat.Slug)
		rec = append(rec,
			formatFloat(stats.Deaths),
			formatFloat(stats.Affected),
			strconv.Itoa(stats.Events),
			formatFloat(stats.Intensity),
		)
	}
	rec = append(rec, formatFloat(row.Panel.DisasterIndex))
	for _, cat := range cats {
		stats := row.Panel.Stats(cat.Slug)
		rec = append(rec,
			formatFlag(stats.SigMedian),
			formatFlag(stats.SigP90),
			formatFlag(stats.SigAbs1000),
			formatFlag(stats.SigAnyDeaths),
			formatFlag(stats.GeoMetSigP90),
			formatFlag(stats.ExtremeEMDAT()),
			formatFlag(stats.ExtremeGeoMet()),
		)
	}

	demo := row.Panel.Demographics
	if demo != nil {
		rec = append(rec,
			formatFloat(demo.Population),
			formatBool(demo.IsPoor),
			formatBool(demo.IsSmall),
			demo.IncomeGroup,
		)
	} else {
		rec = append(rec, "", "", "", "")
	}

	rec = append(rec,
		formatFloat(row.LnTotalOccurrence),
		formatFloat(row.LnTotalDeaths),
	)
	for _, cat := range cats {
		rec = append(rec, formatFloat(row.LnCount[cat.Slug]))
	}
	rec = append(rec, row.IncomeGroupInternal, row.SizeGroup, formatFloat(row.LnPopulation))
	if row.HasDLnPopulation {
		rec = append(rec, formatFloat(row.DLnPopulation))
	} else {
		rec = append(rec, "")
	}
	return rec
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBool(v bool) string {
	return strconv.FormatBool(v)
}

// formatFlag renders a significance indicator as 1/0 for downstream
// regression tooling.
func formatFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
