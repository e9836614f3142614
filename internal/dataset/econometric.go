// Package dataset joins the export table with the disaster panel into
// the (ISO, Year, ProductCode) econometric table and writes it as an
// ordered-column CSV.
package dataset

import (
	"math"
	"sort"
	"strings"

	"github.com/sells-group/tradepanel/internal/model"
)

// highIncomeGroups collapse to the binary internal classification.
var highIncomeGroups = map[string]struct{}{
	"high income":         {},
	"upper middle income": {},
}

// Row is one emitted econometric observation: an export record joined
// with its country-year panel row plus the derived regression columns.
type Row struct {
	Export model.ExportRecord
	Panel  model.PanelRow

	LnTotalOccurrence float64
	LnTotalDeaths     float64
	LnCount           map[string]float64 // category slug -> log1p(event count)

	IncomeGroupInternal string // High / Low
	SizeGroup           string // Large / Small, against the median population

	LnPopulation     float64
	DLnPopulation    float64 // first difference within (ISO, product)
	HasDLnPopulation bool    // false on each series' first observed year
}

// BuildEconometric inner-joins exports with the panel on (ISO, Year)
// and derives the log-transformed disaster aggregates and grouping
// columns. Output is sorted by (ISO, product code, Year) so the
// population first-difference is taken over consecutive years within
// each country-product series.
func BuildEconometric(exports []model.ExportRecord, panelRows []model.PanelRow, cats []model.Category) []Row {
	byKey := make(map[model.CountryYear]*model.PanelRow, len(panelRows))
	for i := range panelRows {
		byKey[panelRows[i].Key()] = &panelRows[i]
	}

	rows := make([]Row, 0, len(exports))
	for _, exp := range exports {
		panel, ok := byKey[exp.Key()]
		if !ok {
			continue
		}
		rows = append(rows, deriveRow(exp, *panel, cats))
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].Export, rows[j].Export
		if a.ISO != b.ISO {
			return a.ISO < b.ISO
		}
		if a.ProductCode != b.ProductCode {
			return a.ProductCode < b.ProductCode
		}
		return a.Year < b.Year
	})

	applySizeGroups(rows)
	applyPopulationDiffs(rows)
	return rows
}

func deriveRow(exp model.ExportRecord, panel model.PanelRow, cats []model.Category) Row {
	var totalEvents, totalDeaths float64
	lnCount := make(map[string]float64, len(cats))
	for _, cat := range cats {
		stats := panel.Stats(cat.Slug)
		totalEvents += float64(stats.Events)
		totalDeaths += stats.Deaths
		lnCount[cat.Slug] = math.Log1p(float64(stats.Events))
	}

	row := Row{
		Export:            exp,
		Panel:             panel,
		LnTotalOccurrence: math.Log1p(totalEvents),
		LnTotalDeaths:     math.Log1p(totalDeaths),
		LnCount:           lnCount,
	}
	if demo := panel.Demographics; demo != nil {
		row.IncomeGroupInternal = incomeGroupInternal(demo.IncomeGroup)
		if demo.Population > 0 {
			row.LnPopulation = math.Log(demo.Population)
		}
	}
	return row
}

func incomeGroupInternal(group string) string {
	if _, ok := highIncomeGroups[strings.ToLower(group)]; ok {
		return "High"
	}
	return "Low"
}

// applySizeGroups labels each row Large or Small against the median
// population over all joined rows. The median is row-level, not
// per-country: a country appearing with more products weighs
// proportionally more, matching how the emitted table is consumed.
func applySizeGroups(rows []Row) {
	var pops []float64
	for i := range rows {
		if demo := rows[i].Panel.Demographics; demo != nil {
			pops = append(pops, demo.Population)
		}
	}
	if len(pops) == 0 {
		return
	}
	sort.Float64s(pops)
	median := medianLinear(pops)

	for i := range rows {
		demo := rows[i].Panel.Demographics
		if demo == nil {
			continue
		}
		if demo.Population > median {
			rows[i].SizeGroup = "Large"
		} else {
			rows[i].SizeGroup = "Small"
		}
	}
}

// medianLinear interpolates the median of a sorted slice at
// fidx = 0.5*(n-1), the same estimator the panel derivations use.
func medianLinear(sorted []float64) float64 {
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// applyPopulationDiffs computes the log-population first difference
// within each (ISO, product code) series. Rows must already be sorted
// by (ISO, product, Year).
func applyPopulationDiffs(rows []Row) {
	for i := range rows {
		if i == 0 {
			continue
		}
		prev, cur := &rows[i-1], &rows[i]
		if prev.Export.ISO != cur.Export.ISO || prev.Export.ProductCode != cur.Export.ProductCode {
			continue
		}
		if prev.LnPopulation == 0 || cur.LnPopulation == 0 {
			continue
		}
		cur.DLnPopulation = cur.LnPopulation - prev.LnPopulation
		cur.HasDLnPopulation = true
	}
}
