package panel

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/tradepanel/internal/config"
	"github.com/sells-group/tradepanel/internal/model"
)

// BuildInput carries the three loader outputs into the panel builder.
// ExportNames optionally supplies ISO -> country display names from the
// export source for Country backfill.
type BuildInput struct {
	Events       []EventAggregate
	Intensities  []IntensityAggregate
	Demographics []model.DemographicRecord
	ExportKeys   []model.CountryYear
	ExportNames  map[string]string

	Categories []model.Category
	Period     config.Period
}

// Build materializes the dense country-year panel:
//
//  1. candidate keys are the union of event, intensity, and export keys,
//     with the event source taking precedence on collision (an explicit
//     ordering, where the source format left it to join order);
//  2. candidates are intersected with the population key set, since
//     per-capita normalization is impossible without population;
//  3. disaster columns are left-joined and zero-filled (structural
//     zeros, not missing data), demographics are left-joined unfilled;
//  4. the composite disaster index is computed on the full joined panel;
//  5. rows are restricted to the window and to a non-empty Country.
func Build(in BuildInput) []model.PanelRow {
	popKeys := make(map[model.CountryYear]*model.DemographicRecord, len(in.Demographics))
	for i := range in.Demographics {
		rec := &in.Demographics[i]
		popKeys[model.CountryYear{ISO: rec.ISO, Year: rec.Year}] = rec
	}

	events := make(map[model.CountryYear]*EventAggregate, len(in.Events))
	for i := range in.Events {
		events[in.Events[i].Key] = &in.Events[i]
	}
	intensities := make(map[model.CountryYear]*IntensityAggregate, len(in.Intensities))
	for i := range in.Intensities {
		intensities[in.Intensities[i].Key] = &in.Intensities[i]
	}

	keys := candidateKeys(in, popKeys)
	countryNames := countryIndex(in)
	intensitySlugs := observedIntensitySlugs(in.Intensities)

	rows := make([]model.PanelRow, 0, len(keys))
	for _, key := range keys {
		row := model.PanelRow{
			ISO:          key.ISO,
			Year:         key.Year,
			Categories:   make(map[string]*model.CategoryStats, len(in.Categories)),
			Demographics: popKeys[key],
		}
		for _, cat := range in.Categories {
			stats := &model.CategoryStats{}
			if _, ok := intensitySlugs[cat.Slug]; ok {
				stats.HasIntensity = true
			}
			row.Categories[cat.Slug] = stats
		}

		if agg, ok := events[key]; ok {
			row.Country = agg.Country
			for slug, t := range agg.Totals {
				if stats, ok := row.Categories[slug]; ok {
					stats.Deaths = t.Deaths
					stats.Affected = t.Affected
					stats.Events = t.Events
				}
			}
		}
		if agg, ok := intensities[key]; ok {
			for slug, v := range agg.Intensity {
				if stats, ok := row.Categories[slug]; ok {
					stats.Intensity = v
				}
			}
		}
		if row.Country == "" {
			row.Country = countryNames[key.ISO]
		}

		rows = append(rows, row)
	}

	// The index is computed once on the full joined panel, before the
	// final window and Country restriction.
	applyDisasterIndex(rows, in.Categories, intensitySlugs)

	out := rows[:0]
	for _, row := range rows {
		if !in.Period.Contains(row.Year) || row.Country == "" {
			continue
		}
		out = append(out, row)
	}
	return out
}

// candidateKeys returns the union of source keys, event source first,
// intersected with the population key set, in deterministic order.
func candidateKeys(in BuildInput, popKeys map[model.CountryYear]*model.DemographicRecord) []model.CountryYear {
	seen := make(map[model.CountryYear]struct{})
	var keys []model.CountryYear
	add := func(key model.CountryYear) {
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		if _, ok := popKeys[key]; ok {
			keys = append(keys, key)
		}
	}

	for _, agg := range in.Events {
		add(agg.Key)
	}
	for _, agg := range in.Intensities {
		add(agg.Key)
	}
	for _, key := range in.ExportKeys {
		add(key)
	}

	sortKeys(keys)
	return keys
}

// countryIndex builds the ISO-level display name fallback, preferring
// the event source over the export source.
func countryIndex(in BuildInput) map[string]string {
	names := make(map[string]string)
	for iso, name := range in.ExportNames {
		if name != "" {
			names[iso] = name
		}
	}
	for _, agg := range in.Events {
		if agg.Country != "" {
			names[agg.Key.ISO] = agg.Country
		}
	}
	return names
}

func observedIntensitySlugs(aggs []IntensityAggregate) map[string]struct{} {
	slugs := make(map[string]struct{})
	for _, agg := range aggs {
		for slug := range agg.Intensity {
			slugs[slug] = struct{}{}
		}
	}
	return slugs
}

// applyDisasterIndex normalizes each category's intensity column by its
// panel-wide sample standard deviation and sums the normalized columns
// into the row's composite index. A zero or undefined deviation passes
// the raw value through.
func applyDisasterIndex(rows []model.PanelRow, cats []model.Category, intensitySlugs map[string]struct{}) {
	for _, cat := range cats {
		if _, ok := intensitySlugs[cat.Slug]; !ok {
			continue
		}
		values := make([]float64, 0, len(rows))
		for i := range rows {
			values = append(values, rows[i].Stats(cat.Slug).Intensity)
		}
		sd := stat.StdDev(values, nil)
		normalize := sd != 0 && !math.IsNaN(sd)
		for i := range rows {
			v := rows[i].Stats(cat.Slug).Intensity
			if normalize {
				v /= sd
			}
			rows[i].DisasterIndex += v
		}
	}
}

// SortRows orders panel rows by (ISO, Year) for stable emission.
func SortRows(rows []model.PanelRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ISO != rows[j].ISO {
			return rows[i].ISO < rows[j].ISO
		}
		return rows[i].Year < rows[j].Year
	})
}
