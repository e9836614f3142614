// Package panel aggregates the disaster sources into country-year
// columns, materializes the dense panel, derives the per-year
// significance flags, and validates demographic completeness.
package panel

import (
	"sort"

	"github.com/sells-group/tradepanel/internal/model"
)

// CategoryTotals is one category's event-based column triplet on a
// country-year key.
type CategoryTotals struct {
	Deaths   float64
	Affected float64
	Events   int
}

// EventAggregate holds the event-based disaster columns for one
// country-year key. Totals only carries categories with at least one
// recorded event; absent categories are structural zeros.
type EventAggregate struct {
	Key     model.CountryYear
	Country string
	Totals  map[string]CategoryTotals
}

// IntensityAggregate holds the summed per-category physical intensity
// for one country-year key.
type IntensityAggregate struct {
	Key       model.CountryYear
	Intensity map[string]float64
}

// AggregateEvents groups event rows by (ISO, Year), summing deaths and
// affected persons and counting events per canonical category. Raw type
// labels outside the canonical set are dropped. The country display
// name is the first non-empty one seen for the key. Output order is
// deterministic (ISO, then Year).
func AggregateEvents(events []model.DisasterEvent, cats []model.Category) []EventAggregate {
	labelIdx := model.LabelIndex(cats)

	byKey := make(map[model.CountryYear]*EventAggregate)
	var order []model.CountryYear
	for _, ev := range events {
		slug, ok := model.SlugForLabel(labelIdx, ev.Type)
		if !ok {
			continue
		}
		key := model.CountryYear{ISO: ev.ISO, Year: ev.Year}
		agg, ok := byKey[key]
		if !ok {
			agg = &EventAggregate{Key: key, Totals: make(map[string]CategoryTotals)}
			byKey[key] = agg
			order = append(order, key)
		}
		if agg.Country == "" && ev.Country != "" {
			agg.Country = ev.Country
		}
		t := agg.Totals[slug]
		t.Deaths += ev.Deaths
		t.Affected += ev.Affected
		t.Events++
		agg.Totals[slug] = t
	}

	sortKeys(order)
	out := make([]EventAggregate, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// AggregateIntensity sums per-category row intensities by (ISO, Year).
// Output order is deterministic (ISO, then Year).
func AggregateIntensity(records []model.IntensityRecord) []IntensityAggregate {
	byKey := make(map[model.CountryYear]*IntensityAggregate)
	var order []model.CountryYear
	for _, rec := range records {
		key := model.CountryYear{ISO: rec.ISO, Year: rec.Year}
		agg, ok := byKey[key]
		if !ok {
			agg = &IntensityAggregate{Key: key, Intensity: make(map[string]float64)}
			byKey[key] = agg
			order = append(order, key)
		}
		for slug, v := range rec.ByCategory {
			agg.Intensity[slug] += v
		}
	}

	sortKeys(order)
	out := make([]IntensityAggregate, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

func sortKeys(keys []model.CountryYear) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ISO != keys[j].ISO {
			return keys[i].ISO < keys[j].ISO
		}
		return keys[i].Year < keys[j].Year
	})
}
