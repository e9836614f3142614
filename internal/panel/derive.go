package panel

import (
	"math"
	"sort"

	"github.com/sells-group/tradepanel/internal/model"
)

// DeriveSignificance computes the per-category significance and
// extreme-event flags in place. The ratio-based thresholds (median and
// 90th percentile of deaths per capita) are cross-sectional: computed
// fresh within each Year group, over rows with a defined ratio only, so
// the same absolute death count can be significant in one year and not
// in another. A row's ratio is undefined when population is absent or
// zero; undefined rows never raise a ratio-based flag.
func DeriveSignificance(rows []model.PanelRow, cats []model.Category) {
	byYear := make(map[int][]int)
	for i := range rows {
		byYear[rows[i].Year] = append(byYear[rows[i].Year], i)
	}

	for _, idxs := range byYear {
		for _, cat := range cats {
			deriveYearCategory(rows, idxs, cat.Slug)
		}
	}
}

func deriveYearCategory(rows []model.PanelRow, idxs []int, slug string) {
	ratios := make([]float64, 0, len(idxs))
	intensities := make([]float64, 0, len(idxs))
	for _, i := range idxs {
		stats, ok := rows[i].Categories[slug]
		if !ok {
			continue
		}
		if r, ok := deathRatio(&rows[i], stats); ok {
			ratios = append(ratios, r)
		}
		if stats.HasIntensity {
			intensities = append(intensities, stats.Intensity)
		}
	}

	median := quantileOr(ratios, 0.5, 0)
	p90 := quantileOr(ratios, 0.9, 0)
	intensityP90 := quantileOr(intensities, 0.9, 0)

	for _, i := range idxs {
		stats, ok := rows[i].Categories[slug]
		if !ok {
			continue
		}
		stats.SigAbs1000 = stats.Deaths > 1000
		stats.SigAnyDeaths = stats.Deaths > 0
		if r, ok := deathRatio(&rows[i], stats); ok {
			stats.SigMedian = r > median
			stats.SigP90 = r > p90
		}
		if stats.HasIntensity {
			stats.GeoMetSigP90 = stats.Intensity > intensityP90
		}
	}
}

// deathRatio returns the category's deaths-per-capita ratio; zero or
// missing population makes the ratio undefined rather than infinite.
func deathRatio(row *model.PanelRow, stats *model.CategoryStats) (float64, bool) {
	if row.Demographics == nil || row.Demographics.Population <= 0 {
		return 0, false
	}
	return stats.Deaths / row.Demographics.Population, true
}

// quantileOr returns the p-quantile of values, or def when there are no
// values.
func quantileOr(values []float64, p, def float64) float64 {
	if len(values) == 0 {
		return def
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return quantileLinear(sorted, p)
}

// quantileLinear interpolates between the order statistics of a sorted
// slice at fidx = p*(n-1), the estimator the source datasets were built
// with. The position matters twice over: a step quantile would let no
// row strictly exceed its own year's p90, and an fidx = p*n position
// shifts the median below the middle order statistic on odd-sized
// cross-sections, flagging the median row against itself.
func quantileLinear(sorted []float64, p float64) float64 {
	fidx := p * float64(len(sorted)-1)
	lo := int(math.Floor(fidx))
	hi := int(math.Ceil(fidx))
	if lo == hi {
		return sorted[lo]
	}
	frac := fidx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
