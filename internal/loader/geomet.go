package loader

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sells-group/tradepanel/internal/config"
	"github.com/sells-group/tradepanel/internal/iso"
	"github.com/sells-group/tradepanel/internal/model"
	"github.com/sells-group/tradepanel/internal/stata"
)

const geometFile = "IfoGAME_EMDAT.dta"

// geometProxies are the physical-impact proxy variable prefixes; each
// category's intensity on a row is the sum of its available proxies.
var geometProxies = []string{"killed_pop_", "affected_pop_", "damage_gdp_"}

// GeoMetIntensity loads the GeoMet physical-intensity panel for the
// period. Rows outside the window or with unusable ISO codes are
// dropped. A missing or undecodable file yields an empty result with an
// error log; intensity columns then stay unset for the whole period.
func GeoMetIntensity(cfg *config.Config, period config.Period, cats []model.Category) []model.IntensityRecord {
	path := filepath.Join(cfg.GeoMetDir(), geometFile)
	log := zap.L().With(zap.String("loader", "geomet"), zap.String("file", geometFile))

	f, err := stata.ReadFile(path)
	if err != nil {
		log.Error("load GeoMet intensity file", zap.Error(err))
		return nil
	}
	if _, ok := f.Column("iso"); !ok {
		log.Error("GeoMet file missing iso variable")
		return nil
	}
	if _, ok := f.Column("year"); !ok {
		log.Error("GeoMet file missing year variable")
		return nil
	}

	// Resolve which proxy variables actually exist per category so the
	// row loop does a plain lookup.
	proxyVars := make(map[string][]string, len(cats))
	for _, cat := range cats {
		if cat.GeoMetSuffix == "" {
			continue
		}
		var vars []string
		for _, prefix := range geometProxies {
			name := prefix + cat.GeoMetSuffix
			if _, ok := f.Column(name); ok {
				vars = append(vars, name)
			}
		}
		if len(vars) == 0 {
			log.Warn("no GeoMet proxy variables for category",
				zap.String("category", cat.Slug),
				zap.String("suffix", cat.GeoMetSuffix))
			continue
		}
		proxyVars[cat.Slug] = vars
	}
	if len(proxyVars) == 0 {
		log.Error("GeoMet file carries no usable proxy variables")
		return nil
	}

	excluded := iso.NewExclusionSet(cfg.ExcludedISOCodes)
	var records []model.IntensityRecord
	for row := range f.Rows {
		rawISO, ok := f.String(row, "iso")
		if !ok {
			continue
		}
		code, ok := iso.Clean(rawISO, excluded)
		if !ok {
			continue
		}
		yearF, ok := f.Float(row, "year")
		if !ok {
			continue
		}
		year := int(yearF)
		if !period.Contains(year) {
			continue
		}

		byCat := make(map[string]float64, len(proxyVars))
		for slug, vars := range proxyVars {
			var sum float64
			for _, name := range vars {
				if v, ok := f.Float(row, name); ok {
					sum += v
				}
			}
			byCat[slug] = sum
		}
		records = append(records, model.IntensityRecord{ISO: code, Year: year, ByCategory: byCat})
	}

	log.Info("GeoMet intensity rows loaded",
		zap.Int("rows", len(records)),
		zap.Int("categories", len(proxyVars)))
	return records
}
