package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/tradepanel/internal/cache"
	"github.com/sells-group/tradepanel/internal/config"
	"github.com/sells-group/tradepanel/internal/loader"
	"github.com/sells-group/tradepanel/internal/model"
	"github.com/sells-group/tradepanel/internal/panel"
)

// BuildDisasters runs the disaster stage for every configured period:
// load both disaster sources and the demographics, aggregate,
// materialize the panel, derive significance flags, validate
// completeness, and cache the validated panel. A demographic coverage
// gap aborts only its own period.
func BuildDisasters(ctx context.Context, cfg *config.Config, store *cache.Store, clearCache bool) []PeriodResult {
	results := make([]PeriodResult, 0, len(cfg.Periods))
	for _, period := range cfg.Periods {
		res := PeriodResult{Period: period}
		rows, err := buildPeriodPanel(ctx, cfg, store, period, clearCache)
		if err != nil {
			res.Err = err
		}
		res.Rows = len(rows)
		results = append(results, res)
	}
	logResults("disasters", results)
	return results
}

func buildPeriodPanel(ctx context.Context, cfg *config.Config, store *cache.Store, period config.Period, clearCache bool) ([]model.PanelRow, error) {
	if clearCache {
		if err := store.ClearStage(ctx, cache.StageDisasters, period.Key()); err != nil {
			return nil, err
		}
	}

	hash := cache.ParamsHash(period, cfg.ExcludedISOCodes)
	var rows []model.PanelRow
	hit, err := store.Get(ctx, cache.StageDisasters, period.Key(), hash, &rows)
	if err != nil {
		return nil, err
	}
	if hit {
		zap.L().Info("disaster cache hit",
			zap.String("period", period.Key()),
			zap.Int("rows", len(rows)))
		return rows, nil
	}

	cats, err := model.ResolveCategories(cfg.DisasterCategories)
	if err != nil {
		return nil, err
	}

	events := loader.EMDATEvents(cfg, period)
	intensities := loader.GeoMetIntensity(cfg, period, cats)
	demographics := loader.Demographics(ctx, cfg, period)

	// The cached export table, when present, widens the candidate key
	// set; its absence is not an error at this stage.
	var (
		exportKeys  []model.CountryYear
		exportNames map[string]string
	)
	if exports, ok, err := cachedExports(ctx, cfg, store, period); err != nil {
		return nil, err
	} else if ok {
		exportNames = make(map[string]string)
		seen := make(map[model.CountryYear]struct{})
		for _, exp := range exports {
			key := exp.Key()
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				exportKeys = append(exportKeys, key)
			}
			if exp.Country != "" {
				exportNames[exp.ISO] = exp.Country
			}
		}
	}

	rows = panel.Build(panel.BuildInput{
		Events:       panel.AggregateEvents(events, cats),
		Intensities:  panel.AggregateIntensity(intensities),
		Demographics: demographics,
		ExportKeys:   exportKeys,
		ExportNames:  exportNames,
		Categories:   cats,
		Period:       period,
	})
	panel.DeriveSignificance(rows, cats)

	rows, err = panel.Validate(rows)
	if err != nil {
		return nil, err
	}
	panel.SortRows(rows)

	if err := store.Put(ctx, cache.StageDisasters, period.Key(), hash, rows); err != nil {
		return nil, err
	}
	return rows, nil
}
