package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tradepanel/internal/cache"
	"github.com/sells-group/tradepanel/internal/config"
	"github.com/sells-group/tradepanel/internal/loader"
	"github.com/sells-group/tradepanel/internal/model"
)

// CollectExports runs the export stage for every configured period:
// read the cached table if present, else load and validate the source
// CSVs and cache the result. A period with no loadable export rows
// fails without aborting the run.
func CollectExports(ctx context.Context, cfg *config.Config, store *cache.Store, clearCache bool) []PeriodResult {
	results := make([]PeriodResult, 0, len(cfg.Periods))
	for _, period := range cfg.Periods {
		res := PeriodResult{Period: period}
		records, err := collectPeriodExports(ctx, cfg, store, period, clearCache)
		if err != nil {
			res.Err = err
		}
		res.Rows = len(records)
		results = append(results, res)
	}
	logResults("exports", results)
	return results
}

func collectPeriodExports(ctx context.Context, cfg *config.Config, store *cache.Store, period config.Period, clearCache bool) ([]model.ExportRecord, error) {
	if clearCache {
		if err := store.ClearStage(ctx, cache.StageExports, period.Key()); err != nil {
			return nil, err
		}
	}

	hash := cache.ParamsHash(period, cfg.ExcludedISOCodes)
	var records []model.ExportRecord
	hit, err := store.Get(ctx, cache.StageExports, period.Key(), hash, &records)
	if err != nil {
		return nil, err
	}
	if hit {
		zap.L().Info("export cache hit",
			zap.String("period", period.Key()),
			zap.Int("rows", len(records)))
		return records, nil
	}

	records = loader.Exports(cfg, period)
	if len(records) == 0 {
		return nil, eris.Errorf("pipeline: no export rows for period %s", period)
	}
	if err := store.Put(ctx, cache.StageExports, period.Key(), hash, records); err != nil {
		return nil, err
	}
	return records, nil
}

// cachedExports reads a period's export table from the cache without
// recomputing. Returns ok=false on a miss.
func cachedExports(ctx context.Context, cfg *config.Config, store *cache.Store, period config.Period) ([]model.ExportRecord, bool, error) {
	hash := cache.ParamsHash(period, cfg.ExcludedISOCodes)
	var records []model.ExportRecord
	hit, err := store.Get(ctx, cache.StageExports, period.Key(), hash, &records)
	if err != nil || !hit {
		return nil, false, err
	}
	return records, true, nil
}
