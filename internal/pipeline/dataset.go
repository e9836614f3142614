package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tradepanel/internal/cache"
	"github.com/sells-group/tradepanel/internal/config"
	"github.com/sells-group/tradepanel/internal/dataset"
	"github.com/sells-group/tradepanel/internal/iso"
	"github.com/sells-group/tradepanel/internal/model"
)

// BuildDataset emits the econometric CSV for every period whose export
// and disaster stages are both cached. A missing stage fails the
// period; the caller is expected to have run the earlier stages first.
func BuildDataset(ctx context.Context, cfg *config.Config, store *cache.Store) []PeriodResult {
	results := make([]PeriodResult, 0, len(cfg.Periods))
	for _, period := range cfg.Periods {
		res := PeriodResult{Period: period}
		rows, err := buildPeriodDataset(ctx, cfg, store, period)
		if err != nil {
			res.Err = err
		}
		res.Rows = rows
		results = append(results, res)
	}
	logResults("dataset", results)
	return results
}

func buildPeriodDataset(ctx context.Context, cfg *config.Config, store *cache.Store, period config.Period) (int, error) {
	exports, ok, err := cachedExports(ctx, cfg, store, period)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, eris.Errorf("pipeline: no cached exports for period %s, run the exports stage first", period)
	}

	hash := cache.ParamsHash(period, cfg.ExcludedISOCodes)
	var panelRows []model.PanelRow
	hit, err := store.Get(ctx, cache.StageDisasters, period.Key(), hash, &panelRows)
	if err != nil {
		return 0, err
	}
	if !hit {
		return 0, eris.Errorf("pipeline: no cached disaster panel for period %s, run the disasters stage first", period)
	}

	cats, err := model.ResolveCategories(cfg.DisasterCategories)
	if err != nil {
		return 0, err
	}

	// Cached rows may predate a config change the params hash does not
	// cover, so the codes are normalized once more before the join.
	excluded := iso.NewExclusionSet(cfg.ExcludedISOCodes)
	kept := exports[:0]
	for _, exp := range exports {
		code, ok := iso.Clean(exp.ISO, excluded)
		if !ok {
			continue
		}
		exp.ISO = code
		kept = append(kept, exp)
	}

	rows := dataset.BuildEconometric(kept, panelRows, cats)
	if len(rows) == 0 {
		return 0, eris.Errorf("pipeline: empty econometric join for period %s", period)
	}

	if err := os.MkdirAll(cfg.DatasetsDir, 0o755); err != nil {
		return 0, eris.Wrap(err, "pipeline: create datasets dir")
	}
	path := filepath.Join(cfg.DatasetsDir, fmt.Sprintf("econometric_dataset_%s.csv", period.Key()))
	if err := dataset.WriteCSV(path, rows, cats); err != nil {
		return 0, err
	}

	zap.L().Info("econometric dataset written",
		zap.String("period", period.Key()),
		zap.String("path", path),
		zap.Int("rows", len(rows)))
	return len(rows), nil
}
