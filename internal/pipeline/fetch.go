package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/tradepanel/internal/config"
	"github.com/sells-group/tradepanel/pkg/comtrade"
)

// FetchMissingExports downloads export years missing from the data
// directory for every configured period. Quota exhaustion halts further
// fetching for the remainder of the run but keeps everything already
// written; the incomplete state is reported, not treated as an error.
func FetchMissingExports(ctx context.Context, cfg *config.Config) (quotaExceeded bool, err error) {
	client := comtrade.NewClient(cfg.Comtrade)
	log := zap.L().With(zap.String("stage", "fetch"))

	for _, period := range cfg.Periods {
		res, err := client.FetchMissing(ctx, cfg.ExportsDir(), period)
		if err != nil {
			return false, err
		}
		if res.QuotaExceeded {
			log.Warn("fetch incomplete, quota exhausted",
				zap.String("period", period.Key()),
				zap.Ints("years_fetched", res.YearsFetched))
			return true, nil
		}
		log.Info("period fetch complete",
			zap.String("period", period.Key()),
			zap.Ints("years_fetched", res.YearsFetched))
	}
	return false, nil
}
