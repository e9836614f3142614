// Package pipeline orchestrates the per-period stages: export
// collection, disaster panel construction, and econometric dataset
// emission. Periods are processed sequentially and independently; a
// period's failure never aborts the others, and a run fails only when
// no period succeeds.
package pipeline

import (
	"go.uber.org/zap"

	"github.com/sells-group/tradepanel/internal/config"
)

// PeriodResult is one period's outcome for a stage.
type PeriodResult struct {
	Period config.Period
	Rows   int
	Err    error
}

// OK reports whether the period completed.
func (r PeriodResult) OK() bool { return r.Err == nil }

// Succeeded counts the completed periods.
func Succeeded(results []PeriodResult) int {
	var n int
	for _, r := range results {
		if r.OK() {
			n++
		}
	}
	return n
}

// logResults summarizes a stage's per-period outcomes.
func logResults(stage string, results []PeriodResult) {
	log := zap.L().With(zap.String("stage", stage))
	for _, r := range results {
		if r.OK() {
			log.Info("period complete",
				zap.String("period", r.Period.Key()),
				zap.Int("rows", r.Rows))
		} else {
			log.Error("period failed",
				zap.String("period", r.Period.Key()),
				zap.Error(r.Err))
		}
	}
}
