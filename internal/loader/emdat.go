package loader

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/tradepanel/internal/config"
	"github.com/sells-group/tradepanel/internal/fetcher"
	"github.com/sells-group/tradepanel/internal/iso"
	"github.com/sells-group/tradepanel/internal/model"
)

const (
	emdatEventFile      = "EM-DAT 1979-2000.xlsx"
	emdatAggregateFile  = "EM-DAT countries 2000+.xlsx"
	emdatEventSheet     = "EM-DAT Data"
	emdatEraBoundary    = 2000
	emdatYearSentinel   = "#date +occurred"
	emdatUnknownType    = "Unknown"
	emdatMalformedRowIx = 1 // second row of the aggregated file repeats header metadata
)

// EMDATEvents loads EM-DAT disaster rows for the period, normalized to
// the common event shape. Years up to and including 2000 come from the
// event-level workbook (one row per reported event, Year derived from
// "Start Year"); later years come from the pre-aggregated country-year
// workbook. Either source file may be absent: the era contributes
// nothing and an error is logged, but the loader does not abort.
func EMDATEvents(cfg *config.Config, period config.Period) []model.DisasterEvent {
	excluded := iso.NewExclusionSet(cfg.ExcludedISOCodes)

	var events []model.DisasterEvent
	if period.Start <= emdatEraBoundary {
		events = append(events, emdatEventEra(cfg, period, excluded)...)
	}
	if period.End > emdatEraBoundary {
		events = append(events, emdatAggregateEra(cfg, period, excluded)...)
	}
	return events
}

// emdatEventEra reads the 1979-2000 event-level sheet.
func emdatEventEra(cfg *config.Config, period config.Period, excluded iso.ExclusionSet) []model.DisasterEvent {
	path := filepath.Join(cfg.EMDATDir(), emdatEventFile)
	log := zap.L().With(zap.String("loader", "emdat"), zap.String("file", emdatEventFile))

	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: emdatEventSheet})
	if err != nil {
		log.Error("load EM-DAT event workbook", zap.Error(err))
		return nil
	}
	if len(rows) == 0 {
		log.Error("EM-DAT event workbook is empty")
		return nil
	}

	colIdx := mapColumns(rows[0])
	if missing := missingColumns(colIdx, "ISO", "Start Year"); len(missing) > 0 {
		log.Error("EM-DAT event workbook missing columns", zap.Strings("missing", missing))
		return nil
	}
	warnMissingEMDATColumns(log, colIdx)

	var events []model.DisasterEvent
	for _, rec := range rows[1:] {
		year := parseYearOr(getCol(rec, colIdx, "Start Year"), 0)
		if year == 0 || year < period.Start || year > min(period.End, emdatEraBoundary) {
			continue
		}
		code, ok := iso.Clean(getCol(rec, colIdx, "ISO"), excluded)
		if !ok {
			continue
		}
		events = append(events, model.DisasterEvent{
			ISO:      code,
			Country:  strings.TrimSpace(getCol(rec, colIdx, "Country")),
			Year:     year,
			Type:     disasterTypeOr(rec, colIdx),
			Deaths:   parseFloat64Or(getCol(rec, colIdx, "Total Deaths"), 0),
			Affected: parseFloat64Or(getCol(rec, colIdx, "Total Affected"), 0),
		})
	}

	log.Info("EM-DAT event rows loaded", zap.Int("rows", len(events)))
	return events
}

// emdatAggregateEra reads the 2000+ country-year sheet, skipping the
// malformed second header row and dropping sentinel rows whose year
// column holds a metadata placeholder.
func emdatAggregateEra(cfg *config.Config, period config.Period, excluded iso.ExclusionSet) []model.DisasterEvent {
	path := filepath.Join(cfg.EMDATDir(), emdatAggregateFile)
	log := zap.L().With(zap.String("loader", "emdat"), zap.String("file", emdatAggregateFile))

	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{DropRows: []int{emdatMalformedRowIx}})
	if err != nil {
		log.Error("load EM-DAT aggregate workbook", zap.Error(err))
		return nil
	}
	if len(rows) == 0 {
		log.Error("EM-DAT aggregate workbook is empty")
		return nil
	}

	colIdx := mapColumns(rows[0])
	if missing := missingColumns(colIdx, "ISO", "Year"); len(missing) > 0 {
		log.Error("EM-DAT aggregate workbook missing columns", zap.Strings("missing", missing))
		return nil
	}
	warnMissingEMDATColumns(log, colIdx)

	var events []model.DisasterEvent
	for _, rec := range rows[1:] {
		rawYear := strings.TrimSpace(getCol(rec, colIdx, "Year"))
		if strings.EqualFold(rawYear, emdatYearSentinel) {
			continue
		}
		year := parseYearOr(rawYear, 0)
		if year == 0 || year <= emdatEraBoundary || !period.Contains(year) {
			continue
		}
		code, ok := iso.Clean(getCol(rec, colIdx, "ISO"), excluded)
		if !ok {
			continue
		}
		events = append(events, model.DisasterEvent{
			ISO:      code,
			Country:  strings.TrimSpace(getCol(rec, colIdx, "Country")),
			Year:     year,
			Type:     disasterTypeOr(rec, colIdx),
			Deaths:   parseFloat64Or(getCol(rec, colIdx, "Total Deaths"), 0),
			Affected: parseFloat64Or(getCol(rec, colIdx, "Total Affected"), 0),
		})
	}

	log.Info("EM-DAT aggregate rows loaded", zap.Int("rows", len(events)))
	return events
}

// disasterTypeOr reads the type label, defaulting to "Unknown" when the
// column is absent so the row still reaches the aggregator (where it
// collapses to "Other" and is excluded from the canonical set).
func disasterTypeOr(rec []string, colIdx map[string]int) string {
	t := strings.TrimSpace(getCol(rec, colIdx, "Disaster Type"))
	if t == "" {
		return emdatUnknownType
	}
	return t
}

// warnMissingEMDATColumns logs the optional columns that will fall back
// to safe defaults (zero deaths/affected, unknown type).
func warnMissingEMDATColumns(log *zap.Logger, colIdx map[string]int) {
	if missing := missingColumns(colIdx, "Country", "Disaster Type", "Total Deaths", "Total Affected"); len(missing) > 0 {
		log.Warn("EM-DAT workbook missing optional columns, using defaults",
			zap.Strings("missing", missing))
	}
}
