package loader

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/tradepanel/internal/config"
	"github.com/sells-group/tradepanel/internal/fetcher"
	"github.com/sells-group/tradepanel/internal/iso"
	"github.com/sells-group/tradepanel/internal/model"
)

const (
	incomeFile      = "world_bank_income.xlsx"
	populationFile  = "undesa_population.xlsx"
	populationSheet = "Estimates"
	populationSkip  = 16 // metadata banner above the header row
	populationType  = "Country/Area"
	populationScale = 1000 // source reports thousands
)

// poorIncomeGroups are the income classifications treated as poor.
var poorIncomeGroups = map[string]struct{}{
	"low income":          {},
	"lower middle income": {},
}

// Demographics joins the UN DESA population estimates with the World
// Bank income classification into per-(ISO, Year) covariate records.
// Population is the anchor: a country-year absent from the estimates
// sheet produces no record. A country absent from the income file
// yields HasIncome=false, which the panel validator treats as fatal.
func Demographics(ctx context.Context, cfg *config.Config, period config.Period) []model.DemographicRecord {
	log := zap.L().With(zap.String("loader", "worldbank"), zap.String("period", period.Key()))

	income := loadIncomeGroups(cfg)
	excluded := iso.NewExclusionSet(cfg.ExcludedISOCodes)

	records := loadPopulation(ctx, cfg, period, excluded)
	for i := range records {
		rec := &records[i]
		group, ok := income[rec.ISO]
		rec.HasIncome = ok
		rec.IncomeGroup = group
		_, rec.IsPoor = poorIncomeGroups[strings.ToLower(group)]
		rec.IsSmall = rec.Population < cfg.SmallCountryThreshold
	}

	log.Info("demographic records built",
		zap.Int("rows", len(records)),
		zap.Int("income_countries", len(income)))
	return records
}

// loadIncomeGroups reads the income classification workbook into an
// ISO -> income group map. Countries with an empty group cell are kept
// so presence in the source stays distinguishable from a missing group.
func loadIncomeGroups(cfg *config.Config) map[string]string {
	path := filepath.Join(cfg.WorldBankDir(), incomeFile)
	log := zap.L().With(zap.String("loader", "worldbank"), zap.String("file", incomeFile))

	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		log.Error("load income classification", zap.Error(err))
		return nil
	}
	if len(rows) == 0 {
		log.Error("income classification is empty")
		return nil
	}

	colIdx := mapColumns(rows[0])
	if missing := missingColumns(colIdx, "Code", "Income group"); len(missing) > 0 {
		log.Error("income classification missing columns", zap.Strings("missing", missing))
		return nil
	}

	income := make(map[string]string)
	for _, rec := range rows[1:] {
		code, ok := iso.Normalize(getCol(rec, colIdx, "Code"))
		if !ok {
			continue
		}
		// an empty group cell is kept so presence in the source stays
		// distinguishable from a country the source never lists
		income[code] = strings.TrimSpace(getCol(rec, colIdx, "Income group"))
	}

	log.Info("income classification loaded", zap.Int("countries", len(income)))
	return income
}

// loadPopulation streams the UN DESA estimates sheet, keeping only
// country-level rows inside the period window. Figures are reported in
// thousands and scaled to persons.
func loadPopulation(ctx context.Context, cfg *config.Config, period config.Period, excluded iso.ExclusionSet) []model.DemographicRecord {
	path := filepath.Join(cfg.UNDESADir(), populationFile)
	log := zap.L().With(zap.String("loader", "worldbank"), zap.String("file", populationFile))

	rowCh, errCh := fetcher.StreamXLSX(ctx, path, fetcher.XLSXOptions{
		SheetName: populationSheet,
		SkipRows:  populationSkip,
	})

	var (
		colIdx  map[string]int
		records []model.DemographicRecord
		seen    = make(map[model.CountryYear]struct{})
	)
	required := []string{"ISO3 Alpha-code", "Type", "Year", "Total Population, as of 1 January (thousands)"}

	for row := range rowCh {
		if colIdx == nil {
			colIdx = mapColumns(row)
			if missing := missingColumns(colIdx, required...); len(missing) > 0 {
				log.Error("population sheet missing columns", zap.Strings("missing", missing))
				return nil
			}
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(getCol(row, colIdx, "Type")), populationType) {
			continue
		}
		code, ok := iso.Clean(getCol(row, colIdx, "ISO3 Alpha-code"), excluded)
		if !ok {
			continue
		}
		year := parseYearOr(getCol(row, colIdx, "Year"), 0)
		if year == 0 || !period.Contains(year) {
			continue
		}
		pop := parseFloat64Or(getCol(row, colIdx, "Total Population, as of 1 January (thousands)"), -1)
		if pop < 0 {
			continue
		}
		key := model.CountryYear{ISO: code, Year: year}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		records = append(records, model.DemographicRecord{
			ISO:        code,
			Year:       year,
			Population: pop * populationScale,
		})
	}
	if err := <-errCh; err != nil {
		log.Error("load population estimates", zap.Error(err))
		return nil
	}

	log.Info("population rows loaded", zap.Int("rows", len(records)))
	return records
}
