package panel

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/tradepanel/internal/model"
)

// maxGapExamples caps the example rows reported on a coverage failure.
const maxGapExamples = 10

// GapExample identifies one panel row missing a required covariate.
type GapExample struct {
	ISO     string
	Year    int
	Country string
}

// CoverageGapError reports rows whose demographic covariates are
// missing after the join. It is fatal for the period: default-filling
// would silently bias the panel.
type CoverageGapError struct {
	Columns  []string     // affected column names
	Missing  int          // total rows with a gap
	Examples []GapExample // up to maxGapExamples affected rows
	ISOCodes []string     // sorted distinct affected codes
}

func (e *CoverageGapError) Error() string {
	return fmt.Sprintf("panel: %d rows missing required columns %s (codes: %s)",
		e.Missing, strings.Join(e.Columns, ", "), strings.Join(e.ISOCodes, ", "))
}

// Validate enforces demographic completeness: every
// surviving row must carry Population, is_poor_country, and
// is_small_country. Rows missing them abort the period with a
// CoverageGapError listing counts, examples, and affected codes. An
// empty income group is the one tolerated gap: it is logged and filled
// with the literal "NA".
func Validate(rows []model.PanelRow) ([]model.PanelRow, error) {
	log := zap.L().With(zap.String("stage", "panel_validate"))

	var (
		gaps       []GapExample
		gapCodes   = make(map[string]struct{})
		gapColumns = make(map[string]struct{})
		naCodes    = make(map[string]struct{})
	)
	for i := range rows {
		row := &rows[i]
		demo := row.Demographics
		switch {
		case demo == nil:
			gapColumns["Population"] = struct{}{}
			gapColumns["is_poor_country"] = struct{}{}
			gapColumns["is_small_country"] = struct{}{}
		case !demo.HasIncome:
			// is_poor_country cannot be derived without the income source
			gapColumns["is_poor_country"] = struct{}{}
		default:
			if demo.IncomeGroup == "" {
				demo.IncomeGroup = "NA"
				naCodes[row.ISO] = struct{}{}
			}
			continue
		}
		gaps = append(gaps, GapExample{ISO: row.ISO, Year: row.Year, Country: row.Country})
		gapCodes[row.ISO] = struct{}{}
	}

	if len(naCodes) > 0 {
		log.Warn("income group unknown, filled with NA",
			zap.Strings("iso_codes", sortedStrings(naCodes)))
	}

	if len(gaps) > 0 {
		err := &CoverageGapError{
			Columns:  sortedStrings(gapColumns),
			Missing:  len(gaps),
			Examples: gaps[:min(len(gaps), maxGapExamples)],
			ISOCodes: sortedStrings(gapCodes),
		}
		for _, ex := range err.Examples {
			log.Error("demographic coverage gap",
				zap.String("iso", ex.ISO),
				zap.Int("year", ex.Year),
				zap.String("country", ex.Country))
		}
		log.Error("demographic coverage gaps are fatal",
			zap.Int("missing_rows", err.Missing),
			zap.Strings("iso_codes", err.ISOCodes))
		return nil, err
	}

	return rows, nil
}

func sortedStrings(set map[string]struct{}) []string {
	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
