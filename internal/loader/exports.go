// Package loader maps the heterogeneous source formats (Comtrade CSVs,
// EM-DAT and World Bank spreadsheets, the GeoMet Stata file) into the
// canonical row schemas, applying ISO-code normalization inline.
package loader

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/tradepanel/internal/config"
	"github.com/sells-group/tradepanel/internal/iso"
	"github.com/sells-group/tradepanel/internal/model"
)

var (
	rangeFilePattern  = regexp.MustCompile(`^(\d{4})-(\d{4})_exports`)
	singleFilePattern = regexp.MustCompile(`^(\d{4})_exports`)
)

// s2AgriCodes is the SITC Rev.2 agricultural commodity code set.
var s2AgriCodes = map[int]struct{}{
	0: {}, 1: {}, 2: {}, 3: {}, 4: {}, 5: {}, 6: {}, 7: {}, 8: {}, 9: {},
	21: {}, 22: {}, 23: {}, 24: {}, 25: {}, 29: {},
	41: {}, 42: {}, 43: {},
}

// hsAgriMax is the last HS chapter considered agricultural ("01".."24").
const hsAgriMax = 24

// CoveredYears parses the years an export filename covers:
// "1979-1987_exports_plus.csv" covers the range, "1988_exports_plus.csv"
// a single year. Filenames matching neither pattern cover nothing.
func CoveredYears(filename string) []int {
	if m := rangeFilePattern.FindStringSubmatch(filename); m != nil {
		start := parseIntOr(m[1], 0)
		end := parseIntOr(m[2], 0)
		if start == 0 || end == 0 || start > end {
			return nil
		}
		years := make([]int, 0, end-start+1)
		for y := start; y <= end; y++ {
			years = append(years, y)
		}
		return years
	}
	if m := singleFilePattern.FindStringSubmatch(filename); m != nil {
		if y := parseIntOr(m[1], 0); y != 0 {
			return []int{y}
		}
	}
	return nil
}

// FileCoverage scans a directory for export CSVs and maps each file path
// to the years its name covers.
func FileCoverage(dir string) map[string][]int {
	matches, err := filepath.Glob(filepath.Join(dir, "*_exports*.csv"))
	if err != nil {
		return nil
	}
	coverage := make(map[string][]int)
	for _, path := range matches {
		if years := CoveredYears(filepath.Base(path)); len(years) > 0 {
			coverage[path] = years
		}
	}
	return coverage
}

// Exports loads and validates Comtrade export rows for the period. The
// minimal file set whose covered years intersect the window is selected,
// concatenated, and normalized. A missing directory, no covering file,
// or absent required columns yields an empty result with an error log;
// the period is skipped downstream rather than aborting the run.
func Exports(cfg *config.Config, period config.Period) []model.ExportRecord {
	log := zap.L().With(zap.String("loader", "exports"), zap.String("period", period.Key()))

	coverage := FileCoverage(cfg.ExportsDir())
	var files []string
	for path, years := range coverage {
		for _, y := range years {
			if period.Contains(y) {
				files = append(files, path)
				break
			}
		}
	}
	if len(files) == 0 {
		log.Error("no export file covers the requested period",
			zap.String("dir", cfg.ExportsDir()))
		return nil
	}

	excluded := iso.NewExclusionSet(cfg.ExcludedISOCodes)
	var records []model.ExportRecord
	for _, path := range files {
		rows := readExportFile(path, period, excluded)
		records = append(records, rows...)
	}

	log.Info("export rows loaded",
		zap.Int("files", len(files)),
		zap.Int("rows", len(records)),
	)
	return records
}

func readExportFile(path string, period config.Period, excluded iso.ExclusionSet) []model.ExportRecord {
	log := zap.L().With(zap.String("file", filepath.Base(path)))

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Error("read export file", zap.Error(err))
		return nil
	}
	// Some Comtrade extracts ship Latin-1 encoded; re-decode when the
	// bytes are not valid UTF-8.
	if !utf8.Valid(raw) {
		decoded, decErr := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if decErr != nil {
			log.Error("decode latin-1 export file", zap.Error(decErr))
			return nil
		}
		raw = decoded
	}

	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	all, err := reader.ReadAll()
	if err != nil || len(all) == 0 {
		log.Error("parse export csv", zap.Error(err))
		return nil
	}

	colIdx := mapColumns(all[0])
	required := []string{"refYear", "reporterISO", "reporterDesc", "classificationCode", "classificationSearchCode", "cmdCode", "fobvalue"}
	if missing := missingColumns(colIdx, required...); len(missing) > 0 {
		log.Error("export file missing required columns", zap.Strings("missing", missing))
		return nil
	}

	var records []model.ExportRecord
	var dropped int
	for _, rec := range all[1:] {
		code, ok := iso.Clean(getCol(rec, colIdx, "reporterISO"), excluded)
		if !ok {
			dropped++
			continue
		}
		year := parseYearOr(getCol(rec, colIdx, "refYear"), 0)
		if year == 0 || !period.Contains(year) {
			dropped++
			continue
		}
		scheme := strings.TrimSpace(getCol(rec, colIdx, "classificationSearchCode"))
		classCode := strings.TrimSpace(getCol(rec, colIdx, "classificationCode"))
		product := strings.TrimSpace(getCol(rec, colIdx, "cmdCode"))
		fob := parseFloat64Or(getCol(rec, colIdx, "fobvalue"), 0)
		if scheme == "" || classCode == "" || product == "" || fob <= 0 {
			dropped++
			continue
		}

		records = append(records, model.ExportRecord{
			ISO:                code,
			Country:            strings.TrimSpace(getCol(rec, colIdx, "reporterDesc")),
			Year:               year,
			ClassificationCode: classCode,
			Scheme:             scheme,
			ProductCode:        product,
			FOBValue:           fob,
			IsAgricultural:     isAgricultural(scheme, product),
		})
	}

	if dropped > 0 {
		log.Debug("dropped invalid export rows", zap.Int("dropped", dropped))
	}
	return records
}

// isAgricultural tests a product code against the scheme-specific
// agricultural code set. SITC2 is an alias of S2. Unrecognized schemes
// default to false with a warning.
func isAgricultural(scheme, productCode string) bool {
	switch normalizeScheme(scheme) {
	case "S2":
		code := parseIntOr(productCode, -1)
		if code < 0 {
			return false
		}
		_, ok := s2AgriCodes[code]
		return ok
	case "HS":
		n := parseIntOr(productCode, 0)
		return n >= 1 && n <= hsAgriMax
	default:
		zap.L().Warn("unexpected classification scheme", zap.String("scheme", scheme))
		return false
	}
}

func normalizeScheme(scheme string) string {
	s := strings.ToUpper(strings.TrimSpace(scheme))
	return strings.ReplaceAll(s, "SITC2", "S2")
}
