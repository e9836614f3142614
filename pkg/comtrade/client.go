// Package comtrade fetches export records from the UN Comtrade preview
// API and materializes them as the CSV files the export loader reads.
package comtrade

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tradepanel/internal/config"
	"github.com/sells-group/tradepanel/internal/fetcher"
	"github.com/sells-group/tradepanel/internal/loader"
)

// ErrQuotaExceeded signals that the API refused further requests for
// this key. Fetching stops for the rest of the run; complete years
// already written stay on disk.
var ErrQuotaExceeded = eris.New("comtrade: request quota exceeded")

// ExportRow is one record of the preview API's JSON payload, carrying
// exactly the fields the export loader requires.
type ExportRow struct {
	ReporterISO              string  `json:"reporterISO"`
	ReporterDesc             string  `json:"reporterDesc"`
	RefYear                  int     `json:"refYear"`
	ClassificationCode       string  `json:"classificationCode"`
	ClassificationSearchCode string  `json:"classificationSearchCode"`
	CmdCode                  string  `json:"cmdCode"`
	FOBValue                 float64 `json:"fobvalue"`
}

type apiResponse struct {
	Data []ExportRow `json:"data"`
}

// Result summarizes a FetchMissing run. QuotaExceeded marks the result
// incomplete: some missing years were not downloaded.
type Result struct {
	YearsFetched  []int
	QuotaExceeded bool
}

// Client talks to the Comtrade preview API.
type Client struct {
	http       *fetcher.HTTPFetcher
	baseURL    string
	maxRecords int
}

// NewClient builds a client from the Comtrade configuration section.
func NewClient(cfg config.ComtradeConfig) *Client {
	return &Client{
		http: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			RequestsPerSec: cfg.RequestsPerSec,
		}),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRecords: cfg.MaxRecords,
	}
}

// FetchYearChapter fetches one year of one 2-digit commodity chapter
// for all reporters.
func (c *Client) FetchYearChapter(ctx context.Context, year int, chapter string) ([]ExportRow, error) {
	q := url.Values{}
	q.Set("period", fmt.Sprintf("%d", year))
	q.Set("cmdCode", chapter)
	q.Set("flowCode", "X")
	q.Set("maxRecords", fmt.Sprintf("%d", c.maxRecords))

	resp, err := c.http.Get(ctx, c.baseURL+"/get/C/A/HS?"+q.Encode())
	if err != nil {
		return nil, eris.Wrapf(err, "comtrade: fetch %d/%s", year, chapter)
	}
	defer resp.Body.Close()

	if quotaResponse(resp) {
		return nil, ErrQuotaExceeded
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("comtrade: unexpected status %d for %d/%s", resp.StatusCode, year, chapter)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, eris.Wrapf(err, "comtrade: decode %d/%s", year, chapter)
	}
	return payload.Data, nil
}

// FetchYear fetches all 2-digit chapters for one year.
func (c *Client) FetchYear(ctx context.Context, year int) ([]ExportRow, error) {
	var rows []ExportRow
	for chapter := 1; chapter <= 99; chapter++ {
		chapterRows, err := c.FetchYearChapter(ctx, year, fmt.Sprintf("%02d", chapter))
		if err != nil {
			return nil, err
		}
		rows = append(rows, chapterRows...)
	}
	return rows, nil
}

// FetchMissing downloads the period's years not already covered by an
// export file in exportsDir, writing one "{year}_exports_plus.csv" per
// completed year. On quota exhaustion it stops, keeps the years already
// written, and reports the result incomplete; any other error aborts.
func (c *Client) FetchMissing(ctx context.Context, exportsDir string, period config.Period) (*Result, error) {
	log := zap.L().With(zap.String("stage", "comtrade_fetch"), zap.String("period", period.Key()))

	covered := make(map[int]struct{})
	for _, years := range loader.FileCoverage(exportsDir) {
		for _, y := range years {
			covered[y] = struct{}{}
		}
	}

	var missing []int
	for y := period.Start; y <= period.End; y++ {
		if _, ok := covered[y]; !ok {
			missing = append(missing, y)
		}
	}
	sort.Ints(missing)
	if len(missing) == 0 {
		log.Info("no missing export years")
		return &Result{}, nil
	}
	log.Info("fetching missing export years", zap.Ints("years", missing))

	res := &Result{}
	for _, year := range missing {
		rows, err := c.FetchYear(ctx, year)
		if eris.Is(err, ErrQuotaExceeded) {
			log.Warn("quota exceeded, stopping fetch",
				zap.Int("year", year),
				zap.Ints("fetched", res.YearsFetched))
			res.QuotaExceeded = true
			return res, nil
		}
		if err != nil {
			return res, err
		}
		if err := writeExportCSV(exportsDir, year, rows); err != nil {
			return res, err
		}
		res.YearsFetched = append(res.YearsFetched, year)
		log.Info("export year written", zap.Int("year", year), zap.Int("rows", len(rows)))
	}
	return res, nil
}

// quotaResponse detects the API's quota refusal: a 403 or 429 whose
// body mentions the quota.
func quotaResponse(resp *http.Response) bool {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return true
	}
	if len(body) == 0 {
		return true
	}
	return strings.Contains(strings.ToLower(string(body)), "quota")
}

var exportCSVHeader = []string{
	"refYear", "reporterISO", "reporterDesc",
	"classificationCode", "classificationSearchCode", "cmdCode", "fobvalue",
}

// writeExportCSV writes one completed year atomically: the file appears
// under its final name only after every row is flushed.
func writeExportCSV(dir string, year int, rows []ExportRow) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "comtrade: create exports dir")
	}

	final := filepath.Join(dir, fmt.Sprintf("%d_exports_plus.csv", year))
	tmp := final + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrap(err, "comtrade: create export file")
	}

	w := csv.NewWriter(f)
	if err := w.Write(exportCSVHeader); err != nil {
		f.Close()
		return eris.Wrap(err, "comtrade: write header")
	}
	for _, row := range rows {
		rec := []string{
			fmt.Sprintf("%d", row.RefYear),
			row.ReporterISO,
			row.ReporterDesc,
			row.ClassificationCode,
			row.ClassificationSearchCode,
			row.CmdCode,
			fmt.Sprintf("%g", row.FOBValue),
		}
		if err := w.Write(rec); err != nil {
			f.Close()
			return eris.Wrap(err, "comtrade: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return eris.Wrap(err, "comtrade: flush rows")
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "comtrade: close export file")
	}
	return eris.Wrap(os.Rename(tmp, final), "comtrade: finalize export file")
}
