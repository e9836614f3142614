// Package model defines the canonical row types shared by the loaders,
// the panel builder, and the dataset emitter.
package model

import "fmt"

// CountryYear is the panel's primary grain for disaster and demographic data.
type CountryYear struct {
	ISO  string `json:"iso"`
	Year int    `json:"year"`
}

func (k CountryYear) String() string {
	return fmt.Sprintf("%s/%d", k.ISO, k.Year)
}

// ExportRecord is one validated Comtrade export row at
// (ISO, Year, ProductCode) grain.
type ExportRecord struct {
	ISO                string  `json:"iso"`
	Country            string  `json:"country"`
	Year               int     `json:"year"`
	ClassificationCode string  `json:"classification_code"`
	Scheme             string  `json:"scheme"` // classification search code: S2 or HS
	ProductCode        string  `json:"product_code"`
	FOBValue           float64 `json:"fob_value"`
	IsAgricultural     bool    `json:"is_agricultural"`
}

// Key returns the country-year part of the record's grain.
func (r ExportRecord) Key() CountryYear {
	return CountryYear{ISO: r.ISO, Year: r.Year}
}

// DisasterEvent is one raw EM-DAT row normalized to the common shape.
// For the post-2000 aggregated source each row represents a country-year
// aggregate and still counts as one event.
type DisasterEvent struct {
	ISO      string
	Country  string
	Year     int
	Type     string // raw disaster-type label
	Deaths   float64
	Affected float64
}

// IntensityRecord is one GeoMet row with per-category intensity values,
// each already summed across that category's physical-impact proxies.
type IntensityRecord struct {
	ISO        string
	Year       int
	ByCategory map[string]float64 // category slug -> row intensity
}

// DemographicRecord holds World Bank covariates for one (ISO, Year).
// HasIncome reports whether the country appeared in the income
// classification source at all; IncomeGroup may still be empty when the
// source row carried no group.
type DemographicRecord struct {
	ISO         string  `json:"iso"`
	Year        int     `json:"year"`
	Population  float64 `json:"population"`
	IncomeGroup string  `json:"income_group"`
	HasIncome   bool    `json:"has_income"`
	IsPoor      bool    `json:"is_poor"`
	IsSmall     bool    `json:"is_small"`
}

// CategoryStats holds one category's columns on a panel row. Deaths,
// Affected and Events are structural zeros when no event was recorded.
type CategoryStats struct {
	Deaths   float64 `json:"deaths"`
	Affected float64 `json:"affected"`
	Events   int     `json:"events"`

	Intensity    float64 `json:"intensity"`
	HasIntensity bool    `json:"has_intensity"`

	SigMedian    bool `json:"sig_median"`
	SigP90       bool `json:"sig_p90"`
	SigAbs1000   bool `json:"sig_abs1000"`
	SigAnyDeaths bool `json:"sig_anydeaths"`
	GeoMetSigP90 bool `json:"geomet_sig_p90"`
}

// ExtremeEMDAT reports the event-based extreme indicator. It is
// definitionally the p90 significance flag, kept under both names for
// downstream column compatibility.
func (s *CategoryStats) ExtremeEMDAT() bool { return s.SigP90 }

// ExtremeGeoMet reports the intensity-based extreme indicator.
func (s *CategoryStats) ExtremeGeoMet() bool { return s.GeoMetSigP90 }

// PanelRow is one (ISO, Year) row of the disaster panel. Demographics is
// nil when the World Bank join found no covariates for the key; the
// completeness validator treats that as a fatal coverage gap.
type PanelRow struct {
	ISO     string `json:"iso"`
	Country string `json:"country"`
	Year    int    `json:"year"`

	Categories    map[string]*CategoryStats `json:"categories"` // keyed by category slug
	DisasterIndex float64                   `json:"disaster_index"`

	Demographics *DemographicRecord `json:"demographics"`
}

// Key returns the row's (ISO, Year) key.
func (r PanelRow) Key() CountryYear {
	return CountryYear{ISO: r.ISO, Year: r.Year}
}

// Stats returns the stats for a category slug, or an all-zero value when
// the slug is absent. The returned pointer is never nil.
func (r PanelRow) Stats(slug string) *CategoryStats {
	if s, ok := r.Categories[slug]; ok && s != nil {
		return s
	}
	return &CategoryStats{}
}
