package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Category describes one canonical disaster category: its display name,
// the column slug used for derived variables, the GeoMet variable suffix
// (empty if the intensity source has no columns for it), and the raw
// EM-DAT type labels that map onto it.
type Category struct {
	Name         string
	Slug         string
	GeoMetSuffix string
	Labels       []string
}

// DefaultCategories returns the canonical disaster category registry.
// Raw labels not listed here collapse to "Other" and are excluded.
func DefaultCategories() []Category {
	return []Category{
		{
			Name:         "Earthquake",
			Slug:         "earthquake",
			GeoMetSuffix: "eq",
			Labels:       []string{"Earthquake"},
		},
		{
			Name:         "Flood",
			Slug:         "flood",
			GeoMetSuffix: "fld",
			Labels:       []string{"Flood"},
		},
		{
			Name:         "Storm",
			Slug:         "storm",
			GeoMetSuffix: "str",
			Labels:       []string{"Storm"},
		},
		{
			Name:         "Extreme temperature",
			Slug:         "extreme_temperature",
			GeoMetSuffix: "temp",
			Labels:       []string{"Extreme temperature", "Drought", "Heat wave", "Cold wave"},
		},
	}
}

// ResolveCategories selects categories from the default registry by name.
// Names are matched case-insensitively.
func ResolveCategories(names []string) ([]Category, error) {
	all := DefaultCategories()
	byName := make(map[string]Category, len(all))
	for _, c := range all {
		byName[strings.ToLower(c.Name)] = c
	}

	cats := make([]Category, 0, len(names))
	for _, name := range names {
		c, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, eris.Errorf("model: unknown disaster category %q", name)
		}
		cats = append(cats, c)
	}
	return cats, nil
}

// LabelIndex builds a raw EM-DAT label to category slug lookup.
func LabelIndex(cats []Category) map[string]string {
	idx := make(map[string]string)
	for _, c := range cats {
		for _, label := range c.Labels {
			idx[strings.ToLower(label)] = c.Slug
		}
	}
	return idx
}

// SlugForLabel maps a raw disaster-type label to a canonical category slug.
// Returns false for labels outside the canonical set.
func SlugForLabel(idx map[string]string, label string) (string, bool) {
	slug, ok := idx[strings.ToLower(strings.TrimSpace(label))]
	return slug, ok
}
