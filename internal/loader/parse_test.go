package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseYearOrToleratesFloatRendering(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1985, parseYearOr("1985", 0))
	assert.Equal(t, 1985, parseYearOr("1985.0", 0))
	assert.Equal(t, 2001, parseYearOr(" 2001 ", 0))
	assert.Equal(t, 0, parseYearOr("", 0))
	assert.Equal(t, 0, parseYearOr("n/a", 0))
}

func TestParseFloat64OrPlaceholders(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 12.5, parseFloat64Or("12.5", 0))
	assert.Equal(t, 1234567.0, parseFloat64Or("1,234,567", 0))
	assert.Equal(t, -1.0, parseFloat64Or("..", -1))
	assert.Equal(t, -1.0, parseFloat64Or("NaN", -1))
	assert.Equal(t, -1.0, parseFloat64Or("", -1))
}

func TestMapColumnsIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	idx := mapColumns([]string{" ISO ", "Start Year", "Total Deaths"})
	rec := []string{"FRA", "1985", "10"}

	assert.Equal(t, "FRA", getCol(rec, idx, "iso"))
	assert.Equal(t, "1985", getCol(rec, idx, "START YEAR"))
	assert.Equal(t, "", getCol(rec, idx, "Affected"))
}

func TestMissingColumns(t *testing.T) {
	t.Parallel()

	idx := mapColumns([]string{"ISO", "Year"})
	assert.Empty(t, missingColumns(idx, "ISO", "Year"))
	assert.Equal(t, []string{"Total Deaths"}, missingColumns(idx, "ISO", "Total Deaths"))
}
