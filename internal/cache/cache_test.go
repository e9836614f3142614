package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tradepanel/internal/config"
	"github.com/sells-group/tradepanel/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	records := []model.ExportRecord{
		{ISO: "USA", Country: "United States", Year: 1995, ProductCode: "01", FOBValue: 1000, IsAgricultural: true},
	}
	require.NoError(t, store.Put(ctx, StageExports, "1979_2000", "hash-a", records))

	var got []model.ExportRecord
	hit, err := store.Get(ctx, StageExports, "1979_2000", "hash-a", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, records, got)
}

func TestGetMissReturnsFalse(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	var got []model.ExportRecord
	hit, err := store.Get(context.Background(), StageExports, "1979_2000", "hash-a", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestGetParamsMismatchIsMiss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Put(ctx, StageExports, "1979_2000", "hash-a", []int{1}))

	var got []int
	hit, err := store.Get(ctx, StageExports, "1979_2000", "hash-b", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestPutReplacesExistingEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Put(ctx, StageExports, "1979_2000", "hash-a", []int{1}))
	require.NoError(t, store.Put(ctx, StageExports, "1979_2000", "hash-a", []int{2, 3}))

	var got []int
	hit, err := store.Get(ctx, StageExports, "1979_2000", "hash-a", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, []int{2, 3}, got)
}

func TestClearStageAndPeriod(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Put(ctx, StageExports, "1979_2000", "h", []int{1}))
	require.NoError(t, store.Put(ctx, StageDisasters, "1979_2000", "h", []int{2}))
	require.NoError(t, store.Put(ctx, StageExports, "2001_2024", "h", []int{3}))

	require.NoError(t, store.ClearStage(ctx, StageExports, "1979_2000"))
	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, store.Clear(ctx, "1979_2000"))
	entries, err = store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2001_2024", entries[0].PeriodKey)

	require.NoError(t, store.ClearAll(ctx))
	entries, err = store.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParamsHashIsOrderInsensitive(t *testing.T) {
	t.Parallel()

	period := config.Period{Start: 1979, End: 2000}
	a := ParamsHash(period, []string{"YUG", "SUN"})
	b := ParamsHash(period, []string{"SUN", "YUG"})
	assert.Equal(t, a, b)

	c := ParamsHash(period, []string{"SUN"})
	assert.NotEqual(t, a, c)

	d := ParamsHash(config.Period{Start: 1979, End: 2001}, []string{"YUG", "SUN"})
	assert.NotEqual(t, a, d)
}
