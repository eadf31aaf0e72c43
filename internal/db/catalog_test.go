package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(filepath.Join(t.TempDir(), "catalog", "replays.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func entry(name string, savedAt time.Time) Entry {
	return Entry{
		Name:        name,
		GameID:      5_000_000_000,
		RegionID:    1,
		RiotVersion: "7.10.154",
		FileVersion: 12,
		Complete:    true,
		Players:     10,
		Keyframes:   3,
		Chunks:      7,
		SizeBytes:   1024,
		SavedAt:     savedAt.UTC().Truncate(time.Millisecond),
	}
}

func TestCatalog_UpsertAndGet(t *testing.T) {
	c := newTestCatalog(t)
	now := time.Now()

	e := entry("match-1", now)
	require.NoError(t, c.Upsert(e))

	got, err := c.Get("match-1")
	require.NoError(t, err)
	assert.Equal(t, e, *got)

	e.Chunks = 9
	e.Complete = false
	require.NoError(t, c.Upsert(e))

	got, err = c.Get("match-1")
	require.NoError(t, err)
	assert.Equal(t, 9, got.Chunks)
	assert.False(t, got.Complete)

	_, err = c.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_GameIDHighBit(t *testing.T) {
	c := newTestCatalog(t)

	e := entry("big", time.Now())
	e.GameID = ^uint64(0)
	require.NoError(t, c.Upsert(e))

	got, err := c.Get("big")
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0), got.GameID)
}

func TestCatalog_ListAndOlderThan(t *testing.T) {
	c := newTestCatalog(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.Upsert(entry("old", base.Add(-48*time.Hour))))
	require.NoError(t, c.Upsert(entry("mid", base.Add(-24*time.Hour))))
	require.NoError(t, c.Upsert(entry("new", base)))

	all, err := c.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].Name)
	assert.Equal(t, "old", all[2].Name)

	limited, err := c.List(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "new", limited[0].Name)

	stale, err := c.OlderThan(base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, "old", stale[0].Name)
	assert.Equal(t, "mid", stale[1].Name)

	count, total, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, int64(3*1024), total)
}

func TestCatalog_Delete(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.Upsert(entry("gone", time.Now())))

	require.NoError(t, c.Delete("gone"))
	assert.ErrorIs(t, c.Delete("gone"), ErrNotFound)

	list, err := c.List(0)
	require.NoError(t, err)
	assert.Empty(t, list)
}
