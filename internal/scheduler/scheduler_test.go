package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aof-gg/aofkeeper/internal/aof"
	"github.com/aof-gg/aofkeeper/internal/config"
	"github.com/aof-gg/aofkeeper/internal/db"
	"github.com/aof-gg/aofkeeper/internal/events"
	"github.com/aof-gg/aofkeeper/internal/replay"
	"github.com/aof-gg/aofkeeper/internal/storage"
)

func sampleReplay(gameID uint64) *replay.Replay {
	return &replay.Replay{
		Metadata: replay.Metadata{
			RegionID:          1,
			GameID:            gameID,
			RiotVersion:       "7.1.1",
			Key:               "a2V5",
			EndStartupChunkID: 1,
			StartGameChunkID:  2,
		},
		Data: replay.Data{
			Keyframes: replay.NewFragments(replay.Fragment{ID: 1, Data: []byte("k")}),
			Chunks:    replay.NewFragments(replay.Fragment{ID: 1, Data: []byte("c")}),
		},
	}
}

func TestNextRun(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 5, 10, 3, 30, 0, 0, loc)

	assert.Equal(t, time.Date(2024, 5, 10, 4, 0, 0, 0, loc), NextRun(now, "04:00"))
	assert.Equal(t, time.Date(2024, 5, 11, 3, 0, 0, 0, loc), NextRun(now, "03:00"))
	assert.Equal(t, time.Date(2024, 5, 11, 3, 30, 0, 0, loc), NextRun(now, "03:30"))
	assert.Equal(t, time.Date(2024, 5, 10, 4, 0, 0, 0, loc), NextRun(now, "garbage"))
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := storage.NewFileStorage(filepath.Join(dir, "replays"))
	require.NoError(t, err)
	catalog, err := db.NewCatalog(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })

	bus := events.NewEventBus()
	defer bus.Stop()

	var pruned events.ReplayPrunedPayload
	bus.Subscribe(events.EventReplayPruned, "test", func(_ context.Context, ev events.Event) error {
		pruned = ev.Payload.(events.ReplayPrunedPayload)
		return nil
	})

	archive := storage.NewArchive(store, catalog, nil)

	// "old" is catalogued 40 days ago, "fresh" now.
	old, _, err := aof.Encode(sampleReplay(1))
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, "old", old))
	require.NoError(t, catalog.Upsert(db.Entry{
		Name: "old", GameID: 1, SizeBytes: int64(len(old)),
		SavedAt: time.Now().Add(-40 * 24 * time.Hour),
	}))

	_, err = archive.Save(ctx, "fresh", sampleReplay(2))
	require.NoError(t, err)

	// An uncatalogued file with an old mtime and a stale temp file.
	require.NoError(t, store.Write(ctx, "orphan", []byte("xx")))
	past := time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(store.Dir(), "orphan.aof"), past, past))

	tmp := filepath.Join(store.Dir(), "partial.aof.1.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("123"), 0644))
	require.NoError(t, os.Chtimes(tmp, past, past))

	s := NewScheduler(config.ReplayCleanerConfig{
		Enabled:           true,
		CleanupTime:       "04:00",
		RetentionDays:     30,
		TmpRetentionHours: 24,
	}, archive, store, bus)

	report, err := s.RunOnce(ctx)
	require.NoError(t, err)
	bus.Stop()

	assert.ElementsMatch(t, []string{"old", "orphan"}, report.Removed)
	assert.Equal(t, 1, report.Orphans)
	assert.Equal(t, 1, report.TempFiles)
	assert.Equal(t, int64(len(old)+2+3), report.FreedBytes)

	files, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "fresh", files[0].Name)
	assert.NoFileExists(t, tmp)

	assert.ElementsMatch(t, report.Removed, pruned.Removed)
}

func TestStart_DisabledReturns(t *testing.T) {
	s := NewScheduler(config.ReplayCleanerConfig{}, nil, nil, nil)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return for a disabled cleaner")
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	s := NewScheduler(config.ReplayCleanerConfig{Enabled: true, CleanupTime: "04:00"}, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestRunOnce_RefusesShortRetention(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := storage.NewFileStorage(filepath.Join(dir, "replays"))
	require.NoError(t, err)
	catalog, err := db.NewCatalog(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })

	archive := storage.NewArchive(store, catalog, nil)
	_, err = archive.Save(ctx, "kept", sampleReplay(7))
	require.NoError(t, err)

	for _, days := range []int{0, -3} {
		s := NewScheduler(config.ReplayCleanerConfig{RetentionDays: days, TmpRetentionHours: 24}, archive, store, nil)

		report, err := s.RunOnce(ctx)
		assert.ErrorIs(t, err, ErrInvalidRetention)
		assert.Empty(t, report.Removed)
	}

	_, err = archive.Entry("kept")
	require.NoError(t, err)
	files, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
