package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aof-gg/aofkeeper/internal/aof"
	"github.com/aof-gg/aofkeeper/internal/db"
	"github.com/aof-gg/aofkeeper/internal/events"
	"github.com/aof-gg/aofkeeper/internal/replay"
	"github.com/aof-gg/aofkeeper/internal/util"
)

// Catalog is the index the archive keeps alongside the stored files.
type Catalog interface {
	Upsert(e db.Entry) error
	Get(name string) (*db.Entry, error)
	List(limit int) ([]db.Entry, error)
	OlderThan(cutoff time.Time) ([]db.Entry, error)
	Delete(name string) error
	Stats() (count int, totalBytes int64, err error)
}

// Archive stores replays as encoded AOF buffers. Each operation performs a
// single whole-buffer write or read against the storage backend.
type Archive struct {
	store   Storage
	catalog Catalog
	bus     events.Emitter
	logger  zerolog.Logger
	now     func() time.Time
}

// NewArchive creates an archive over store. The bus may be nil.
func NewArchive(store Storage, catalog Catalog, bus events.Emitter) *Archive {
	return &Archive{
		store:   store,
		catalog: catalog,
		bus:     bus,
		logger:  util.ComponentLogger("archive"),
		now:     time.Now,
	}
}

// Save encodes rp and writes it under name. When encoding fails nothing is
// written and the error from the codec is returned wrapped.
func (a *Archive) Save(ctx context.Context, name string, rp *replay.Replay) (aof.Warnings, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	buf, warnings, err := aof.Encode(rp)
	if err != nil {
		a.reject(ctx, name, "encode", err)
		return nil, fmt.Errorf("failed to encode replay %s: %w", name, err)
	}

	if err := a.store.Write(ctx, name, buf); err != nil {
		return nil, err
	}

	meta := rp.Metadata
	meta.FileVersion = aof.CurrentRevision
	meta.Complete = aof.IsComplete(rp.Keyframes, rp.Chunks)
	if last, ok := rp.Chunks.Last(); ok {
		meta.EndGameChunkID = last.ID
	}

	entry := a.entry(name, &meta, &rp.Data, len(buf))
	if err := a.catalogue(ctx, entry); err != nil {
		return nil, err
	}

	for _, w := range warnings {
		a.logger.Warn().Str("replay", name).Str("warning", w).Msg("replay saved with warning")
	}
	a.logger.Info().
		Str("replay", name).
		Uint64("game_id", meta.GameID).
		Int("size", len(buf)).
		Bool("complete", meta.Complete).
		Msg("replay saved")

	a.emit(ctx, events.EventReplaySaved, events.ReplaySavedPayload{
		Name:      name,
		GameID:    meta.GameID,
		RegionID:  meta.RegionID,
		Complete:  meta.Complete,
		Keyframes: rp.Keyframes.Len(),
		Chunks:    rp.Chunks.Len(),
		SizeBytes: len(buf),
		Warnings:  warnings,
		SavedAt:   entry.SavedAt,
	})

	return warnings, nil
}

// Load reads and decodes the replay stored under name.
func (a *Archive) Load(ctx context.Context, name string) (*replay.Replay, error) {
	buf, err := a.store.ReadAll(ctx, name)
	if err != nil {
		return nil, err
	}

	meta, data, err := aof.Decode(buf)
	if err != nil {
		a.reject(ctx, name, "decode", err)
		return nil, fmt.Errorf("failed to decode replay %s: %w", name, err)
	}

	a.logger.Debug().Str("replay", name).Uint8("file_version", meta.FileVersion).Msg("replay loaded")
	a.emit(ctx, events.EventReplayLoaded, events.ReplayLoadedPayload{
		Name:        name,
		GameID:      meta.GameID,
		FileVersion: meta.FileVersion,
		SizeBytes:   len(buf),
	})

	return &replay.Replay{Metadata: *meta, Data: *data}, nil
}

// LoadRaw returns the stored bytes of name without decoding them.
func (a *Archive) LoadRaw(ctx context.Context, name string) ([]byte, error) {
	return a.store.ReadAll(ctx, name)
}

// Import stores an already encoded buffer under name after checking that it
// decodes. Buffers of any readable revision are kept as given.
func (a *Archive) Import(ctx context.Context, name string, raw []byte) (*replay.Metadata, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	meta, data, err := aof.Decode(raw)
	if err != nil {
		a.reject(ctx, name, "decode", err)
		return nil, fmt.Errorf("failed to decode replay %s: %w", name, err)
	}

	if err := a.store.Write(ctx, name, raw); err != nil {
		return nil, err
	}

	entry := a.entry(name, meta, data, len(raw))
	if err := a.catalogue(ctx, entry); err != nil {
		return nil, err
	}

	a.logger.Info().
		Str("replay", name).
		Uint8("file_version", meta.FileVersion).
		Int("size", len(raw)).
		Msg("replay imported")

	a.emit(ctx, events.EventReplaySaved, events.ReplaySavedPayload{
		Name:      name,
		GameID:    meta.GameID,
		RegionID:  meta.RegionID,
		Complete:  meta.Complete,
		Keyframes: data.Keyframes.Len(),
		Chunks:    data.Chunks.Len(),
		SizeBytes: len(raw),
		SavedAt:   entry.SavedAt,
	})

	return meta, nil
}

// Delete removes the stored file and its catalog entry. It returns
// ErrNotFound only when neither existed.
func (a *Archive) Delete(ctx context.Context, name string) error {
	fileErr := a.store.Remove(ctx, name)
	if fileErr != nil && !errors.Is(fileErr, ErrNotFound) {
		return fileErr
	}

	catErr := a.catalog.Delete(name)
	if catErr != nil && !errors.Is(catErr, db.ErrNotFound) {
		return catErr
	}

	if fileErr != nil && catErr != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	a.logger.Info().Str("replay", name).Msg("replay deleted")
	a.emit(ctx, events.EventReplayDeleted, events.ReplayDeletedPayload{Name: name})
	return nil
}

// Entry returns the catalog entry of name.
func (a *Archive) Entry(name string) (*db.Entry, error) {
	e, err := a.catalog.Get(name)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, err
}

// List returns catalog entries newest first.
func (a *Archive) List(limit int) ([]db.Entry, error) {
	return a.catalog.List(limit)
}

// Stats returns the number of catalogued replays and their total size.
func (a *Archive) Stats() (int, int64, error) {
	return a.catalog.Stats()
}

// OlderThan returns catalog entries saved before cutoff, oldest first.
func (a *Archive) OlderThan(cutoff time.Time) ([]db.Entry, error) {
	return a.catalog.OlderThan(cutoff)
}

// catalogue records a freshly written file. When the catalog refuses the
// entry the file is removed again so the two stay in step; if that fails too
// the next reconcile indexes it.
func (a *Archive) catalogue(ctx context.Context, entry db.Entry) error {
	err := a.catalog.Upsert(entry)
	if err == nil {
		return nil
	}

	if rmErr := a.store.Remove(ctx, entry.Name); rmErr != nil && !errors.Is(rmErr, ErrNotFound) {
		a.logger.Error().
			Err(rmErr).
			Str("replay", entry.Name).
			Msg("uncatalogued replay left on disk, the next reconcile will index it")
	}
	return fmt.Errorf("failed to catalog replay %s: %w", entry.Name, err)
}

func (a *Archive) entry(name string, meta *replay.Metadata, data *replay.Data, size int) db.Entry {
	return db.Entry{
		Name:        name,
		GameID:      meta.GameID,
		RegionID:    meta.RegionID,
		RiotVersion: meta.RiotVersion,
		FileVersion: meta.FileVersion,
		Complete:    meta.Complete,
		Players:     len(meta.Players),
		Keyframes:   data.Keyframes.Len(),
		Chunks:      data.Chunks.Len(),
		SizeBytes:   int64(size),
		SavedAt:     a.now().UTC().Truncate(time.Millisecond),
	}
}

func (a *Archive) reject(ctx context.Context, name, stage string, err error) {
	a.logger.Warn().Err(err).Str("replay", name).Str("stage", stage).Msg("replay rejected")
	a.emit(ctx, events.EventReplayRejected, events.ReplayRejectedPayload{
		Name:   name,
		Stage:  stage,
		Reason: err.Error(),
	})
}

func (a *Archive) emit(ctx context.Context, t events.EventType, payload interface{}) {
	if a.bus == nil {
		return
	}
	a.bus.Emit(ctx, events.Event{Type: t, Source: "archive", Payload: payload})
}
