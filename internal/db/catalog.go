package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no catalog entry has the requested name.
var ErrNotFound = errors.New("replay not found in catalog")

// Entry is the catalog row of one archived replay.
type Entry struct {
	Name        string    `json:"name"`
	GameID      uint64    `json:"game_id"`
	RegionID    uint8     `json:"region_id"`
	RiotVersion string    `json:"riot_version"`
	FileVersion uint8     `json:"file_version"`
	Complete    bool      `json:"complete"`
	Players     int       `json:"players"`
	Keyframes   int       `json:"keyframes"`
	Chunks      int       `json:"chunks"`
	SizeBytes   int64     `json:"size_bytes"`
	SavedAt     time.Time `json:"saved_at"`
}

// Catalog indexes the replays held by the archive.
type Catalog struct {
	db *Database
}

// NewCatalog opens the catalog database at dbPath and migrates its schema.
func NewCatalog(dbPath string) (*Catalog, error) {
	database, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	c := &Catalog{db: database}
	if err := c.migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate catalog: %w", err)
	}

	return c, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS replays (
			name TEXT PRIMARY KEY,
			game_id INTEGER NOT NULL,
			region_id INTEGER NOT NULL,
			riot_version TEXT NOT NULL,
			file_version INTEGER NOT NULL,
			complete INTEGER NOT NULL DEFAULT 0,
			players INTEGER NOT NULL DEFAULT 0,
			keyframes INTEGER NOT NULL DEFAULT 0,
			chunks INTEGER NOT NULL DEFAULT 0,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			saved_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_replays_saved_at ON replays(saved_at);
		CREATE INDEX IF NOT EXISTS idx_replays_game_id ON replays(game_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	c.db.logger.Debug().Msg("catalog schema migrated")
	return nil
}

const entryColumns = `name, game_id, region_id, riot_version, file_version, complete,
	players, keyframes, chunks, size_bytes, saved_at`

// Upsert inserts or replaces the entry with the same name.
func (c *Catalog) Upsert(e Entry) error {
	_, err := c.db.Exec(`
		INSERT INTO replays (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			game_id = excluded.game_id,
			region_id = excluded.region_id,
			riot_version = excluded.riot_version,
			file_version = excluded.file_version,
			complete = excluded.complete,
			players = excluded.players,
			keyframes = excluded.keyframes,
			chunks = excluded.chunks,
			size_bytes = excluded.size_bytes,
			saved_at = excluded.saved_at
	`,
		e.Name, int64(e.GameID), e.RegionID, e.RiotVersion, e.FileVersion, e.Complete,
		e.Players, e.Keyframes, e.Chunks, e.SizeBytes, e.SavedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert catalog entry %s: %w", e.Name, err)
	}
	return nil
}

// Get returns the entry named name or ErrNotFound.
func (c *Catalog) Get(name string) (*Entry, error) {
	row := c.db.QueryRow("SELECT "+entryColumns+" FROM replays WHERE name = ?", name)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog entry %s: %w", name, err)
	}
	return e, nil
}

// List returns entries newest first. A limit of zero or less returns all.
func (c *Catalog) List(limit int) ([]Entry, error) {
	query := "SELECT " + entryColumns + " FROM replays ORDER BY saved_at DESC, name"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return c.queryEntries(query, args...)
}

// OlderThan returns entries saved before cutoff, oldest first.
func (c *Catalog) OlderThan(cutoff time.Time) ([]Entry, error) {
	return c.queryEntries(
		"SELECT "+entryColumns+" FROM replays WHERE saved_at < ? ORDER BY saved_at, name",
		cutoff.UnixMilli())
}

// Delete removes the entry named name. Missing entries yield ErrNotFound.
func (c *Catalog) Delete(name string) error {
	res, err := c.db.Exec("DELETE FROM replays WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete catalog entry %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns the number of entries and their total size in bytes.
func (c *Catalog) Stats() (count int, totalBytes int64, err error) {
	err = c.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM replays").
		Scan(&count, &totalBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read catalog stats: %w", err)
	}
	return count, totalBytes, nil
}

func (c *Catalog) queryEntries(query string, args ...interface{}) ([]Entry, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e       Entry
		gameID  int64
		savedAt int64
	)
	err := s.Scan(&e.Name, &gameID, &e.RegionID, &e.RiotVersion, &e.FileVersion, &e.Complete,
		&e.Players, &e.Keyframes, &e.Chunks, &e.SizeBytes, &savedAt)
	if err != nil {
		return nil, err
	}
	e.GameID = uint64(gameID)
	e.SavedAt = time.UnixMilli(savedAt).UTC()
	return &e, nil
}
