// Package storage persists encoded replays and keeps the catalog in step
// with the files on disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Ext is the file extension of stored replays.
const Ext = ".aof"

const tempSuffix = ".tmp"

var (
	// ErrNotFound is returned when no replay exists under the requested name.
	ErrNotFound = errors.New("replay not found")
	// ErrInvalidName is returned for names that cannot be used as a file name.
	ErrInvalidName = errors.New("invalid replay name")
)

// Storage is the byte-level backend of the archive. Each replay is written
// and read as one whole buffer.
type Storage interface {
	Write(ctx context.Context, name string, data []byte) error
	ReadAll(ctx context.Context, name string) ([]byte, error)
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) ([]FileInfo, error)
}

// FileInfo describes one stored replay.
type FileInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size_bytes"`
	ModTime time.Time `json:"mod_time"`
}

// FileStorage keeps replays as <name>.aof files in one directory.
type FileStorage struct {
	dir string
}

// NewFileStorage creates the directory if needed and returns a storage rooted there.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create replay directory %s: %w", dir, err)
	}
	return &FileStorage{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *FileStorage) Dir() string {
	return s.dir
}

// ValidateName rejects names that are empty, contain path separators or
// would escape the storage directory.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.HasSuffix(name, tempSuffix):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (s *FileStorage) path(name string) string {
	return filepath.Join(s.dir, name+Ext)
}

// Write stores data under name. The file is written to a temporary name
// and renamed into place, so readers never see a partial replay.
func (s *FileStorage) Write(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, name+Ext+".*"+tempSuffix)
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write replay %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync replay %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close replay %s: %w", name, err)
	}

	if err := os.Rename(tmpPath, s.path(name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move replay %s into place: %w", name, err)
	}
	return nil
}

// ReadAll returns the full contents of the replay stored under name.
func (s *FileStorage) ReadAll(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read replay %s: %w", name, err)
	}
	return data, nil
}

// Remove deletes the replay stored under name.
func (s *FileStorage) Remove(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to remove replay %s: %w", name, err)
	}
	return nil
}

// List returns the stored replays sorted by name.
func (s *FileStorage) List(ctx context.Context) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay directory: %w", err)
	}

	files := []FileInfo{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || filepath.Ext(entry.Name()) != Ext {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:    strings.TrimSuffix(entry.Name(), Ext),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// RemoveStaleTemp deletes temporary files left by interrupted writes that
// are older than cutoff. It returns the number of files removed and their
// combined size.
func (s *FileStorage) RemoveStaleTemp(cutoff time.Time) (int, int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read replay directory: %w", err)
	}

	var (
		removed int
		freed   int64
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tempSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
			removed++
			freed += info.Size()
		}
	}
	return removed, freed, nil
}
