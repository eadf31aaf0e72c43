// Package scheduler runs the daily replay cleaner.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aof-gg/aofkeeper/internal/config"
	"github.com/aof-gg/aofkeeper/internal/events"
	"github.com/aof-gg/aofkeeper/internal/storage"
	"github.com/aof-gg/aofkeeper/internal/util"
)

// ErrInvalidRetention is returned by RunOnce when the retention period is
// shorter than one day. Such a cutoff would select every catalogued replay.
var ErrInvalidRetention = errors.New("retention days must be at least 1")

// Report summarizes one cleaner pass.
type Report struct {
	Removed    []string
	Orphans    int
	TempFiles  int
	FreedBytes int64
}

// Scheduler runs the replay cleaner at the configured time of day.
type Scheduler struct {
	cfg      config.ReplayCleanerConfig
	archive  *storage.Archive
	store    *storage.FileStorage
	eventBus events.Emitter
	logger   zerolog.Logger
	now      func() time.Time
}

// NewScheduler creates a new task scheduler. The event bus may be nil.
func NewScheduler(cfg config.ReplayCleanerConfig, archive *storage.Archive, store *storage.FileStorage, eventBus events.Emitter) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		archive:  archive,
		store:    store,
		eventBus: eventBus,
		logger:   util.ComponentLogger("scheduler"),
		now:      time.Now,
	}
}

// Start runs the cleaner loop until ctx is cancelled. It returns
// immediately when the cleaner is disabled.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info().Msg("replay cleaner disabled")
		return
	}

	s.logger.Info().Msg("scheduler started")
	s.runReplayCleanerLoop(ctx)
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runReplayCleanerLoop(ctx context.Context) {
	for {
		nextRun := NextRun(s.now(), s.cfg.CleanupTime)
		sleepDuration := nextRun.Sub(s.now())
		if sleepDuration <= 0 {
			sleepDuration = 24 * time.Hour
		}

		s.logger.Info().
			Time("next_run", nextRun).
			Dur("sleep", sleepDuration).
			Msg("replay cleaner scheduled")

		timer := time.NewTimer(sleepDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("replay cleaner encountered errors")
			}
		}
	}
}

// RunOnce performs one cleaner pass: catalogued replays past the retention
// period, uncatalogued replay files with an old modification time and stale
// temporary files are removed.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	var report Report

	if s.cfg.RetentionDays < 1 {
		return report, fmt.Errorf("%w (got %d)", ErrInvalidRetention, s.cfg.RetentionDays)
	}

	now := s.now()
	cutoff := now.Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
	tmpCutoff := now.Add(-time.Duration(s.cfg.TmpRetentionHours) * time.Hour)

	s.logger.Info().
		Str("directory", s.store.Dir()).
		Int("retention_days", s.cfg.RetentionDays).
		Msg("running replay cleaner")

	sizes := make(map[string]int64)
	files, err := s.store.List(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list replays: %w", err)
	}
	for _, f := range files {
		sizes[f.Name] = f.Size
	}

	stale, err := s.archive.OlderThan(cutoff)
	if err != nil {
		return report, fmt.Errorf("failed to query stale replays: %w", err)
	}

	var errs []error
	for _, entry := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.archive.Delete(ctx, entry.Name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		report.Removed = append(report.Removed, entry.Name)
		report.FreedBytes += sizes[entry.Name]
		delete(sizes, entry.Name)
	}

	for _, f := range files {
		if _, pending := sizes[f.Name]; !pending || !f.ModTime.Before(cutoff) {
			continue
		}
		if _, err := s.archive.Entry(f.Name); !errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err := s.store.Remove(ctx, f.Name); err != nil {
			errs = append(errs, err)
			continue
		}
		report.Removed = append(report.Removed, f.Name)
		report.Orphans++
		report.FreedBytes += f.Size
	}

	tmpCount, tmpBytes, err := s.store.RemoveStaleTemp(tmpCutoff)
	if err != nil {
		errs = append(errs, err)
	}
	report.TempFiles = tmpCount
	report.FreedBytes += tmpBytes

	s.logger.Info().
		Int("deleted_replays", len(report.Removed)).
		Int("deleted_temp_files", report.TempFiles).
		Str("freed_space", util.FormatBytes(report.FreedBytes)).
		Msg("replay cleaner completed")

	if s.eventBus != nil {
		s.eventBus.Emit(ctx, events.Event{
			Type:   events.EventReplayPruned,
			Source: "scheduler",
			Payload: events.ReplayPrunedPayload{
				Removed:    report.Removed,
				TempFiles:  report.TempFiles,
				FreedBytes: report.FreedBytes,
			},
		})
	}

	return report, errors.Join(errs...)
}

// NextRun returns the next occurrence of the HH:MM clock time after now, in
// now's location. Unparseable values fall back to 04:00.
func NextRun(now time.Time, clock string) time.Time {
	hour, minute := 4, 0
	if t, err := time.Parse("15:04", clock); err == nil {
		hour, minute = t.Hour(), t.Minute()
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
