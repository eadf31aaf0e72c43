package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aof-gg/aofkeeper/internal/aof"
	"github.com/aof-gg/aofkeeper/internal/db"
	"github.com/aof-gg/aofkeeper/internal/events"
)

// ReconcileReport lists the catalog repairs made by Reconcile.
type ReconcileReport struct {
	Indexed    []string // files that were missing from the catalog
	Dropped    []string // catalog entries whose file is gone
	Unreadable []string // uncatalogued files that do not decode
}

// Changed reports whether Reconcile found anything out of step.
func (r ReconcileReport) Changed() bool {
	return len(r.Indexed)+len(r.Dropped)+len(r.Unreadable) > 0
}

// Reconcile brings the catalog in line with the stored files. Files without
// an entry are decoded and catalogued with their modification time as the
// save time; entries without a file are dropped. Files that do not decode
// are reported and left for the cleaner.
func (a *Archive) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	files, err := a.store.List(ctx)
	if err != nil {
		return report, err
	}
	entries, err := a.catalog.List(0)
	if err != nil {
		return report, err
	}

	catalogued := make(map[string]bool, len(entries))
	for _, e := range entries {
		catalogued[e.Name] = true
	}
	stored := make(map[string]bool, len(files))

	var errs []error
	for _, f := range files {
		stored[f.Name] = true
		if catalogued[f.Name] {
			continue
		}

		ok, err := a.index(ctx, f)
		switch {
		case err != nil:
			errs = append(errs, err)
		case ok:
			report.Indexed = append(report.Indexed, f.Name)
		default:
			report.Unreadable = append(report.Unreadable, f.Name)
		}
	}

	for _, e := range entries {
		if stored[e.Name] {
			continue
		}
		if err := a.catalog.Delete(e.Name); err != nil && !errors.Is(err, db.ErrNotFound) {
			errs = append(errs, fmt.Errorf("failed to drop catalog entry %s: %w", e.Name, err))
			continue
		}
		report.Dropped = append(report.Dropped, e.Name)
	}

	if report.Changed() {
		a.logger.Info().
			Int("indexed", len(report.Indexed)).
			Int("dropped", len(report.Dropped)).
			Int("unreadable", len(report.Unreadable)).
			Msg("catalog reconciled")

		a.emit(ctx, events.EventCatalogReconciled, events.CatalogReconciledPayload{
			Indexed:    report.Indexed,
			Dropped:    report.Dropped,
			Unreadable: report.Unreadable,
		})
	}

	return report, errors.Join(errs...)
}

// index catalogs one stored file. It returns false when the file does not
// decode.
func (a *Archive) index(ctx context.Context, f FileInfo) (bool, error) {
	raw, err := a.store.ReadAll(ctx, f.Name)
	if err != nil {
		return false, err
	}

	meta, data, err := aof.Decode(raw)
	if err != nil {
		a.logger.Warn().Err(err).Str("replay", f.Name).Msg("uncatalogued replay does not decode")
		return false, nil
	}

	entry := a.entry(f.Name, meta, data, len(raw))
	if !f.ModTime.IsZero() {
		entry.SavedAt = f.ModTime.UTC().Truncate(time.Millisecond)
	}
	if err := a.catalog.Upsert(entry); err != nil {
		return false, err
	}
	return true, nil
}
