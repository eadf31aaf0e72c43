// Package health runs periodic checks on the replay archive: disk usage of
// the replay volume, catalog consistency with the stored files, and a
// heartbeat carrying archive totals.
package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aof-gg/aofkeeper/internal/config"
	"github.com/aof-gg/aofkeeper/internal/events"
	"github.com/aof-gg/aofkeeper/internal/storage"
	"github.com/aof-gg/aofkeeper/internal/util"
)

// Manager runs the periodic health checks.
type Manager struct {
	cfg       config.HealthConfig
	archive   *storage.Archive
	replayDir string
	eventBus  events.Emitter
	logger    zerolog.Logger

	started   time.Time
	diskUsage func(path string) (*util.DiskUsage, error)
}

// NewManager creates a new health check manager. The event bus may be nil.
func NewManager(cfg config.HealthConfig, archive *storage.Archive, replayDir string, eventBus events.Emitter) *Manager {
	return &Manager{
		cfg:       cfg,
		archive:   archive,
		replayDir: replayDir,
		eventBus:  eventBus,
		logger:    util.ComponentLogger("health"),
		started:   time.Now(),
		diskUsage: util.GetDiskUsage,
	}
}

// Start launches each enabled check on its own ticker and blocks until ctx
// is cancelled.
func (m *Manager) Start(ctx context.Context) {
	checks := []struct {
		name     string
		interval int
		fn       func(context.Context)
	}{
		{"disk_utilization", m.cfg.DiskCheckInterval, m.checkDiskUtilization},
		{"catalog_consistency", m.cfg.ConsistencyInterval, m.checkCatalogConsistency},
		{"heartbeat", m.cfg.HeartbeatInterval, m.heartbeat},
	}

	started := 0
	for _, check := range checks {
		if check.interval <= 0 {
			continue
		}
		started++

		go func() {
			ticker := time.NewTicker(time.Duration(check.interval) * time.Second)
			defer ticker.Stop()

			m.logger.Debug().Str("check", check.name).Msg("running initial health check")
			check.fn(ctx)

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					check.fn(ctx)
				}
			}
		}()
	}

	m.logger.Info().Int("checks", started).Msg("health check manager started")

	<-ctx.Done()
	m.logger.Info().Msg("health check manager stopped")
}

// diskLevel maps a usage percentage to an alert level. Below the warning
// threshold it returns the empty string.
func diskLevel(usedPercent float64, warnPercent int) string {
	switch {
	case usedPercent >= 100:
		return "critical"
	case usedPercent >= 95:
		return "error"
	case usedPercent >= 90:
		return "warning"
	case usedPercent >= float64(warnPercent):
		return "info"
	default:
		return ""
	}
}

// checkDiskUtilization monitors the replay volume and alerts at thresholds.
func (m *Manager) checkDiskUtilization(ctx context.Context) {
	usage, err := m.diskUsage(m.replayDir)
	if err != nil {
		m.logger.Warn().Err(err).Msg("disk utilization check failed")
		return
	}

	m.logger.Debug().
		Float64("used_percent", usage.UsedPercent).
		Str("free", util.FormatBytes(int64(usage.Free))).
		Msg("disk utilization")

	level := diskLevel(usage.UsedPercent, m.cfg.DiskWarnPercent)
	if level == "" {
		return
	}

	m.logger.Warn().
		Str("level", level).
		Msgf("replay volume at %.1f%% (%s free of %s)",
			usage.UsedPercent, util.FormatBytes(int64(usage.Free)), util.FormatBytes(int64(usage.Total)))

	m.emit(ctx, events.EventDiskAlert, events.DiskAlertPayload{
		Path:        usage.Path,
		Level:       level,
		UsedPercent: usage.UsedPercent,
		FreeBytes:   usage.Free,
		TotalBytes:  usage.Total,
	})
}

// checkCatalogConsistency repairs drift between the catalog and the files.
func (m *Manager) checkCatalogConsistency(ctx context.Context) {
	if _, err := m.archive.Reconcile(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("catalog consistency check failed")
	}
}

// heartbeat publishes the archive totals.
func (m *Manager) heartbeat(ctx context.Context) {
	count, total, err := m.archive.Stats()
	if err != nil {
		m.logger.Warn().Err(err).Msg("heartbeat stats unavailable")
		return
	}

	m.emit(ctx, events.EventHeartbeat, events.HeartbeatPayload{
		Replays:    count,
		TotalBytes: total,
		Uptime:     time.Since(m.started).Truncate(time.Second).String(),
		Timestamp:  time.Now().UTC(),
	})
}

func (m *Manager) emit(ctx context.Context, t events.EventType, payload interface{}) {
	if m.eventBus == nil {
		return
	}
	m.eventBus.Emit(ctx, events.Event{Type: t, Source: "health_check", Payload: payload})
}
