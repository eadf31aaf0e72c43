// Package events defines the replay archive events and the bus that carries them.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Archive events
	EventReplaySaved    EventType = "replay_saved"
	EventReplayLoaded   EventType = "replay_loaded"
	EventReplayRejected EventType = "replay_rejected"
	EventReplayDeleted  EventType = "replay_deleted"

	// Maintenance events
	EventReplayPruned      EventType = "replay_pruned"
	EventCatalogReconciled EventType = "catalog_reconciled"
	EventDiskAlert         EventType = "disk_alert"
	EventHeartbeat         EventType = "heartbeat"

	// System events
	EventShutdown EventType = "shutdown"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// ReplaySavedPayload describes a replay written to the archive.
type ReplaySavedPayload struct {
	Name      string    `json:"name"`
	GameID    uint64    `json:"game_id"`
	RegionID  uint8     `json:"region_id"`
	Complete  bool      `json:"complete"`
	Keyframes int       `json:"keyframes"`
	Chunks    int       `json:"chunks"`
	SizeBytes int       `json:"size_bytes"`
	Warnings  []string  `json:"warnings,omitempty"`
	SavedAt   time.Time `json:"saved_at"`
}

// ReplayLoadedPayload describes a replay read back from the archive.
type ReplayLoadedPayload struct {
	Name        string `json:"name"`
	GameID      uint64 `json:"game_id"`
	FileVersion uint8  `json:"file_version"`
	SizeBytes   int    `json:"size_bytes"`
}

// ReplayRejectedPayload is emitted when a replay fails validation or decoding.
type ReplayRejectedPayload struct {
	Name   string `json:"name"`
	Stage  string `json:"stage"` // "encode" or "decode"
	Reason string `json:"reason"`
}

// ReplayDeletedPayload is emitted when a replay is removed on request.
type ReplayDeletedPayload struct {
	Name string `json:"name"`
}

// ReplayPrunedPayload summarizes one cleaner pass.
type ReplayPrunedPayload struct {
	Removed    []string `json:"removed"`
	TempFiles  int      `json:"temp_files"`
	FreedBytes int64    `json:"freed_bytes"`
}

// CatalogReconciledPayload lists the catalog repairs made by a consistency check.
type CatalogReconciledPayload struct {
	Indexed    []string `json:"indexed"`
	Dropped    []string `json:"dropped"`
	Unreadable []string `json:"unreadable"`
}

// DiskAlertPayload is emitted when the replay volume passes a usage threshold.
type DiskAlertPayload struct {
	Path        string  `json:"path"`
	Level       string  `json:"level"`
	UsedPercent float64 `json:"used_percent"`
	FreeBytes   uint64  `json:"free_bytes"`
	TotalBytes  uint64  `json:"total_bytes"`
}

// HeartbeatPayload is published periodically while the service runs.
type HeartbeatPayload struct {
	Replays    int       `json:"replays"`
	TotalBytes int64     `json:"total_bytes"`
	Uptime     string    `json:"uptime"`
	Timestamp  time.Time `json:"timestamp"`
}
