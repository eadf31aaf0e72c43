package aof

import "github.com/aof-gg/aofkeeper/internal/replay"

// WarnNoPlayers is reported when a roster was supplied but is empty.
const WarnNoPlayers = "no players"

// Warnings are informational findings that do not block encoding.
type Warnings []string

// Validate checks that rp carries every mandatory metadata field and at
// least one keyframe and one chunk. On success it returns the (possibly
// empty) warnings; on failure it returns no warnings.
func Validate(rp *replay.Replay) (Warnings, error) {
	if err := checkMetadata(&rp.Metadata); err != nil {
		return nil, err
	}

	var warnings Warnings
	if rp.Players != nil && len(rp.Players) == 0 {
		warnings = append(warnings, WarnNoPlayers)
	}

	if rp.Keyframes.Len() == 0 {
		return nil, ErrNoKeyframes
	}
	if rp.Chunks.Len() == 0 {
		return nil, ErrNoChunks
	}

	return warnings, nil
}

// checkMetadata reports the first empty mandatory field.
func checkMetadata(m *replay.Metadata) error {
	fields := []struct {
		name    string
		missing bool
	}{
		{"regionId", m.RegionID == 0},
		{"gameId", m.GameID == 0},
		{"riotVersion", m.RiotVersion == ""},
		{"key", m.Key == ""},
		{"endStartupChunkId", m.EndStartupChunkID == 0},
		{"startGameChunkId", m.StartGameChunkID == 0},
	}

	for _, f := range fields {
		if f.missing {
			return &MissingFieldError{Field: f.name}
		}
	}
	return nil
}
