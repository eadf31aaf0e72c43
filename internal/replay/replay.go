// Package replay defines the in-memory model of a recorded match: its
// metadata, player roster and the keyframe/chunk fragments that make up
// the spectator stream.
package replay

// Metadata describes a recorded match.
type Metadata struct {
	RegionID    uint8  `json:"region_id"`
	GameID      uint64 `json:"game_id"`
	RiotVersion string `json:"riot_version"` // dotted "major.minor.patch"
	Key         string `json:"key"`          // base64 encoded observer key

	// Complete reports whether every fragment of the source recording is present.
	// It is derived by the encoder and read back by the decoder.
	Complete bool `json:"complete"`

	EndStartupChunkID uint8 `json:"end_startup_chunk_id"`
	StartGameChunkID  uint8 `json:"start_game_chunk_id"`

	// Populated by the decoder only.
	EndGameChunkID uint16 `json:"end_game_chunk_id"`
	FileVersion    uint8  `json:"file_version"`

	// Players is the roster in write order. A nil roster means no roster was
	// supplied; a non-nil empty roster means one was supplied with nobody in it.
	Players []Player `json:"players"`
}

// Player is a single roster entry.
type Player struct {
	ID         int32  `json:"id"`
	Name       string `json:"name"`
	TeamNr     uint8  `json:"team_nr"`
	LeagueID   uint8  `json:"league_id"`
	LeagueRank uint8  `json:"league_rank"`
	ChampionID int32  `json:"champion_id"`
	Spell1ID   int32  `json:"spell1_id"`
	Spell2ID   int32  `json:"spell2_id"`
}

// Data holds the fragment streams of a replay.
// A nil collection is treated as absent.
type Data struct {
	Keyframes *Fragments `json:"-"`
	Chunks    *Fragments `json:"-"`
}

// Replay is a complete record as handed to the encoder.
type Replay struct {
	Metadata
	Data
}
