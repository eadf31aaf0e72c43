package aof

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aof-gg/aofkeeper/internal/replay"
)

// Fixed part of the header: revision, region, game id halves, three version
// bytes, key length, completeness flag, two chunk ids and the player count.
const headerSize = 1 + 1 + 4 + 4 + 3 + 1 + 1 + 1 + 1 + 1

// Fixed part of a player entry: id, name length, team, league, rank,
// champion and two spells.
const playerSize = 4 + 1 + 1 + 1 + 1 + 4 + 4 + 4

// Encode validates rp and serializes it using CurrentRevision. Nothing is
// produced when validation or a range check fails.
func Encode(rp *replay.Replay) ([]byte, Warnings, error) {
	warnings, err := Validate(rp)
	if err != nil {
		return nil, nil, err
	}

	version, err := parseRiotVersion(rp.RiotVersion)
	if err != nil {
		return nil, nil, err
	}

	key, err := decodeKey(rp.Key)
	if err != nil {
		return nil, nil, err
	}

	if err := checkPlayers(rp.Players); err != nil {
		return nil, nil, err
	}
	if err := checkFragments("keyframes", rp.Keyframes); err != nil {
		return nil, nil, err
	}
	if err := checkFragments("chunks", rp.Chunks); err != nil {
		return nil, nil, err
	}

	policy := policies[CurrentRevision]
	size := encodedSize(rp, policy, len(key))
	b := newBuilder(size)

	b.WriteUint8(CurrentRevision).
		WriteUint8(rp.RegionID).
		WriteUint32(uint32(rp.GameID >> 32)).
		WriteUint32(uint32(rp.GameID)).
		WriteUint8(version[0]).
		WriteUint8(version[1]).
		WriteUint8(version[2]).
		WriteShortBytes(key).
		WriteUint8(completeness(rp.Keyframes, rp.Chunks)).
		WriteUint8(rp.EndStartupChunkID).
		WriteUint8(rp.StartGameChunkID)

	b.WriteUint8(uint8(len(rp.Players)))
	for _, p := range rp.Players {
		b.WriteInt32(p.ID).
			WriteShortBytes([]byte(p.Name)).
			WriteUint8(p.TeamNr).
			WriteUint8(p.LeagueID).
			WriteUint8(p.LeagueRank).
			WriteInt32(p.ChampionID).
			WriteInt32(p.Spell1ID).
			WriteInt32(p.Spell2ID)
	}

	writeFragments(b, policy, rp.Keyframes)
	writeFragments(b, policy, rp.Chunks)

	if b.Len() != size {
		return nil, nil, fmt.Errorf("aof: wrote %d bytes, expected %d", b.Len(), size)
	}
	return b.Build(), warnings, nil
}

func writeFragments(b *builder, policy Policy, frags *replay.Fragments) {
	b.WriteUint(policy.CountWidth, uint16(frags.Len()))
	for fr := range frags.All() {
		b.WriteUint(policy.IDWidth, fr.ID).WriteBlob(fr.Data)
	}
}

// IsComplete applies the legacy heuristic: a collection counts as complete
// when its populated entries equal its sparse length minus one, and both
// collections must pass.
func IsComplete(keyframes, chunks *replay.Fragments) bool {
	return keyframes.Len() == keyframes.Span()-1 && chunks.Len() == chunks.Span()-1
}

func completeness(keyframes, chunks *replay.Fragments) uint8 {
	if IsComplete(keyframes, chunks) {
		return 1
	}
	return 0
}

func encodedSize(rp *replay.Replay, policy Policy, keyLen int) int {
	n := headerSize + keyLen
	for _, p := range rp.Players {
		n += playerSize + len(p.Name)
	}
	for _, frags := range []*replay.Fragments{rp.Keyframes, rp.Chunks} {
		n += policy.CountWidth
		n += frags.Len() * (policy.IDWidth + 4)
		n += frags.PayloadSize()
	}
	return n
}

// parseRiotVersion splits "major.minor.patch" into three bytes. Components
// past the third are ignored.
func parseRiotVersion(v string) ([3]uint8, error) {
	var out [3]uint8

	parts := strings.Split(v, ".")
	if len(parts) < 3 {
		return out, &FieldRangeError{Field: "riotVersion", Value: v}
	}

	for i := range out {
		n, err := strconv.ParseUint(parts[i], 10, 8)
		if err != nil {
			return out, &FieldRangeError{Field: "riotVersion", Value: v}
		}
		out[i] = uint8(n)
	}
	return out, nil
}

func decodeKey(key string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, ErrInvalidKey
	}
	if len(raw) > math.MaxUint8 {
		return nil, &FieldRangeError{Field: "key", Value: len(raw)}
	}
	return raw, nil
}

func checkPlayers(players []replay.Player) error {
	if len(players) > math.MaxUint8 {
		return &FieldRangeError{Field: "players", Value: len(players)}
	}
	for _, p := range players {
		if len(p.Name) > math.MaxUint8 {
			return &FieldRangeError{Field: "player name", Value: p.Name}
		}
	}
	return nil
}

func checkFragments(field string, frags *replay.Fragments) error {
	if frags.Len() > math.MaxUint16 {
		return &FieldRangeError{Field: field, Value: frags.Len()}
	}
	for fr := range frags.All() {
		if len(fr.Data) > math.MaxInt32 {
			return &FieldRangeError{Field: field, Value: len(fr.Data)}
		}
	}
	return nil
}
