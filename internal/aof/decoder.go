package aof

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/aof-gg/aofkeeper/internal/replay"
)

// decoder parses one buffer according to the policy of its revision.
type decoder struct {
	r      *reader
	policy Policy
}

// Decode parses a complete AOF buffer. The returned metadata and data do
// not alias buf. On any failure nothing is returned.
func Decode(buf []byte) (*replay.Metadata, *replay.Data, error) {
	rev, err := PeekRevision(buf)
	if err != nil {
		return nil, nil, err
	}

	policy, err := PolicyFor(rev)
	if err != nil {
		return nil, nil, &FormatError{Revision: rev, Err: err}
	}

	d := &decoder{r: newReader(buf), policy: policy}
	if err := d.r.skip(1); err != nil {
		return nil, nil, d.fail("revision", err)
	}

	meta, err := d.metadata()
	if err != nil {
		return nil, nil, err
	}
	meta.FileVersion = rev

	keyframes, err := d.fragments("keyframe")
	if err != nil {
		return nil, nil, err
	}
	if keyframes.Len() == 0 {
		return nil, nil, d.fail("keyframes", ErrNoKeyframes)
	}

	chunks, err := d.fragments("chunk")
	if err != nil {
		return nil, nil, err
	}
	last, ok := chunks.Last()
	if !ok {
		return nil, nil, d.fail("chunks", ErrNoChunks)
	}
	meta.EndGameChunkID = last.ID

	return meta, &replay.Data{Keyframes: keyframes, Chunks: chunks}, nil
}

// PeekRevision returns the format revision of buf without decoding it.
func PeekRevision(buf []byte) (uint8, error) {
	if len(buf) == 0 {
		return 0, &FormatError{Field: "revision", Err: ErrTruncatedInput}
	}
	return buf[0], nil
}

func (d *decoder) fail(field string, err error) error {
	return &FormatError{
		Revision: d.policy.Revision,
		Offset:   d.r.Offset(),
		Field:    field,
		Err:      err,
	}
}

func (d *decoder) metadata() (*replay.Metadata, error) {
	m := &replay.Metadata{}
	var err error

	if m.RegionID, err = d.r.uint8(); err != nil {
		return nil, d.fail("region id", err)
	}

	if m.GameID, err = d.gameID(); err != nil {
		return nil, d.fail("game id", err)
	}

	version, err := d.r.take(3)
	if err != nil {
		return nil, d.fail("riot version", err)
	}
	m.RiotVersion = fmt.Sprintf("%d.%d.%d", version[0], version[1], version[2])

	key, err := d.r.shortBytes()
	if err != nil {
		return nil, d.fail("key", err)
	}
	m.Key = base64.StdEncoding.EncodeToString(key)

	complete, err := d.r.uint8()
	if err != nil {
		return nil, d.fail("completeness flag", err)
	}
	m.Complete = complete != 0

	if m.EndStartupChunkID, err = d.r.uint8(); err != nil {
		return nil, d.fail("end startup chunk id", err)
	}
	if m.StartGameChunkID, err = d.r.uint8(); err != nil {
		return nil, d.fail("start game chunk id", err)
	}

	if m.Players, err = d.players(); err != nil {
		return nil, err
	}

	return m, nil
}

func (d *decoder) gameID() (uint64, error) {
	if !d.policy.SplitGameID {
		v, err := d.r.uint32()
		return uint64(v), err
	}

	high, err := d.r.uint32()
	if err != nil {
		return 0, err
	}
	low, err := d.r.uint32()
	if err != nil {
		return 0, err
	}
	return uint64(high)<<32 | uint64(low), nil
}

func (d *decoder) players() ([]replay.Player, error) {
	count, err := d.r.uint8()
	if err != nil {
		return nil, d.fail("player count", err)
	}

	players := make([]replay.Player, 0, count)
	for i := 0; i < int(count); i++ {
		p, err := d.player()
		if err != nil {
			return nil, d.fail(fmt.Sprintf("player %d", i), err)
		}
		players = append(players, p)
	}
	return players, nil
}

func (d *decoder) player() (replay.Player, error) {
	var (
		p   replay.Player
		err error
	)

	if p.ID, err = d.r.int32(); err != nil {
		return p, err
	}
	name, err := d.r.shortBytes()
	if err != nil {
		return p, err
	}
	p.Name = string(name)

	if p.TeamNr, err = d.r.uint8(); err != nil {
		return p, err
	}
	if p.LeagueID, err = d.r.uint8(); err != nil {
		return p, err
	}
	if p.LeagueRank, err = d.r.uint8(); err != nil {
		return p, err
	}
	if p.ChampionID, err = d.r.int32(); err != nil {
		return p, err
	}
	if p.Spell1ID, err = d.r.int32(); err != nil {
		return p, err
	}
	if p.Spell2ID, err = d.r.int32(); err != nil {
		return p, err
	}
	return p, nil
}

// fragments reads a count followed by that many id/length/data entries.
// Ids come from the revision's id strategy; a repeated id replaces the
// earlier entry.
func (d *decoder) fragments(kind string) (*replay.Fragments, error) {
	count, err := d.r.uint(d.policy.CountWidth)
	if err != nil {
		return nil, d.fail(kind+" count", err)
	}

	frags := replay.NewFragments()
	for i := 0; i < int(count); i++ {
		id, err := d.policy.readID(d.r, i)
		if err != nil {
			return nil, d.fail(fmt.Sprintf("%s %d id", kind, i), err)
		}
		data, err := d.r.blob()
		if err != nil {
			return nil, d.fail(fmt.Sprintf("%s %d data", kind, id), err)
		}
		frags.Put(replay.Fragment{ID: id, Data: bytes.Clone(data)})
	}
	return frags, nil
}
