package aof

// Format revisions.
const (
	CurrentRevision uint8 = 12 // written by Encode
	MinRevision     uint8 = 8  // oldest readable revision
	CorruptRevision uint8 = 9  // shipped with a broken writer, never readable
)

// idStrategy produces the id of the fragment at position pos of a
// keyframe or chunk sequence.
type idStrategy func(r *reader, pos int) (uint16, error)

// Policy describes the field widths and id rules of one format revision.
type Policy struct {
	Revision uint8

	// SplitGameID is true when the game id is stored as two uint32 halves.
	SplitGameID bool
	// CountWidth is the byte width of the keyframe and chunk counts.
	CountWidth int
	// IDWidth is the byte width each fragment id occupies on the wire.
	IDWidth int
	// SynthesizedIDs is true when the on-wire id bytes are ignored and the
	// id is derived from the position in the sequence.
	SynthesizedIDs bool

	readID idStrategy
}

var policies = map[uint8]Policy{
	8: {
		Revision:   8,
		CountWidth: 1,
		IDWidth:    1,
		readID:     explicitID8,
	},
	10: {
		Revision:    10,
		SplitGameID: true,
		CountWidth:  1,
		IDWidth:     1,
		readID:      explicitID8,
	},
	11: {
		Revision:       11,
		SplitGameID:    true,
		CountWidth:     2,
		IDWidth:        1,
		SynthesizedIDs: true,
		readID:         positionalID,
	},
	12: {
		Revision:    12,
		SplitGameID: true,
		CountWidth:  2,
		IDWidth:     2,
		readID:      explicitID16,
	},
}

// PolicyFor returns the layout rules for rev. Revisions older than
// MinRevision fail with ErrObsoleteFormat and CorruptRevision fails with
// ErrCorruptFormat. Revisions newer than CurrentRevision are read with the
// current rules.
func PolicyFor(rev uint8) (Policy, error) {
	switch {
	case rev < MinRevision:
		return Policy{}, ErrObsoleteFormat
	case rev == CorruptRevision:
		return Policy{}, ErrCorruptFormat
	}

	if p, ok := policies[rev]; ok {
		return p, nil
	}

	p := policies[CurrentRevision]
	p.Revision = rev
	return p, nil
}

func explicitID8(r *reader, _ int) (uint16, error) {
	id, err := r.uint8()
	return uint16(id), err
}

func explicitID16(r *reader, _ int) (uint16, error) {
	return r.uint16()
}

func positionalID(r *reader, pos int) (uint16, error) {
	if err := r.skip(1); err != nil {
		return 0, err
	}
	return uint16(pos + 1), nil
}
