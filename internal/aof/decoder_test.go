package aof

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// legacyHeader writes the metadata of a revision 8, 10 or 11 buffer with an
// empty roster.
func legacyHeader(rev uint8) *builder {
	b := newBuilder(64).WriteUint8(rev).WriteUint8(2)
	if rev == 8 {
		b.WriteUint32(123456)
	} else {
		b.WriteUint32(1).WriteUint32(2)
	}
	return b.WriteUint8(6).WriteUint8(24).WriteUint8(1).
		WriteShortBytes([]byte("k")).
		WriteUint8(0). // complete
		WriteUint8(3).
		WriteUint8(4).
		WriteUint8(0) // players
}

func TestDecode_Revision8(t *testing.T) {
	b := legacyHeader(8)
	b.WriteUint8(2).
		WriteUint8(1).WriteBlob([]byte("k1")).
		WriteUint8(2).WriteBlob([]byte("k2"))
	b.WriteUint8(1).
		WriteUint8(4).WriteBlob([]byte("c4"))

	meta, data, err := Decode(b.Build())
	require.NoError(t, err)

	assert.Equal(t, uint8(8), meta.FileVersion)
	assert.Equal(t, uint8(2), meta.RegionID)
	assert.Equal(t, uint64(123456), meta.GameID)
	assert.Equal(t, "6.24.1", meta.RiotVersion)
	assert.Equal(t, "aw==", meta.Key)
	assert.False(t, meta.Complete)
	assert.Equal(t, uint8(3), meta.EndStartupChunkID)
	assert.Equal(t, uint8(4), meta.StartGameChunkID)
	assert.NotNil(t, meta.Players)
	assert.Empty(t, meta.Players)

	assert.Equal(t, []uint16{1, 2}, data.Keyframes.IDs())
	assert.Equal(t, []uint16{4}, data.Chunks.IDs())
	assert.Equal(t, uint16(4), meta.EndGameChunkID)

	kf, ok := data.Keyframes.Get(2)
	require.True(t, ok)
	assert.Equal(t, []byte("k2"), kf.Data)
}

func TestDecode_Revision10(t *testing.T) {
	b := legacyHeader(10)
	b.WriteUint8(1).WriteUint8(9).WriteBlob([]byte("k"))
	b.WriteUint8(2).
		WriteUint8(3).WriteBlob([]byte("c3")).
		WriteUint8(8).WriteBlob([]byte("c8"))

	meta, data, err := Decode(b.Build())
	require.NoError(t, err)

	assert.Equal(t, uint64(1)<<32|2, meta.GameID)
	assert.Equal(t, []uint16{9}, data.Keyframes.IDs())
	assert.Equal(t, []uint16{3, 8}, data.Chunks.IDs())
	assert.Equal(t, uint16(8), meta.EndGameChunkID)
}

func TestDecode_Revision11SynthesizesIDs(t *testing.T) {
	b := legacyHeader(11)
	b.WriteUint16(2).
		WriteUint8(0x07).WriteBlob([]byte("first")).
		WriteUint8(0x09).WriteBlob([]byte("second"))
	b.WriteUint16(3).
		WriteUint8(0xFF).WriteBlob([]byte("a")).
		WriteUint8(0xFF).WriteBlob([]byte("b")).
		WriteUint8(0x00).WriteBlob([]byte("c"))

	meta, data, err := Decode(b.Build())
	require.NoError(t, err)

	assert.Equal(t, []uint16{1, 2}, data.Keyframes.IDs())
	assert.Equal(t, []uint16{1, 2, 3}, data.Chunks.IDs())
	assert.Equal(t, uint16(3), meta.EndGameChunkID)

	kf, _ := data.Keyframes.Get(1)
	assert.Equal(t, []byte("first"), kf.Data)
	ch, _ := data.Chunks.Get(3)
	assert.Equal(t, []byte("c"), ch.Data)
}

func TestDecode_FutureRevisionReadAsCurrent(t *testing.T) {
	buf, _, err := Encode(exampleReplay())
	require.NoError(t, err)
	buf[0] = 13

	meta, data, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, uint8(13), meta.FileVersion)
	assert.Equal(t, []uint16{1}, data.Chunks.IDs())
}

func TestDecode_RejectsRevisions(t *testing.T) {
	testCases := []struct {
		rev uint8
		err error
	}{
		{0, ErrObsoleteFormat},
		{1, ErrObsoleteFormat},
		{7, ErrObsoleteFormat},
		{9, ErrCorruptFormat},
	}

	for _, tc := range testCases {
		buf := []byte{tc.rev, 1, 2, 3, 4, 5, 6, 7, 8, 9}

		meta, data, err := Decode(buf)
		require.ErrorIs(t, err, tc.err, "revision %d", tc.rev)
		assert.Nil(t, meta)
		assert.Nil(t, data)
		assert.True(t, IsFormatError(err))

		var fe *FormatError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, tc.rev, fe.Revision)
	}
}

func TestDecode_EmptyBuffer(t *testing.T) {
	_, _, err := Decode(nil)
	require.ErrorIs(t, err, ErrTruncatedInput)

	_, err = PeekRevision([]byte{})
	require.ErrorIs(t, err, ErrTruncatedInput)
}

func TestDecode_EveryPrefixIsTruncated(t *testing.T) {
	buf, _, err := Encode(exampleReplay())
	require.NoError(t, err)

	for n := 0; n < len(buf); n++ {
		_, _, err := Decode(buf[:n])
		require.ErrorIs(t, err, ErrTruncatedInput, "prefix of %d bytes", n)
	}
}

func TestDecode_TrailingBytesIgnored(t *testing.T) {
	buf, _, err := Encode(exampleReplay())
	require.NoError(t, err)

	_, data, err := Decode(append(buf, 0xDE, 0xAD))
	require.NoError(t, err)
	assert.Equal(t, 1, data.Chunks.Len())
}

func TestDecode_NoFragments(t *testing.T) {
	t.Run("no keyframes", func(t *testing.T) {
		b := legacyHeader(10)
		b.WriteUint8(0).WriteUint8(1).WriteUint8(1).WriteBlob([]byte("c"))

		_, _, err := Decode(b.Build())
		require.ErrorIs(t, err, ErrNoKeyframes)
		assert.True(t, IsFormatError(err))
	})

	t.Run("no chunks", func(t *testing.T) {
		b := legacyHeader(10)
		b.WriteUint8(1).WriteUint8(1).WriteBlob([]byte("k")).WriteUint8(0)

		_, _, err := Decode(b.Build())
		require.ErrorIs(t, err, ErrNoChunks)
	})
}

func TestDecode_NegativeLengthIsTruncated(t *testing.T) {
	b := legacyHeader(10)
	b.WriteUint8(1).WriteUint8(1).WriteInt32(-1).WriteUint8(0xAA)

	_, _, err := Decode(b.Build())
	require.ErrorIs(t, err, ErrTruncatedInput)

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "keyframe 1 data", fe.Field)
}

func TestDecode_DuplicateIDLaterWins(t *testing.T) {
	b := legacyHeader(10)
	b.WriteUint8(1).WriteUint8(1).WriteBlob([]byte("k"))
	b.WriteUint8(2).
		WriteUint8(5).WriteBlob([]byte("old")).
		WriteUint8(5).WriteBlob([]byte("new"))

	meta, data, err := Decode(b.Build())
	require.NoError(t, err)

	assert.Equal(t, 1, data.Chunks.Len())
	ch, _ := data.Chunks.Get(5)
	assert.Equal(t, []byte("new"), ch.Data)
	assert.Equal(t, uint16(5), meta.EndGameChunkID)
}

func TestDecode_DoesNotAliasInput(t *testing.T) {
	buf, _, err := Encode(exampleReplay())
	require.NoError(t, err)

	_, data, err := Decode(buf)
	require.NoError(t, err)

	for i := range buf {
		buf[i] = 0
	}

	kf, _ := data.Keyframes.Get(1)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, kf.Data)
}

func TestDecode_PlayerNameRawBytes(t *testing.T) {
	rp := exampleReplay()
	rp.Players[0].Name = string([]byte{0xFF, 0xFE, 'x'})

	buf, _, err := Encode(rp)
	require.NoError(t, err)

	meta, _, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFE, 'x'}, []byte(meta.Players[0].Name))
}

func TestDecode_RosterAlwaysPresent(t *testing.T) {
	rp := exampleReplay()
	rp.Players = nil

	buf, warnings, err := Encode(rp)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	meta, _, err := Decode(buf)
	require.NoError(t, err)
	assert.NotNil(t, meta.Players)
	assert.Empty(t, meta.Players)

	rp.Metadata = *meta
	_, warnings, err = Encode(rp)
	require.NoError(t, err)
	assert.Equal(t, Warnings{WarnNoPlayers}, warnings)
}

func TestPolicyFor(t *testing.T) {
	p, err := PolicyFor(11)
	require.NoError(t, err)
	assert.True(t, p.SynthesizedIDs)
	assert.Equal(t, 2, p.CountWidth)
	assert.Equal(t, 1, p.IDWidth)

	p, err = PolicyFor(200)
	require.NoError(t, err)
	assert.Equal(t, uint8(200), p.Revision)
	assert.Equal(t, 2, p.IDWidth)
	assert.False(t, p.SynthesizedIDs)

	_, err = PolicyFor(CorruptRevision)
	assert.ErrorIs(t, err, ErrCorruptFormat)
}
