package aof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderReader(t *testing.T) {
	b := newBuilder(0).
		WriteUint8(0xAB).
		WriteUint16(0x1234).
		WriteUint32(0xDEADBEEF).
		WriteInt32(-2).
		WriteUint(1, 7).
		WriteUint(2, 0x0102).
		WriteShortBytes([]byte("hi")).
		WriteBlob([]byte{9, 8, 7})

	assert.Equal(t, 1+2+4+4+1+2+3+7, b.Len())

	assert.Equal(t, []byte{0xAB, 0x12, 0x34, 0xDE, 0xAD, 0xBE, 0xEF}, b.Build()[:7])

	r := newReader(b.Build())

	u8, err := r.uint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), u8)

	u16, err := r.uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16)

	u32, err := r.uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), u32)

	i32, err := r.int32()
	require.NoError(t, err)
	assert.Equal(t, int32(-2), i32)

	w1, err := r.uint(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), w1)

	w2, err := r.uint(2)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), w2)

	s, err := r.shortBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), s)

	blob, err := r.blob()
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7}, blob)

	assert.Equal(t, 0, r.Remaining())
	_, err = r.uint8()
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestReader_FailedReadKeepsOffset(t *testing.T) {
	r := newReader([]byte{0, 0, 0})

	_, err := r.uint32()
	require.ErrorIs(t, err, ErrTruncatedInput)
	assert.Equal(t, 0, r.Offset())

	_, err = r.take(-1)
	require.ErrorIs(t, err, ErrTruncatedInput)
	assert.Equal(t, 3, r.Remaining())
}
