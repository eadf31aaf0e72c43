//go:build fuzz

package aof

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// FuzzDecode checks that arbitrary input never panics and that anything
// Decode accepts can be encoded again.
func FuzzDecode(f *testing.F) {
	buf, _, err := Encode(exampleReplay())
	require.NoError(f, err)

	f.Add(buf)
	f.Add([]byte{8})
	f.Add([]byte{11, 0, 0})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		meta, frags, err := Decode(data)
		if err != nil {
			require.True(t, IsFormatError(err), "unexpected error kind: %v", err)
			return
		}
		require.NotNil(t, meta)
		require.Positive(t, frags.Keyframes.Len())
		require.Positive(t, frags.Chunks.Len())
	})
}
