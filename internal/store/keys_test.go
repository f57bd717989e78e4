package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("query0"), prefixEnd([]byte("query/")))
	assert.Equal(t, []byte{0x01}, prefixEnd([]byte{0x00, 0xff}))
	assert.Nil(t, prefixEnd([]byte{0xff, 0xff}))
}

func TestChunkKeyOffsetRoundTrip(t *testing.T) {
	k := chunkKey("owner", "uid/with/slashes", 3, 1<<20)
	off, err := chunkOffset(k)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), off)
	assert.True(t, len(chunkPrefix("owner", "uid/with/slashes", 3)) < len(k))
}

func TestMessagePrefixDoesNotCoverSiblingUIDs(t *testing.T) {
	// A uid that is a prefix of another must not share its attachment range.
	a := string(attachmentPrefix("o", "ab"))
	b := string(attachmentKey("o", "abc", 0))
	assert.NotEqual(t, a, b[:len(a)])
}
