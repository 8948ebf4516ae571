package resp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_KeepsProgressAcrossFeeds(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("*3\r\n$1\r\na\r\n$1\r\nb"))

	_, ok, err := d.Next()
	require.NoError(t, err)
	require.False(t, ok)

	// the header and the first element are not parsed again
	assert.True(t, d.frame.started)
	assert.Equal(t, 3, d.frame.count)
	assert.Equal(t, 11, d.frame.off)
	assert.Len(t, d.frame.spans, 1)

	d.Feed([]byte("\r\n$1\r\nc\r\n*1\r\n$4\r\nPING"))

	r, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Request{[]byte("a"), []byte("b"), []byte("c")}, r)

	// the next frame starts from a clean state
	_, ok, err = d.Next()
	require.NoError(t, err)
	require.False(t, ok)
	assert.Equal(t, 1, d.frame.count)
	assert.Equal(t, 4, d.frame.off)
	assert.Empty(t, d.frame.spans)
}

func TestValueTypes(t *testing.T) {
	assert.Equal(t, TypeSimpleString, MakeOK().Type)
	assert.Equal(t, TypeError, MakeError("ERR x").Type)
	assert.Equal(t, TypeInteger, MakeInteger(1).Type)
	assert.Equal(t, TypeBulkString, MakeNilBulkString().Type)
	assert.Equal(t, TypeArray, MakeArray(nil).Type)
	assert.Equal(t, byte('-'), TypeError)
}
