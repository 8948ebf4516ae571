package persistence

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eternalApril/minikv/internal/resp"
)

func request(parts ...string) resp.Request {
	r := make(resp.Request, len(parts))
	for i, p := range parts {
		r[i] = []byte(p)
	}
	return r
}

func openTestAOF(t *testing.T, strategy string) *AOF {
	t.Helper()

	aof, err := NewAOF(filepath.Join(t.TempDir(), "data", "appendonly.aof"), strategy, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { aof.Close() }) //nolint:errcheck

	return aof
}

func TestAOF_AppendAndLoad(t *testing.T) {
	for _, strategy := range []string{"always", "everysec", "no"} {
		t.Run(strategy, func(t *testing.T) {
			aof := openTestAOF(t, strategy)

			written := []resp.Request{
				request("SET", "a", "1"),
				request("SET", "b", "\r\n\x00"),
				request("DEL", "a"),
				request("FLUSHDB"),
			}
			for _, r := range written {
				require.NoError(t, aof.Append(resp.EncodeRequest(r)))
			}

			// every append reaches the file before Append returns
			raw, err := os.ReadFile(aof.Filename())
			require.NoError(t, err)
			assert.Len(t, raw, totalLen(written))

			loaded, err := aof.Load(false)
			require.NoError(t, err)
			assert.Equal(t, written, loaded)
		})
	}
}

func TestAOF_ReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appendonly.aof")

	first, err := NewAOF(path, "always", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.Append(resp.EncodeRequest(request("SET", "a", "1"))))
	require.NoError(t, first.Close())

	second, err := NewAOF(path, "always", zap.NewNop())
	require.NoError(t, err)
	defer second.Close() //nolint:errcheck
	require.NoError(t, second.Append(resp.EncodeRequest(request("SET", "b", "2"))))

	loaded, err := second.Load(false)
	require.NoError(t, err)
	assert.Equal(t, []resp.Request{request("SET", "a", "1"), request("SET", "b", "2")}, loaded)
}

func TestAOF_LoadMissingFile(t *testing.T) {
	aof := &AOF{filename: filepath.Join(t.TempDir(), "absent.aof"), logger: zap.NewNop()}

	loaded, err := aof.Load(false)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestAOF_LoadTruncatedTail(t *testing.T) {
	aof := openTestAOF(t, "always")

	require.NoError(t, aof.Append(resp.EncodeRequest(request("SET", "a", "1"))))
	full := resp.EncodeRequest(request("SET", "b", "2"))
	require.NoError(t, aof.Append(full[:len(full)-3]))

	_, err := aof.Load(false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTruncated)

	loaded, err := aof.Load(true)
	require.NoError(t, err)
	assert.Equal(t, []resp.Request{request("SET", "a", "1")}, loaded)
}

func TestAOF_LoadMalformed(t *testing.T) {
	aof := openTestAOF(t, "always")

	require.NoError(t, aof.Append(resp.EncodeRequest(request("SET", "a", "1"))))
	require.NoError(t, aof.Append([]byte("garbage\r\n")))

	_, err := aof.Load(true)
	require.Error(t, err)
	assert.ErrorIs(t, err, resp.ErrProtocol)
}

func TestAOF_AppendAfterClose(t *testing.T) {
	aof := openTestAOF(t, "always")

	require.NoError(t, aof.Close())
	require.NoError(t, aof.Close(), "second Close is a no-op")

	err := aof.Append(resp.EncodeRequest(request("PING")))
	assert.ErrorIs(t, err, ErrLogClosed)
}

func TestAOF_FailedWriteIsSticky(t *testing.T) {
	aof := openTestAOF(t, "always")

	// pull the file out from under the writer
	require.NoError(t, aof.file.Close())

	err := aof.Append(resp.EncodeRequest(request("SET", "a", "1")))
	require.Error(t, err)

	err = aof.Append(resp.EncodeRequest(request("SET", "b", "2")))
	assert.True(t, errors.Is(err, ErrLogBroken), "got %v", err)
}

func TestReadAll_SmallReads(t *testing.T) {
	var data []byte
	for i := 0; i < 100; i++ {
		data = append(data, resp.EncodeRequest(request("SET", "key", string(bytes.Repeat([]byte("v"), i))))...)
	}

	cmds, rest, err := ReadAll(&oneByteReader{data: data})
	require.NoError(t, err)
	assert.Equal(t, 0, rest)
	assert.Len(t, cmds, 100)
	assert.Equal(t, request("SET", "key", ""), cmds[0])
}

// oneByteReader hands out its data one byte per Read
type oneByteReader struct {
	data []byte
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func totalLen(reqs []resp.Request) int {
	n := 0
	for _, r := range reqs {
		n += len(resp.EncodeRequest(r))
	}
	return n
}
