// ABOUTME: Tests for source opening and prefetch buffering
// ABOUTME: Covers file codec hints and the bounded read-ahead pipe
package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "song.mp3", s.Name)
	assert.Equal(t, audio.CodecMP3, s.Codec)

	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.pcm"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenStdin(t *testing.T) {
	s, err := Open(context.Background(), "-")
	require.NoError(t, err)
	assert.Equal(t, "stdin", s.Name)
	assert.Empty(t, s.Codec)
	assert.NoError(t, s.Close())
}

func TestHasScheme(t *testing.T) {
	assert.True(t, hasScheme("HTTPS://example.com/a.mp3", "http://", "https://"))
	assert.True(t, hasScheme("ws://host/stream", "ws://", "wss://"))
	assert.False(t, hasScheme("/tmp/http.mp3", "http://", "https://"))
}

type trackingCloser struct {
	io.Reader
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return nil
}

func TestPrefetchCopiesEverything(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 10000)
	src := &trackingCloser{Reader: bytes.NewReader(payload)}

	r := Prefetch(src, 4096)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	require.NoError(t, r.Close())
	assert.True(t, src.closed)
}

func TestPrefetchPropagatesError(t *testing.T) {
	boom := errors.New("connection reset")
	src := io.NopCloser(io.MultiReader(bytes.NewReader([]byte("abc")), &errReader{boom}))

	r := Prefetch(src, 1024)
	defer r.Close()

	data, err := io.ReadAll(r)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "abc", string(data))
}

func TestPrefetchDisabled(t *testing.T) {
	src := &trackingCloser{Reader: bytes.NewReader(nil)}
	assert.Same(t, src, Prefetch(src, 0))
}

func TestPrefetchCloseUnblocksCopy(t *testing.T) {
	pr, pw := io.Pipe()
	r := Prefetch(pr, 16)

	go func() {
		// More than the buffer holds, so the copy blocks until Close
		pw.Write(make([]byte, 64))
	}()

	buf := make([]byte, 8)
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.NoError(t, r.Close())
}

type errReader struct {
	err error
}

func (r *errReader) Read([]byte) (int, error) {
	return 0, r.err
}
