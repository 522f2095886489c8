// ABOUTME: Byte stream sources for the player
// ABOUTME: Opens files, stdin, HTTP and websocket URLs, with optional prefetch buffering
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/audio/parse"
	"github.com/djherbis/buffer"
	"github.com/djherbis/nio/v3"
	log "github.com/sirupsen/logrus"
)

// Stream is an open source of encoded audio bytes
type Stream struct {
	io.ReadCloser

	// Name describes the source for logs and the UI
	Name string

	// Codec is the codec hinted by the source, "" when unknown
	Codec string

	// Format is set when the source already decoded to raw PCM
	Format *audio.Format
}

// Open opens name, which is "-" for stdin, an http(s) or ws(s) URL, or a
// file path. FLAC sources come back decoded to PCM.
func Open(ctx context.Context, name string) (*Stream, error) {
	stream, err := open(ctx, name)
	if err != nil {
		return nil, err
	}
	if stream.Codec == audio.CodecFLAC {
		return DecodeFLAC(stream)
	}
	return stream, nil
}

func open(ctx context.Context, name string) (*Stream, error) {
	switch {
	case name == "-":
		return &Stream{ReadCloser: io.NopCloser(os.Stdin), Name: "stdin"}, nil
	case hasScheme(name, "http://", "https://"):
		return OpenHTTP(ctx, name, nil)
	case hasScheme(name, "ws://", "wss://"):
		return DialWebSocket(ctx, name)
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return &Stream{
		ReadCloser: f,
		Name:       filepath.Base(name),
		Codec:      parse.CodecForName(name),
	}, nil
}

func hasScheme(name string, schemes ...string) bool {
	lower := strings.ToLower(name)
	for _, s := range schemes {
		if strings.HasPrefix(lower, s) {
			return true
		}
	}
	return false
}

// Prefetch reads ahead of the consumer into a bounded in-memory buffer, so
// network jitter is absorbed before it reaches the feed. size <= 0 returns
// src unchanged.
func Prefetch(src io.ReadCloser, size int64) io.ReadCloser {
	if size <= 0 {
		return src
	}

	pr, pw := nio.Pipe(buffer.New(size))
	p := &prefetcher{src: src, pr: pr}

	go func() {
		n, err := io.Copy(pw, src)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		log.Debugf("Prefetch source finished after %d bytes", n)
		pw.Close()
	}()

	return p
}

type prefetcher struct {
	src io.ReadCloser
	pr  *nio.PipeReader
}

func (p *prefetcher) Read(b []byte) (int, error) {
	return p.pr.Read(b)
}

// Close closes the source and the pipe. A copy blocked in a source that
// ignores Close (stdin) ends at its next read.
func (p *prefetcher) Close() error {
	err := p.src.Close()
	p.pr.Close()
	return err
}
