// ABOUTME: Parser interface, constructor and codec detection
// ABOUTME: Shared buffering used by all frame-based parsers
package parse

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
)

// Parser consumes raw stream bytes and reports packets to its listener
type Parser interface {
	// Parse consumes the next chunk of the stream
	Parse(data []byte) error

	// Flush reports anything held back waiting for more bytes
	Flush() error

	// Close releases parser resources
	Close() error
}

// New creates a parser for codec. format is required for raw PCM, which
// carries no header to learn it from, and ignored otherwise.
func New(codec string, format *audio.Format, listener audio.PacketListener) (Parser, error) {
	if listener == nil {
		return nil, fmt.Errorf("parse: nil listener")
	}

	switch codec {
	case audio.CodecPCM:
		if format == nil {
			return nil, fmt.Errorf("parse: pcm requires a format")
		}
		return NewPCM(*format, listener)
	case audio.CodecAAC:
		return NewADTS(listener), nil
	case audio.CodecMP3:
		return NewMPEG(listener), nil
	case audio.CodecOpus:
		return NewOgg(listener), nil
	default:
		return nil, fmt.Errorf("unsupported codec: %s", codec)
	}
}

// Detect guesses the codec of a stream from its first bytes. It returns ""
// when nothing matches.
func Detect(head []byte) string {
	switch {
	case bytes.HasPrefix(head, []byte("OggS")):
		return audio.CodecOpus
	case bytes.HasPrefix(head, []byte("ID3")):
		return audio.CodecMP3
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xF6 == 0xF0:
		// ADTS: 12-bit sync, layer always 0
		return audio.CodecAAC
	case len(head) >= 4 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		if _, ok := parseMPEGHeader(head); ok {
			return audio.CodecMP3
		}
	}
	return ""
}

// CodecForName maps a file name or URL path extension to a codec
func CodecForName(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".mp3", ".mp2", ".mpga":
		return audio.CodecMP3
	case ".aac", ".adts":
		return audio.CodecAAC
	case ".opus", ".ogg", ".oga":
		return audio.CodecOpus
	case ".pcm", ".raw":
		return audio.CodecPCM
	case ".flac":
		return audio.CodecFLAC
	default:
		return ""
	}
}

// CodecForContentType maps an HTTP Content-Type to a codec
func CodecForContentType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "audio/mpeg", "audio/mp3", "audio/mpa":
		return audio.CodecMP3
	case "audio/aac", "audio/aacp", "audio/x-aac":
		return audio.CodecAAC
	case "audio/ogg", "audio/opus", "application/ogg":
		return audio.CodecOpus
	case "audio/l16", "audio/pcm":
		return audio.CodecPCM
	case "audio/flac", "audio/x-flac":
		return audio.CodecFLAC
	default:
		return ""
	}
}

// stash holds bytes carried over between Parse calls
type stash struct {
	buf []byte
}

func (s *stash) push(data []byte) {
	s.buf = append(s.buf, data...)
}

// consume drops the first n bytes, keeping the backing array
func (s *stash) consume(n int) {
	s.buf = s.buf[:copy(s.buf, s.buf[n:])]
}

func (s *stash) reset() {
	s.buf = nil
}

// batch collects packet descriptors over one buffer so a listener gets
// one OnPackets call per Parse
type batch struct {
	packets []audio.PacketDescriptor
}

func (b *batch) add(offset, size, frames int) {
	b.packets = append(b.packets, audio.PacketDescriptor{
		Offset: int64(offset),
		Size:   size,
		Frames: frames,
	})
}

func (b *batch) emit(listener audio.PacketListener, data []byte) {
	if len(b.packets) == 0 {
		return
	}
	listener.OnPackets(data, b.packets)
	b.packets = b.packets[:0]
}
