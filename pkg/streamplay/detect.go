// ABOUTME: Codec sniffing parser used when the stream codec is not configured
// ABOUTME: Holds the head of the stream until parse.Detect recognizes it
package streamplay

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/audio/parse"
	"github.com/Resonate-Protocol/streamplay/pkg/playback"
	log "github.com/sirupsen/logrus"
)

// detectLimit is how much of an unrecognized stream is held before giving up
const detectLimit = 64 * 1024

// ErrUnknownCodec is returned when the stream codec cannot be detected
var ErrUnknownCodec = errors.New("streamplay: cannot detect stream codec")

// parserFactory returns the per-session parser constructor for codec. An
// empty codec sniffs the stream, unless format says it is raw PCM.
func parserFactory(codec string, format *audio.Format) playback.ParserFactory {
	if codec == "" && format != nil && format.Codec == audio.CodecPCM {
		codec = audio.CodecPCM
	}
	return func(l audio.PacketListener) (playback.Parser, error) {
		if codec == "" {
			return &detector{listener: l, format: format}, nil
		}
		return parse.New(codec, format, l)
	}
}

type detector struct {
	listener audio.PacketListener
	format   *audio.Format
	head     []byte
	parser   parse.Parser
}

func (d *detector) Parse(data []byte) error {
	if d.parser != nil {
		return d.parser.Parse(data)
	}

	d.head = append(d.head, data...)
	codec := parse.Detect(d.head)
	if codec == "" {
		if len(d.head) < detectLimit {
			return nil
		}
		return fmt.Errorf("%w after %d bytes", ErrUnknownCodec, len(d.head))
	}

	p, err := parse.New(codec, d.format, d.listener)
	if err != nil {
		return err
	}
	log.Debugf("Detected %s stream", codec)

	d.parser = p
	head := d.head
	d.head = nil
	return p.Parse(head)
}

func (d *detector) Flush() error {
	if d.parser == nil {
		return nil
	}
	return d.parser.Flush()
}

func (d *detector) Close() error {
	d.head = nil
	if d.parser == nil {
		return nil
	}
	return d.parser.Close()
}
