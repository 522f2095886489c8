// ABOUTME: Raw PCM packetizer
// ABOUTME: Cuts interleaved little-endian samples into fixed-frame packets
package parse

import (
	"fmt"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
)

// DefaultPCMFramesPerPacket is used when the format does not set one
const DefaultPCMFramesPerPacket = 1024

// PCMParser packetizes a headerless PCM stream
type PCMParser struct {
	listener  audio.PacketListener
	format    audio.Format
	packet    int // bytes per packet
	announced bool
	pending   stash
	out       batch
}

// NewPCM creates a PCM parser. The format is announced on the first Parse.
func NewPCM(format audio.Format, listener audio.PacketListener) (*PCMParser, error) {
	if format.Codec != audio.CodecPCM {
		return nil, fmt.Errorf("invalid codec for PCM parser: %s", format.Codec)
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if format.FramesPerPacket <= 0 {
		format.FramesPerPacket = DefaultPCMFramesPerPacket
	}

	return &PCMParser{
		listener: listener,
		format:   format,
		packet:   format.FramesPerPacket * format.BytesPerFrame(),
	}, nil
}

// Parse emits every whole packet available and keeps the remainder
func (p *PCMParser) Parse(data []byte) error {
	if !p.announced {
		p.listener.OnFormat(p.format)
		p.announced = true
	}

	p.pending.push(data)
	buf := p.pending.buf

	n := 0
	for ; n+p.packet <= len(buf); n += p.packet {
		p.out.add(n, p.packet, p.format.FramesPerPacket)
	}
	p.out.emit(p.listener, buf)
	p.pending.consume(n)
	return nil
}

// Flush emits the trailing whole frames as a short packet
func (p *PCMParser) Flush() error {
	frame := p.format.BytesPerFrame()
	n := len(p.pending.buf) / frame * frame
	if n == 0 {
		return nil
	}
	p.out.add(0, n, n/frame)
	p.out.emit(p.listener, p.pending.buf)
	p.pending.consume(n)
	return nil
}

// Close releases resources
func (p *PCMParser) Close() error {
	p.pending.reset()
	return nil
}
