// ABOUTME: Tests for the ADTS parser
// ABOUTME: Tests side data, frame splitting, resync and format changes
package parse

import (
	"bytes"
	"testing"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adtsFrame builds an ADTS frame without CRC around payload
func adtsFrame(profile, rateIndex, channels int, payload []byte) []byte {
	frameLen := 7 + len(payload)
	h := []byte{
		0xFF,
		0xF1,
		byte(profile<<6 | rateIndex<<2 | channels>>2),
		byte((channels&3)<<6 | (frameLen>>11)&0x03),
		byte(frameLen >> 3),
		byte((frameLen&0x07)<<5 | 0x1F),
		0xFC,
	}
	return append(h, payload...)
}

func TestADTSHeader(t *testing.T) {
	h, ok := parseADTSHeader(adtsFrame(1, 4, 2, make([]byte, 100)))
	require.True(t, ok)
	assert.Equal(t, 7, h.headerLen)
	assert.Equal(t, 107, h.frameLen)
	assert.Equal(t, 2, h.channels)
	assert.Equal(t, 1, h.blocks)
	assert.Equal(t, []byte{0x12, 0x10}, h.audioSpecificConfig())
	assert.Equal(t, audio.Format{Codec: audio.CodecAAC, SampleRate: 44100, Channels: 2, FramesPerPacket: 1024}, h.format())

	_, ok = parseADTSHeader([]byte{0xFF, 0xF1, 0x7C, 0x80, 0, 0, 0}) // rate index 15
	assert.False(t, ok)
}

func TestADTSParse(t *testing.T) {
	r := &recorder{}
	p := NewADTS(r)

	p1 := bytes.Repeat([]byte{0xA1}, 200)
	p2 := bytes.Repeat([]byte{0xB2}, 31)
	p3 := bytes.Repeat([]byte{0xC3}, 512)

	var stream []byte
	stream = append(stream, adtsFrame(1, 3, 2, p1)...)
	stream = append(stream, adtsFrame(1, 3, 2, p2)...)
	stream = append(stream, adtsFrame(1, 3, 2, p3)...)

	feedInChunks(t, p, stream, 50)

	assert.Equal(t, []string{"side", "format", "packet", "packet", "packet"}, r.kinds())
	assert.Equal(t, []byte{0x11, 0x90}, r.events[0].sideData)
	assert.Equal(t, 48000, r.events[1].format.SampleRate)
	assert.Equal(t, [][]byte{p1, p2, p3}, r.packets())
	assert.Equal(t, 1024, r.events[2].frames)
}

func TestADTSResync(t *testing.T) {
	r := &recorder{}
	p := NewADTS(r)

	payload := []byte{1, 2, 3, 4}
	stream := append([]byte{0x00, 0x13, 0xFF, 0x37}, adtsFrame(1, 4, 2, payload)...)
	stream = append(stream, 0xEE)
	stream = append(stream, adtsFrame(1, 4, 2, payload)...)

	require.NoError(t, p.Parse(stream))
	assert.Equal(t, [][]byte{payload, payload}, r.packets())
}

func TestADTSHoldsPartialFrame(t *testing.T) {
	r := &recorder{}
	p := NewADTS(r)

	frame := adtsFrame(1, 4, 1, make([]byte, 64))
	require.NoError(t, p.Parse(frame[:40]))
	assert.Empty(t, r.packets())

	require.NoError(t, p.Parse(frame[40:]))
	assert.Len(t, r.packets(), 1)

	// A truncated tail is dropped on Flush
	require.NoError(t, p.Parse(frame[:20]))
	require.NoError(t, p.Flush())
	require.NoError(t, p.Parse(frame[20:]))
	assert.Len(t, r.packets(), 1)
}

func TestADTSFormatChange(t *testing.T) {
	r := &recorder{}
	p := NewADTS(r)

	stream := append(adtsFrame(1, 4, 2, []byte{1}), adtsFrame(1, 3, 1, []byte{2})...)
	require.NoError(t, p.Parse(stream))

	assert.Equal(t, []string{"side", "format", "packet", "side", "format", "packet"}, r.kinds())
	require.Len(t, r.formats(), 2)
	assert.Equal(t, 44100, r.formats()[0].SampleRate)
	assert.Equal(t, 48000, r.formats()[1].SampleRate)
	assert.Equal(t, 1, r.formats()[1].Channels)
}
