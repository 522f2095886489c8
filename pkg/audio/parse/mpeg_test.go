// ABOUTME: Tests for the MPEG audio parser
// ABOUTME: Tests header decoding, ID3v2 skipping and frame splitting
package parse

import (
	"testing"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mpegFrame builds a frame of the length its header declares, filled with fill
func mpegFrame(t *testing.T, header [4]byte, fill byte) []byte {
	t.Helper()
	h, ok := parseMPEGHeader(header[:])
	require.True(t, ok)

	frame := make([]byte, h.frameLen)
	copy(frame, header[:])
	for i := 4; i < len(frame); i++ {
		frame[i] = fill
	}
	return frame
}

func TestMPEGHeader(t *testing.T) {
	tests := []struct {
		name     string
		header   []byte
		rate     int
		channels int
		frameLen int
		samples  int
	}{
		{"mpeg1 layer3 128k 44.1k", []byte{0xFF, 0xFB, 0x90, 0x00}, 44100, 2, 417, 1152},
		{"mpeg1 layer3 128k padded", []byte{0xFF, 0xFB, 0x92, 0x00}, 44100, 2, 418, 1152},
		{"mpeg1 layer3 mono 48k", []byte{0xFF, 0xFB, 0x94, 0xC0}, 48000, 1, 384, 1152},
		{"mpeg2 layer3 64k 22.05k", []byte{0xFF, 0xF3, 0x80, 0x00}, 22050, 2, 208, 576},
		{"mpeg1 layer2 192k 48k", []byte{0xFF, 0xFD, 0xA4, 0x00}, 48000, 2, 576, 1152},
		{"mpeg1 layer1 128k 44.1k", []byte{0xFF, 0xFF, 0x40, 0x00}, 44100, 2, 136, 384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := parseMPEGHeader(tt.header)
			require.True(t, ok)
			assert.Equal(t, tt.rate, h.sampleRate)
			assert.Equal(t, tt.channels, h.channels)
			assert.Equal(t, tt.frameLen, h.frameLen)
			assert.Equal(t, tt.samples, h.samples)
		})
	}
}

func TestMPEGHeaderInvalid(t *testing.T) {
	invalid := [][]byte{
		{0xFF, 0xEB, 0x90, 0x00}, // reserved version
		{0xFF, 0xF9, 0x90, 0x00}, // reserved layer
		{0xFF, 0xFB, 0x00, 0x00}, // free format
		{0xFF, 0xFB, 0xF0, 0x00}, // bad bitrate
		{0xFF, 0xFB, 0x9C, 0x00}, // reserved sample rate
		{0xFE, 0xFB, 0x90, 0x00}, // no sync
	}
	for _, b := range invalid {
		_, ok := parseMPEGHeader(b)
		assert.False(t, ok, "% x", b)
	}
}

func TestMPEGParse(t *testing.T) {
	r := &recorder{}
	p := NewMPEG(r)

	f1 := mpegFrame(t, [4]byte{0xFF, 0xFB, 0x90, 0x00}, 0x11)
	f2 := mpegFrame(t, [4]byte{0xFF, 0xFB, 0x92, 0x00}, 0x22)
	f3 := mpegFrame(t, [4]byte{0xFF, 0xFB, 0x90, 0x00}, 0x33)

	var stream []byte
	stream = append(stream, f1...)
	stream = append(stream, 0x00, 0x00) // junk between frames
	stream = append(stream, f2...)
	stream = append(stream, f3...)

	feedInChunks(t, p, stream, 100)

	assert.Equal(t, []string{"format", "packet", "packet", "packet"}, r.kinds())
	assert.Equal(t, audio.Format{Codec: audio.CodecMP3, SampleRate: 44100, Channels: 2, FramesPerPacket: 1152}, r.formats()[0])
	assert.Equal(t, [][]byte{f1, f2, f3}, r.packets())
	assert.Equal(t, 1152, r.events[1].frames)
}

func TestMPEGSkipsID3v2(t *testing.T) {
	r := &recorder{}
	p := NewMPEG(r)

	// 300-byte tag body containing a fake sync word
	tag := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0x02, 0x2C}
	body := make([]byte, 300)
	body[10], body[11], body[12], body[13] = 0xFF, 0xFB, 0x90, 0x00
	frame := mpegFrame(t, [4]byte{0xFF, 0xFB, 0x90, 0x00}, 0x44)

	stream := append(append(tag, body...), frame...)

	// Chunks smaller than the tag exercise the carried-over skip
	feedInChunks(t, p, stream, 64)

	assert.Equal(t, [][]byte{frame}, r.packets())
}

func TestID3v2Size(t *testing.T) {
	size, ok := id3v2Size([]byte{'I', 'D', '3', 4, 0, 0x10, 0, 0, 0x01, 0x00})
	require.True(t, ok)
	assert.Equal(t, 128+10+10, size)

	_, ok = id3v2Size([]byte("ID3"))
	assert.False(t, ok)

	size, ok = id3v2Size([]byte("IDXXXXXXXX"))
	require.True(t, ok)
	assert.Zero(t, size)
}
