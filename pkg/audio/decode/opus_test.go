// ABOUTME: Tests for Opus decoder
// ABOUTME: Tests Opus decoder creation, OpusHead handling and packet decoding
package decode

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/audio/encode"
)

func TestNewOpus(t *testing.T) {
	format := audio.Format{
		Codec:      "opus",
		SampleRate: 48000,
		Channels:   2,
		BitDepth:   16,
	}

	decoder, err := NewOpus(format, nil)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	if decoder == nil {
		t.Fatal("expected decoder to be created")
	}
}

func TestNewOpus_InvalidCodec(t *testing.T) {
	format := audio.Format{
		Codec:      "pcm",
		SampleRate: 48000,
		Channels:   2,
		BitDepth:   16,
	}

	decoder, err := NewOpus(format, nil)
	if err == nil {
		t.Fatal("expected error for invalid codec, got nil")
	}

	if decoder != nil {
		t.Fatal("expected decoder to be nil for invalid codec")
	}

	expectedError := "invalid codec for Opus decoder: pcm"
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
}

func TestNewOpus_MonoChannel(t *testing.T) {
	format := audio.Format{
		Codec:      "opus",
		SampleRate: 48000,
		Channels:   1,
		BitDepth:   16,
	}

	decoder, err := NewOpus(format, nil)
	if err != nil {
		t.Fatalf("failed to create mono decoder: %v", err)
	}

	if decoder.Channels() != 1 {
		t.Errorf("expected 1 channel, got %d", decoder.Channels())
	}
}

func TestNewOpus_TooManyChannels(t *testing.T) {
	format := audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2}

	// OpusHead announcing 6 channels with a mapping family
	head := []byte("OpusHead\x01\x06\x00\x00\x80\xbb\x00\x00\x00\x00\x01")
	decoder, err := NewOpus(format, head)
	if !errors.Is(err, ErrUnsupportedCodec) {
		t.Fatalf("expected ErrUnsupportedCodec, got %v", err)
	}
	if decoder != nil {
		t.Fatal("expected decoder to be nil for unsupported channel count")
	}
}

func TestOpusClose(t *testing.T) {
	format := audio.Format{
		Codec:      "opus",
		SampleRate: 48000,
		Channels:   2,
		BitDepth:   16,
	}

	decoder, err := NewOpus(format, nil)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	err = decoder.Close()
	if err != nil {
		t.Errorf("expected Close to succeed, got error: %v", err)
	}
}

// opusPackets encodes count 20 ms packets of a 440 Hz sine
func opusPackets(t *testing.T, format audio.Format, count int) ([]byte, []audio.PacketDescriptor) {
	t.Helper()

	enc, err := encode.NewOpus(format)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}
	defer enc.Close()

	pcm := make([]int32, 960*format.Channels)
	for i := 0; i < 960; i++ {
		v := int32(math.Sin(2*math.Pi*440*float64(i)/48000) * 0.5 * audio.Max24Bit)
		for ch := 0; ch < format.Channels; ch++ {
			pcm[i*format.Channels+ch] = v
		}
	}

	var data []byte
	var packets []audio.PacketDescriptor
	for i := 0; i < count; i++ {
		pkt, err := enc.Encode(pcm)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		packets = append(packets, audio.PacketDescriptor{Offset: int64(len(data)), Size: len(pkt), Frames: 960})
		data = append(data, pkt...)
	}
	return data, packets
}

func TestOpusDecode(t *testing.T) {
	format := audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, FramesPerPacket: 960}
	data, packets := opusPackets(t, format, 3)

	decoder, err := NewOpus(format, nil)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}
	defer decoder.Close()

	samples, err := decoder.Decode(data, packets)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(samples) != 3*960*2 {
		t.Errorf("expected %d samples, got %d", 3*960*2, len(samples))
	}
}

func TestOpusDecode_PreSkip(t *testing.T) {
	format := audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, FramesPerPacket: 960}
	data, packets := opusPackets(t, format, 3)

	w, err := encode.NewOggWriter(io.Discard, format, 1)
	if err != nil {
		t.Fatalf("failed to create ogg writer: %v", err)
	}
	head := w.OpusHead()
	preSkip := int(binary.LittleEndian.Uint16(head[10:]))

	decoder, err := NewOpus(format, head)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}
	defer decoder.Close()

	samples, err := decoder.Decode(data, packets)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	want := (3*960 - preSkip) * 2
	if len(samples) != want {
		t.Errorf("expected %d samples after pre-skip, got %d", want, len(samples))
	}
}
