// ABOUTME: Unit tests for the PCM encoder
// ABOUTME: Checks 16 and 24-bit packing, packet sizing and partial frames
package encode

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
)

func TestNewPCM(t *testing.T) {
	tests := []struct {
		name          string
		format        audio.Format
		wantFrameSize int
		errContains   string
	}{
		{
			name:          "16-bit 48kHz defaults to 20ms",
			format:        audio.Format{Codec: audio.CodecPCM, SampleRate: 48000, Channels: 2, BitDepth: 16},
			wantFrameSize: 960,
		},
		{
			name:          "24-bit with explicit packet size",
			format:        audio.Format{Codec: audio.CodecPCM, SampleRate: 44100, Channels: 2, BitDepth: 24, FramesPerPacket: 1024},
			wantFrameSize: 1024,
		},
		{
			name:        "opus codec",
			format:      audio.Format{Codec: audio.CodecOpus, SampleRate: 48000, Channels: 2, BitDepth: 16},
			errContains: "invalid codec",
		},
		{
			name:        "32-bit",
			format:      audio.Format{Codec: audio.CodecPCM, SampleRate: 48000, Channels: 2, BitDepth: 32},
			errContains: "unsupported bit depth",
		},
		{
			name:        "no channels",
			format:      audio.Format{Codec: audio.CodecPCM, SampleRate: 48000, BitDepth: 16},
			errContains: "invalid PCM format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder, err := NewPCM(tt.format)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("NewPCM() error = %v, want error containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewPCM() unexpected error = %v", err)
			}
			if encoder.FrameSize() != tt.wantFrameSize {
				t.Errorf("FrameSize() = %d, want %d", encoder.FrameSize(), tt.wantFrameSize)
			}
			if encoder.Format().FramesPerPacket != tt.wantFrameSize {
				t.Errorf("Format().FramesPerPacket = %d, want %d", encoder.Format().FramesPerPacket, tt.wantFrameSize)
			}
		})
	}
}

func TestPCMEncoder_Encode16Bit(t *testing.T) {
	encoder, err := NewPCM(audio.Format{Codec: audio.CodecPCM, SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	samples := []int32{0, 0x7FFFFF, -0x800000, 0x123456}
	output, err := encoder.Encode(samples)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(output) != len(samples)*2 {
		t.Fatalf("Encode() output length = %d, want %d", len(output), len(samples)*2)
	}

	for i, s := range samples {
		got := int16(binary.LittleEndian.Uint16(output[i*2:]))
		if want := audio.SampleToInt16(s); got != want {
			t.Errorf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestPCMEncoder_Encode24Bit(t *testing.T) {
	encoder, err := NewPCM(audio.Format{Codec: audio.CodecPCM, SampleRate: 96000, Channels: 1, BitDepth: 24})
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	samples := []int32{0x010203, -1, -0x800000}
	output, err := encoder.Encode(samples)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	want := []byte{0x03, 0x02, 0x01, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x80}
	if string(output) != string(want) {
		t.Errorf("Encode() = % x, want % x", output, want)
	}
}

func TestPCMEncoder_RejectsPartialFrame(t *testing.T) {
	encoder, err := NewPCM(audio.Format{Codec: audio.CodecPCM, SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	if _, err := encoder.Encode(make([]int32, 3)); !errors.Is(err, ErrFrameSize) {
		t.Errorf("Encode() of 3 stereo samples error = %v, want ErrFrameSize", err)
	}
	// Short packets of whole frames are fine
	if out, err := encoder.Encode(make([]int32, 10)); err != nil || len(out) != 20 {
		t.Errorf("Encode() of 5 frames = %d bytes, %v", len(out), err)
	}
}
