// ABOUTME: Audio type definitions
// ABOUTME: Defines stream formats, packet descriptors and sample conversions
package audio

import (
	"fmt"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Codec names understood by parsers and outputs
const (
	CodecPCM  = "pcm"
	CodecAAC  = "aac"
	CodecMP3  = "mp3"
	CodecOpus = "opus"

	// CodecFLAC is a container codec: sources decode it to PCM before
	// the player sees it
	CodecFLAC = "flac"
)

// Format describes an encoded audio stream
type Format struct {
	Codec           string
	SampleRate      int
	Channels        int
	BitDepth        int // meaningful for PCM only
	FramesPerPacket int // 0 when packets vary in length
}

// String returns a short human-readable description
func (f Format) String() string {
	if f.Codec == CodecPCM {
		return fmt.Sprintf("%s %dHz %dch %dbit", f.Codec, f.SampleRate, f.Channels, f.BitDepth)
	}
	return fmt.Sprintf("%s %dHz %dch", f.Codec, f.SampleRate, f.Channels)
}

// BytesPerFrame returns the PCM frame size, or 0 for compressed codecs
func (f Format) BytesPerFrame() int {
	if f.Codec != CodecPCM {
		return 0
	}
	return f.Channels * f.BitDepth / 8
}

// FramesDuration converts a frame count to playback time
func (f Format) FramesDuration(frames int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Validate checks that the format can be bound to an output
func (f Format) Validate() error {
	if f.Codec == "" {
		return fmt.Errorf("format has no codec")
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if f.Codec == CodecPCM && f.BitDepth != 16 && f.BitDepth != 24 {
		return fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", f.BitDepth)
	}
	return nil
}

// PacketDescriptor locates one packet inside a byte buffer
type PacketDescriptor struct {
	Offset int64 // start of the packet within the buffer it describes
	Size   int   // packet length in bytes
	Frames int   // frames carried by the packet, 0 if unknown
}

// End returns the offset just past the packet
func (d PacketDescriptor) End() int64 {
	return d.Offset + int64(d.Size)
}

// PacketListener receives the output of a stream parser.
//
// Parsers announce side data (if any) before the format, and the format
// before the first packets.
type PacketListener interface {
	// OnSideData delivers opaque codec configuration (magic cookie)
	OnSideData(data []byte)

	// OnFormat delivers the stream format once it is known
	OnFormat(format Format)

	// OnPackets delivers packets found in data, in arrival order
	OnPackets(data []byte, packets []PacketDescriptor)
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}
