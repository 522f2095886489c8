// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, PacketDescriptor, PacketListener and sample helpers
// Package audio provides the types shared by stream parsers, the playback
// engine and output devices.
//
//   - Format: describes an encoded stream (codec, sample rate, channels, bit depth)
//   - PacketDescriptor: locates one packet inside a byte buffer
//   - PacketListener: receives side data, format and packets from a parser
//
// It also provides helpers for converting between sample representations:
//   - 16-bit ↔ 24-bit conversions
//   - int32 ↔ packed byte conversions
//
// Example:
//
//	format := audio.Format{
//	    Codec:      audio.CodecPCM,
//	    SampleRate: 48000,
//	    Channels:   2,
//	    BitDepth:   16,
//	}
//	frameBytes := format.BytesPerFrame() // 4
package audio
