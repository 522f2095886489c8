// ABOUTME: Audio decoder package for multiple codec support
// ABOUTME: Provides the Decoder interface and implementations for PCM, Opus and MP3
// Package decode provides audio decoders used by the output codec stage.
//
// Supports: PCM (16-bit and 24-bit), Opus, MP3 (layer III), plus a silent
// decoder that stands in for codecs without a decoder.
//
// Decoders work on whole buffers as handed to a device: the buffer bytes and
// the packet descriptors locating each packet inside them. All decoders output
// interleaved int32 samples in 24-bit range.
//
// Example:
//
//	decoder, err := decode.New(format, sideData)
//	samples, err := decoder.Decode(buf.Data, buf.Packets)
package decode
