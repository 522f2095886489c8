// ABOUTME: Stream parser package splitting raw byte streams into packets
// ABOUTME: Provides parsers for raw PCM, ADTS (AAC), MPEG audio and Ogg Opus
// Package parse turns a raw byte stream, delivered in arbitrary chunks, into
// format, side data and packet callbacks on an audio.PacketListener.
//
// Supports: PCM (16-bit and 24-bit), AAC in ADTS, MPEG-1/2/2.5 audio
// (layers I-III), Opus in Ogg
//
// Parsers buffer partial packets across Parse calls and resynchronize on
// garbage between frames. Side data, when a container carries any, is
// always announced before the format.
//
// Example:
//
//	parser, err := parse.New(audio.CodecMP3, nil, listener)
//	err = parser.Parse(chunk)
package parse
