// ABOUTME: Audio encoder package for generating streams the parsers accept
// ABOUTME: Provides the Encoder interface, PCM and Opus encoders, Ogg framing and a stream writer
// Package encode turns int32 samples in 24-bit range into byte streams that
// the player's parsers consume: raw PCM, or Opus packets in Ogg pages.
//
// Encoders work one packet at a time. StreamWriter takes samples in any run
// length and cuts them into FrameSize packets, padding and trimming the final
// Opus packet so the stream length stays exact.
//
// Example:
//
//	w, err := encode.NewStreamWriter(out, format, serial)
//	err = w.Write(samples)
//	err = w.Close()
package encode
