// ABOUTME: Streaming playback engine package
// ABOUTME: Buffer pool, feed coordinator, sound transform and engine lifecycle
// Package playback moves parsed audio packets from a stream into an output
// device through a fixed ring of buffers.
//
//   - Pool: N fixed-capacity slots with busy flags shared with the device
//   - Engine: session lifecycle, deferred binding and the feed path
//   - SoundTransform: volume, pan and mute applied to the binding
//   - Device/Binding/Parser: the contracts with outputs and stream parsers
//
// The producer blocks when the next slot is still owned by the device, so
// the stream is paced by playback.
//
// Example:
//
//	engine, err := playback.New(device, playback.Config{
//	    NewParser: func(l audio.PacketListener) (playback.Parser, error) {
//	        return parse.New(audio.CodecMP3, nil, l)
//	    },
//	})
//	err = engine.StartRunning()
//	err = engine.Feed(chunk)
//	engine.StopRunning()
package playback
