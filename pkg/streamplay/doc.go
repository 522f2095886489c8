// ABOUTME: High-level streamplay library API
// ABOUTME: Provides a Player that turns any byte stream into audible output
// Package streamplay provides the high-level API for playing audio streams.
//
// This is the main entry point for most library users, providing:
//   - Player: parse, buffer and play a stream from any io.Reader
//   - Volume, mute and pan controls that follow the stream across rebinds
//   - Status and Stats snapshots for monitoring
//
// For lower-level control, see the playback, audio/parse and audio/output
// packages.
//
// Example:
//
//	player, err := streamplay.NewPlayer(streamplay.PlayerConfig{
//	    Output: "oto",
//	    Volume: 80,
//	})
//	defer player.Close()
//	err = player.Play(ctx, resp.Body)
package streamplay
