// ABOUTME: Audio output package implementing playback devices
// ABOUTME: Provides malgo, oto, PortAudio and null backends behind playback.Device
// Package output provides the devices a playback engine binds to.
//
// Every backend decodes enqueued buffers (PCM, Opus, MP3) into a software
// queue and reports each buffer consumed once its last sample has been
// pulled by the platform stream. Volume and pan are applied in software.
//
// Backends:
//   - malgo: miniaudio data callback (default)
//   - oto: pull-model players sharing one process-wide context
//   - portaudio: callback stream, requires -tags portaudio
//   - null: clock-paced, discards audio (headless runs and tests)
//
// Example:
//
//	dev, err := output.Open("oto")
//	engine, err := playback.New(dev, playback.Config{})
package output
