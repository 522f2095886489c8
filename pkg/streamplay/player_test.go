// ABOUTME: Integration tests for the Player API
// ABOUTME: Plays generated PCM and Ogg Opus streams through the null output
package streamplay

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/audio/encode"
	"github.com/Resonate-Protocol/streamplay/pkg/audio/output"
	"github.com/Resonate-Protocol/streamplay/pkg/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pcmFormat = audio.Format{Codec: audio.CodecPCM, SampleRate: 48000, Channels: 2, BitDepth: 16}

func fastNull() *output.Null {
	return &output.Null{Period: 2 * time.Millisecond, Speed: 50}
}

type stateLog struct {
	mu     sync.Mutex
	states []PlayerState
}

func (s *stateLog) record(state PlayerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
}

func (s *stateLog) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, st := range s.states {
		if len(names) == 0 || names[len(names)-1] != st.State {
			names = append(names, st.State)
		}
	}
	return names
}

func (s *stateLog) last() PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[len(s.states)-1]
}

func TestNewPlayerDefaults(t *testing.T) {
	player, err := NewPlayer(PlayerConfig{Device: fastNull()})
	require.NoError(t, err)
	defer player.Close()

	assert.Equal(t, "Streamplay Player", player.config.Name)
	assert.Equal(t, 100, player.config.Volume)
	assert.Equal(t, DefaultChunkSize, player.config.ChunkSize)

	state := player.Status()
	assert.Equal(t, "stopped", state.State)
	assert.Equal(t, 100, state.Volume)
	assert.False(t, state.Muted)
	assert.Empty(t, state.Codec)
}

func TestNewPlayerErrors(t *testing.T) {
	_, err := NewPlayer(PlayerConfig{Output: "nonexistent"})
	assert.Error(t, err)

	_, err = NewPlayer(PlayerConfig{Device: fastNull(), Buffers: -1})
	assert.Error(t, err)
}

func TestPlayPCM(t *testing.T) {
	states := &stateLog{}
	format := pcmFormat
	player, err := NewPlayer(PlayerConfig{
		Device:        fastNull(),
		Format:        &format,
		Buffers:       8,
		BufferSize:    16 * 1024,
		ChunkSize:     5000,
		OnStateChange: states.record,
	})
	require.NoError(t, err)
	defer player.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream := make([]byte, 48000*4/2) // half a second
	require.NoError(t, player.Play(ctx, bytes.NewReader(stream)))

	state := player.Status()
	assert.Equal(t, "running", state.State)
	assert.Equal(t, audio.CodecPCM, state.Codec)
	assert.Equal(t, 48000, state.SampleRate)
	assert.Equal(t, 2, state.Channels)
	assert.Equal(t, 16, state.BitDepth)
	assert.NotEmpty(t, state.SessionID)

	stats := player.Stats()
	assert.Equal(t, 8, stats.SlotsTotal)
	assert.Zero(t, stats.SlotsBusy)
	assert.Equal(t, stats.Enqueued, stats.Completed)
	assert.Positive(t, stats.Packets)
	assert.Zero(t, stats.Dropped)

	assert.Equal(t, []string{"pending", "binding", "running"}, states.names())

	player.Stop()
	assert.Equal(t, "stopped", player.Status().State)
	assert.Equal(t, "stopped", states.last().State)
}

// oggOpusStream encodes a sine tone into an Ogg Opus stream
func oggOpusStream(t *testing.T, packets int) []byte {
	t.Helper()
	format := audio.Format{Codec: audio.CodecOpus, SampleRate: 48000, Channels: 2}

	var buf bytes.Buffer
	w, err := encode.NewStreamWriter(&buf, format, 42)
	require.NoError(t, err)

	const frames = 960
	samples := make([]int32, packets*frames*2)
	for f := 0; f < packets*frames; f++ {
		v := int32(math.Sin(2*math.Pi*440*float64(f)/48000) * 0.3 * audio.Max24Bit)
		samples[f*2] = v
		samples[f*2+1] = v
	}
	require.NoError(t, w.Write(samples))
	require.NoError(t, w.Close())
	require.Equal(t, packets, w.Packets())
	return buf.Bytes()
}

func TestPlayDetectsOggOpus(t *testing.T) {
	player, err := NewPlayer(PlayerConfig{
		Device:     fastNull(),
		Buffers:    4,
		BufferSize: 4096,
		ChunkSize:  1000,
	})
	require.NoError(t, err)
	defer player.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, player.Play(ctx, bytes.NewReader(oggOpusStream(t, 25))))

	state := player.Status()
	assert.Equal(t, audio.CodecOpus, state.Codec)
	assert.Equal(t, 48000, state.SampleRate)

	stats := player.Stats()
	assert.Equal(t, int64(25), stats.Packets)
	assert.Equal(t, int64(25), stats.Completed)
}

// endless yields zeros forever
type endless struct{}

func (endless) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func TestPlayCancel(t *testing.T) {
	format := pcmFormat
	player, err := NewPlayer(PlayerConfig{
		Device:     &output.Null{Period: 10 * time.Millisecond, Speed: 1},
		Format:     &format,
		Buffers:    2,
		BufferSize: 8192,
	})
	require.NoError(t, err)
	defer player.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- player.Play(ctx, endless{})
	}()

	assert.Eventually(t, func() bool {
		return player.Stats().Backpressure > 0
	}, 5*time.Second, 5*time.Millisecond, "feed should block on busy slots")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Play did not return after cancel")
	}
	assert.Equal(t, "stopped", player.Status().State)
}

func TestPlayReadError(t *testing.T) {
	format := pcmFormat
	player, err := NewPlayer(PlayerConfig{Device: fastNull(), Format: &format})
	require.NoError(t, err)
	defer player.Close()

	boom := errors.New("connection reset")
	err = player.Play(context.Background(), &failingReader{err: boom})
	assert.ErrorIs(t, err, boom)
}

type failingReader struct {
	err error
}

func (r *failingReader) Read(p []byte) (int, error) {
	return 0, r.err
}

func TestControls(t *testing.T) {
	states := &stateLog{}
	player, err := NewPlayer(PlayerConfig{
		Device:        fastNull(),
		Volume:        80,
		OnStateChange: states.record,
	})
	require.NoError(t, err)
	defer player.Close()

	player.SetVolume(150)
	assert.Equal(t, 100, player.Status().Volume)
	assert.Equal(t, 1.0, player.engine.SoundTransform().Volume)

	player.SetVolume(-5)
	assert.Equal(t, 0, player.Status().Volume)

	player.SetVolume(50)
	player.Mute(true)
	player.SetPan(-3)

	state := player.Status()
	assert.Equal(t, 50, state.Volume)
	assert.True(t, state.Muted)
	assert.Equal(t, -1.0, state.Pan)
	assert.Equal(t, state, states.last())

	assert.Equal(t, playback.SoundTransform{Volume: 0.5, Pan: -1, Muted: true}, player.engine.SoundTransform())
}

func TestPlayerInitialTransform(t *testing.T) {
	player, err := NewPlayer(PlayerConfig{Device: fastNull(), Volume: 25, Pan: 0.5})
	require.NoError(t, err)
	defer player.Close()

	assert.Equal(t, playback.SoundTransform{Volume: 0.25, Pan: 0.5}, player.engine.SoundTransform())
}

func TestCloseIsFinal(t *testing.T) {
	player, err := NewPlayer(PlayerConfig{Device: fastNull(), Codec: audio.CodecMP3})
	require.NoError(t, err)

	require.NoError(t, player.Start())
	assert.Equal(t, "pending", player.Status().State)

	require.NoError(t, player.Close())
	require.NoError(t, player.Close())
	assert.Equal(t, "stopped", player.Status().State)
	assert.Error(t, player.Start())
	assert.ErrorIs(t, player.Feed([]byte{1}), playback.ErrNotRunning)
}
