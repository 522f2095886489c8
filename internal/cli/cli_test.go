// ABOUTME: Tests for the command tree
// ABOUTME: Runs tone and play headless against the null output
package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Resonate-Protocol/streamplay/internal/source"
	"github.com/Resonate-Protocol/streamplay/internal/version"
	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestCommands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"play", "tone", "discover", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Product+" "+version.Version)
	assert.Contains(t, out, version.Manufacturer)
}

func TestToneNullOutput(t *testing.T) {
	_, err := execute(t, "tone", "--no-tui", "--output", "null", "--duration", "200ms", "--log-level", "error")
	assert.NoError(t, err)
}

func TestToneOpus(t *testing.T) {
	_, err := execute(t, "tone", "--no-tui", "--output", "null", "--codec", "opus",
		"--duration", "100ms", "--log-level", "error")
	assert.NoError(t, err)
}

func writeTone(t *testing.T, name string) string {
	t.Helper()
	format := audio.Format{Codec: audio.CodecPCM, SampleRate: 48000, Channels: 2, BitDepth: 16}
	tone, err := source.NewTone(format, 0, 150*time.Millisecond)
	require.NoError(t, err)
	data, err := io.ReadAll(tone)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestPlayFile(t *testing.T) {
	path := writeTone(t, "tone.pcm")
	_, err := execute(t, "play", path, "--no-tui", "--output", "null", "--log-level", "error")
	assert.NoError(t, err)
}

// writeFLAC writes 100ms of 16-bit stereo silence at 48kHz as FLAC
func writeFLAC(t *testing.T, name string) string {
	t.Helper()
	const blockSize = 480

	var buf bytes.Buffer
	enc, err := flac.NewEncoder(&buf, &meta.StreamInfo{
		BlockSizeMin:  blockSize,
		BlockSizeMax:  blockSize,
		SampleRate:    48000,
		NChannels:     2,
		BitsPerSample: 16,
		NSamples:      10 * blockSize,
	})
	require.NoError(t, err)
	for b := 0; b < 10; b++ {
		sub := func() *frame.Subframe {
			return &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   make([]int32, blockSize),
				NSamples:  blockSize,
			}
		}
		require.NoError(t, enc.WriteFrame(&frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         blockSize,
				SampleRate:        48000,
				Channels:          frame.ChannelsLR,
				BitsPerSample:     16,
				Num:               uint64(b),
			},
			Subframes: []*frame.Subframe{sub(), sub()},
		}))
	}
	require.NoError(t, enc.Close())

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestPlayFLACFile(t *testing.T) {
	path := writeFLAC(t, "silence.flac")
	_, err := execute(t, "play", path, "--no-tui", "--output", "null", "--log-level", "error")
	assert.NoError(t, err)
}

func TestPlayFLACCodecFlag(t *testing.T) {
	path := writeFLAC(t, "silence.bin")
	_, err := execute(t, "play", path, "--codec", "flac", "--no-tui", "--output", "null", "--log-level", "error")
	assert.NoError(t, err)
}

func TestPlayConfigFile(t *testing.T) {
	path := writeTone(t, "tone.raw")

	configPath := filepath.Join(t.TempDir(), "streamplay.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
[output]
device = "null"
volume = 30

[engine]
buffers = 4
buffer_size = 8192

[log]
level = "error"
`), 0o644))

	_, err := execute(t, "--config", configPath, "play", path, "--no-tui")
	assert.NoError(t, err)
}

func TestPlayEnvironment(t *testing.T) {
	t.Setenv("STREAMPLAY_OUTPUT_DEVICE", "null")
	t.Setenv("STREAMPLAY_LOG_LEVEL", "error")

	path := writeTone(t, "tone.pcm")
	_, err := execute(t, "play", path, "--no-tui")
	assert.NoError(t, err)
}

func TestPlayErrors(t *testing.T) {
	path := writeTone(t, "tone.pcm")

	_, err := execute(t, "play", filepath.Join(t.TempDir(), "missing.mp3"), "--no-tui", "--output", "null")
	assert.Error(t, err)

	_, err = execute(t, "play", path, "--no-tui", "--output", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output backend")

	_, err = execute(t, "play", path, "--no-tui", "--output", "null", "--volume", "150")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.volume")

	_, err = execute(t, "play", "a", "b")
	assert.Error(t, err)

	_, err = execute(t, "tone", "--no-tui", "--output", "null", "--codec", "mp3")
	assert.Error(t, err)
}

func TestPCMFormat(t *testing.T) {
	opts := &sessionOptions{rate: 44100, channels: 1, bits: 24}
	assert.Nil(t, opts.pcmFormat(audio.CodecMP3))
	assert.Equal(t, &audio.Format{Codec: audio.CodecPCM, SampleRate: 44100, Channels: 1, BitDepth: 24},
		opts.pcmFormat(audio.CodecPCM))
}

func TestPlayerName(t *testing.T) {
	assert.Equal(t, "Kitchen", playerName("Kitchen"))
	assert.Contains(t, playerName(""), "-streamplay")
}
