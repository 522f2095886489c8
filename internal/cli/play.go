// ABOUTME: play command and the shared playback session
// ABOUTME: Opens a source, runs the player with the TUI or log output, handles signals
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/streamplay/internal/config"
	"github.com/Resonate-Protocol/streamplay/internal/discovery"
	"github.com/Resonate-Protocol/streamplay/internal/logger"
	"github.com/Resonate-Protocol/streamplay/internal/source"
	"github.com/Resonate-Protocol/streamplay/internal/ui"
	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/playback"
	"github.com/Resonate-Protocol/streamplay/pkg/streamplay"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// discoverWait bounds how long play waits for a stream server on mDNS
const discoverWait = 10 * time.Second

// sessionOptions are the per-invocation settings not held in config
type sessionOptions struct {
	codec     string
	rate      int
	channels  int
	bits      int
	noTUI     bool
	name      string
	advertise bool
	port      int
}

func (o *sessionOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.codec, "codec", "", "Stream codec (pcm, aac, mp3, opus, flac); detected when empty")
	flags.IntVar(&o.rate, "rate", 48000, "PCM sample rate")
	flags.IntVar(&o.channels, "channels", 2, "PCM channel count")
	flags.IntVar(&o.bits, "bits", 16, "PCM bit depth (16 or 24)")
	flags.BoolVar(&o.noTUI, "no-tui", false, "Disable TUI, use streaming logs instead")
	flags.StringVar(&o.name, "name", "", "Player friendly name (default: hostname-streamplay)")
	flags.BoolVar(&o.advertise, "advertise", false, "Advertise this player via mDNS while playing")
	flags.IntVar(&o.port, "port", 8927, "Port for mDNS advertisement")
}

// pcmFormat returns the raw PCM format for codec, or nil for framed codecs
func (o *sessionOptions) pcmFormat(codec string) *audio.Format {
	if codec != audio.CodecPCM {
		return nil
	}
	return &audio.Format{
		Codec:      audio.CodecPCM,
		SampleRate: o.rate,
		Channels:   o.channels,
		BitDepth:   o.bits,
	}
}

// engineFlags maps config keys to the flags registered by addEngineFlags
var engineFlags = map[string]string{
	config.KeyOutputDevice: "output",
	config.KeyOutputVolume: "volume",
	config.KeyOutputPan:    "pan",
	config.KeyBuffers:      "buffers",
	config.KeyBufferSize:   "buffer-size",
	config.KeyFormatChange: "format-change",
	config.KeyPrefetch:     "prefetch",
}

// addEngineFlags registers the flags that override engine and output config
func addEngineFlags(flags *pflag.FlagSet) {
	flags.String("output", "malgo", "Output backend (malgo, oto, portaudio, null)")
	flags.Int("volume", 100, "Initial volume (0-100)")
	flags.Float64("pan", 0, "Initial balance (-1.0 left to 1.0 right)")
	flags.Int("buffers", playback.DefaultBuffers, "Number of playback buffers")
	flags.Int("buffer-size", playback.DefaultBufferSize, "Size of each playback buffer in bytes")
	flags.String("format-change", playback.FormatChangeReject.String(), "Mid-stream format change policy (reject, rebind)")
	flags.Int("prefetch", config.DefaultPrefetch, "Bytes to read ahead of playback (0 disables)")
}

func newPlayCmd(v *viper.Viper) *cobra.Command {
	opts := &sessionOptions{}

	cmd := &cobra.Command{
		Use:   "play [url|file|-]",
		Short: "Play a stream from a URL, a file or stdin",
		Long: "Play a stream from an http(s) or ws(s) URL, a file, or stdin (-).\n" +
			"Without an argument the first stream server found via mDNS is played.",
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(v, cmd.Flags(), engineFlags)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(v)
			if err != nil {
				return err
			}

			target := ""
			if len(args) == 1 {
				target = args[0]
			}

			return runSession(cmd.Context(), c, opts, cmd.ErrOrStderr(), func(ctx context.Context) (*source.Stream, error) {
				if target == "" {
					server, err := discoverServer(ctx, c.Discovery.Service)
					if err != nil {
						return nil, err
					}
					target = server.URL()
					if opts.codec == "" {
						opts.codec = server.Codec
					}
				}
				return source.Open(ctx, target)
			})
		},
	}

	opts.addFlags(cmd.Flags())
	addEngineFlags(cmd.Flags())
	return cmd
}

// discoverServer waits for the first stream server announced on mDNS
func discoverServer(ctx context.Context, service string) (*discovery.ServerInfo, error) {
	log.Printf("Starting server discovery...")
	disc := discovery.NewManager(discovery.Config{Service: service})
	defer disc.Stop()
	disc.Browse()

	select {
	case server := <-disc.Servers():
		log.Printf("Discovered server %s at %s", server.Name, server.URL())
		return server, nil
	case <-time.After(discoverWait):
		return nil, fmt.Errorf("no server found after %v", discoverWait)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runSession plays the stream returned by open until it ends, the user quits
// or a signal arrives
func runSession(ctx context.Context, c config.Config, opts *sessionOptions, stderr io.Writer, open func(context.Context) (*source.Stream, error)) error {
	useTUI := !opts.noTUI

	closer, err := logger.Setup(c.Log, !useTUI)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if stream != nil {
			stream.Close()
		}
	}()

	codec := opts.codec
	if codec == "" {
		codec = stream.Codec
	}
	if codec == audio.CodecFLAC && stream.Format == nil {
		decoded, err := source.DecodeFLAC(stream)
		if err != nil {
			stream = nil
			return err
		}
		stream = decoded
	}

	playerConfig, err := c.Player()
	if err != nil {
		return err
	}
	playerConfig.Name = playerName(opts.name)
	playerConfig.Codec = codec
	playerConfig.Format = opts.pcmFormat(codec)
	if stream.Format != nil {
		playerConfig.Codec = stream.Format.Codec
		playerConfig.Format = stream.Format
	}

	// TUI setup
	var tuiProg *tea.Program
	var volumeCtrl *ui.VolumeControl
	if useTUI {
		volumeCtrl = ui.NewVolumeControl()
		tuiProg = ui.Run(volumeCtrl, stream.Name)
	}

	// Helper to update TUI
	updateTUI := func(msg tea.Msg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	playerConfig.OnStateChange = func(state streamplay.PlayerState) {
		updateTUI(ui.StatusMsg{Player: &state})
		if !useTUI {
			log.WithField("session", state.SessionID).Debugf("Player state: %s", state.State)
		}
	}
	playerConfig.OnError = func(err error) {
		log.Warnf("Player error: %v", err)
		updateTUI(ui.ErrorMsg{Err: err})
	}

	player, err := streamplay.NewPlayer(playerConfig)
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	defer player.Close()

	// NewPlayer treats volume 0 as unset
	player.SetVolume(c.Output.Volume)

	if opts.advertise {
		disc := discovery.NewManager(discovery.Config{
			ServiceName: playerConfig.Name,
			Service:     c.Discovery.Service,
			Port:        opts.port,
		})
		if err := disc.Advertise(); err != nil {
			log.Warnf("mDNS advertisement failed: %v", err)
		}
		defer disc.Stop()
	}

	tuiDone := make(chan struct{})
	if tuiProg != nil {
		go func() {
			defer close(tuiDone)
			if _, err := tuiProg.Run(); err != nil {
				fmt.Fprintf(stderr, "TUI error: %v\n", err)
			}
			cancel()
		}()
		go handleVolumeControl(ctx, player, volumeCtrl, cancel)
		go statsUpdateLoop(ctx, player, updateTUI)
	} else {
		close(tuiDone)
		log.Printf("Playing %s", stream.Name)
	}

	body := source.Prefetch(stream, int64(c.Source.Prefetch))
	defer body.Close()

	err = player.Play(ctx, body)
	if tuiProg != nil {
		tuiProg.Quit()
	}
	<-tuiDone

	if errors.Is(err, context.Canceled) {
		log.Printf("Player stopped")
		return nil
	}
	return err
}

// playerName returns name or a hostname based default
func playerName(name string) string {
	if name != "" {
		return name
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-streamplay", hostname)
}

// handleVolumeControl processes sound control changes from the TUI
func handleVolumeControl(ctx context.Context, player *streamplay.Player, volumeCtrl *ui.VolumeControl, quit context.CancelFunc) {
	for {
		select {
		case vol := <-volumeCtrl.Changes:
			log.Debugf("Volume change: %d%%, muted=%v, pan=%+.1f", vol.Volume, vol.Muted, vol.Pan)
			player.SetVolume(vol.Volume)
			player.Mute(vol.Muted)
			player.SetPan(vol.Pan)
		case <-volumeCtrl.Quit:
			log.Printf("Received quit signal from TUI")
			quit()
			return
		case <-ctx.Done():
			return
		}
	}
}

// statsUpdateLoop periodically updates the TUI with playback statistics
func statsUpdateLoop(ctx context.Context, player *streamplay.Player, updateTUI func(tea.Msg)) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := player.Status()
			stats := player.Stats()
			updateTUI(ui.StatusMsg{
				Player: &state,
				Stats:  &stats,
				Slots:  player.Slots(),
			})
		}
	}
}
