// ABOUTME: tone command
// ABOUTME: Plays a generated sine wave as PCM or Ogg Opus to check an output
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/streamplay/internal/config"
	"github.com/Resonate-Protocol/streamplay/internal/source"
	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newToneCmd(v *viper.Viper) *cobra.Command {
	opts := &sessionOptions{}
	var frequency float64
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "tone",
		Short: "Play a test tone",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(v, cmd.Flags(), engineFlags)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(v)
			if err != nil {
				return err
			}

			if opts.codec == "" {
				opts.codec = audio.CodecPCM
			}
			format := audio.Format{
				Codec:      opts.codec,
				SampleRate: opts.rate,
				Channels:   opts.channels,
				BitDepth:   opts.bits,
			}
			if format.Codec != audio.CodecPCM {
				format.BitDepth = 0
			}

			return runSession(cmd.Context(), c, opts, cmd.ErrOrStderr(), func(context.Context) (*source.Stream, error) {
				tone, err := source.NewTone(format, frequency, duration)
				if err != nil {
					return nil, err
				}
				return &source.Stream{
					ReadCloser: tone,
					Name:       fmt.Sprintf("%.0fHz tone", frequency),
					Codec:      format.Codec,
				}, nil
			})
		},
	}

	opts.addFlags(cmd.Flags())
	addEngineFlags(cmd.Flags())
	cmd.Flags().Float64Var(&frequency, "frequency", source.DefaultToneFrequency, "Tone frequency in Hz")
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "Tone length, 0 plays until interrupted")
	return cmd
}
