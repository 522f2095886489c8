// ABOUTME: Cobra command tree for the streamplay binary
// ABOUTME: Root command with config file loading and logging flags bound to viper
package cli

import (
	"context"
	"fmt"

	"github.com/Resonate-Protocol/streamplay/internal/config"
	"github.com/Resonate-Protocol/streamplay/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// NewRootCmd builds the command tree around a fresh configuration
func NewRootCmd() *cobra.Command {
	v := config.New()
	var configPath string

	root := &cobra.Command{
		Use:          version.Product,
		Short:        "Streaming audio player",
		Version:      version.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Read(v, configPath)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Optional path to toml config file")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.String("log-file", "", "Also write logs to this file")
	if err := bindFlags(v, flags, map[string]string{
		config.KeyLogLevel:  "log-level",
		config.KeyLogFormat: "log-format",
		config.KeyLogFile:   "log-file",
	}); err != nil {
		panic(err)
	}

	root.AddCommand(
		newPlayCmd(v),
		newToneCmd(v),
		newDiscoverCmd(v),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// bindFlags binds viper keys to the named flags. Flags only override the
// config file and environment when set on the command line. Commands that
// share keys bind in PreRunE so the running command's flags win.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}
