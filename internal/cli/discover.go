// ABOUTME: discover command
// ABOUTME: Lists stream servers announced via mDNS
package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Resonate-Protocol/streamplay/internal/config"
	"github.com/Resonate-Protocol/streamplay/internal/discovery"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDiscoverCmd(v *viper.Viper) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List stream servers on the local network",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(v, cmd.Flags(), map[string]string{
				config.KeyDiscoveryService: "service",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(v)
			if err != nil {
				return err
			}

			servers := discovery.Discover(c.Discovery.Service, timeout)
			out := cmd.OutOrStdout()
			if len(servers) == 0 {
				fmt.Fprintf(out, "No %s servers found\n", c.Discovery.Service)
				return nil
			}
			printServers(cmd, servers)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "How long to listen for answers")
	cmd.Flags().String("service", "", "mDNS service type to browse")
	return cmd
}

func printServers(cmd *cobra.Command, servers []*discovery.ServerInfo) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tURL\tCODEC")
	for _, s := range servers {
		codec := s.Codec
		if codec == "" {
			codec = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.URL(), codec)
	}
	w.Flush()
}
