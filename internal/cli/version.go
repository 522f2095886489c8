// ABOUTME: version command
// ABOUTME: Prints product name, version and platform
package cli

import (
	"fmt"
	"runtime"

	"github.com/Resonate-Protocol/streamplay/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", version.Product, version.Version)
			fmt.Fprintf(out, "Manufacturer: %s\n", version.Manufacturer)
			fmt.Fprintf(out, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
