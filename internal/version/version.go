// ABOUTME: Version and product identification constants
// ABOUTME: Shared by the CLI, HTTP user agent and mDNS advertisement
package version

import "fmt"

// Version is overridden at build time with -ldflags "-X ...version.Version=..."
var Version = "0.3.0"

const (
	// Product is the application name
	Product = "streamplay"

	// Manufacturer identifies the project
	Manufacturer = "Resonate Protocol"
)

// UserAgent returns the HTTP User-Agent sent by stream sources
func UserAgent() string {
	return fmt.Sprintf("%s/%s", Product, Version)
}
