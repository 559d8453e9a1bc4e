// Package version holds sitetrack build information.
package version

import "fmt"

// Set via -ldflags "-X github.com/GoCodeAlone/sitetrack/internal/version.Version=..." at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String formats the build info for the given binary name.
func String(binary string) string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", binary, Version, Commit, BuildDate)
}
