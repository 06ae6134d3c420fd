// Package version holds build metadata injected with
// -ldflags "-X viberunner/pkg/version.Version=v1.2.3".
package version

import "fmt"

//nolint:gochecknoglobals // set by ldflags
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the build metadata for the version command.
func String() string {
	return fmt.Sprintf("viberunner %s\n  commit: %s\n  built:  %s", Version, Commit, Date)
}
