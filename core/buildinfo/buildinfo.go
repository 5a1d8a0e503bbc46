package buildinfo

import "fmt"

// These variables are set via -ldflags at build time:
//
//	-X 'github.com/m3rciful/labbot/core/buildinfo.Version=v1.0.0'
//	-X 'github.com/m3rciful/labbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/labbot/core/buildinfo.Date=2026-01-01T12:00:00Z'
var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// String renders the build identity for `labbot version`.
func String() string {
	if Date == "" {
		return fmt.Sprintf("labbot %s (%s)", Version, Commit)
	}
	return fmt.Sprintf("labbot %s (%s, built %s)", Version, Commit, Date)
}
