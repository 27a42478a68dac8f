// Package version holds build metadata injected with -ldflags.
package version

// Build metadata, overridden at link time:
//
//	go build -ldflags "-X github.com/Sumatoshi-tech/gcpacer/pkg/version.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the metadata for version output.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
