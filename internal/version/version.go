// Package version holds the colloquy build identity injected via ldflags.
package version

// Set via -ldflags "-X .../internal/version.Version=..." at release build.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build identity for startup logs.
func String() string {
	return Version + " (" + Commit + ", built " + Date + ")"
}
