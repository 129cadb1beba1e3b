// Package version holds the build version string, overridable at link time.
package version

// Version is set via -ldflags "-X .../internal/version.Version=v1.2.3" in release builds.
var Version = "1.0.0-dev"
