package version

import (
	"fmt"
	"runtime"
)

// Name is the binary name used in version output.
const Name = "fire-sentinel"

var (
	// Version is the release tag; set with -ldflags "-X .../internal/version.Version=v1.2.3".
	Version = "dev"
	// Commit is the short git SHA, or "none" for local builds.
	Commit = "none"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Short returns the release tag.
func Short() string {
	return Version
}

// Full renders every build field on one line.
func Full() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s %s/%s)",
		Name, Version, Commit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Fields returns build metadata as logger key-value pairs.
func Fields() []any {
	return []any{"version", Version, "commit", Commit, "build_time", BuildTime}
}
