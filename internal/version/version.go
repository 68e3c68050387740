// Package version provides build-time version information for the LanWatch agent.
// Variables are injected at build time via ldflags.
package version

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/mod/semver"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns a formatted version string suitable for --version output.
func Info() string {
	return fmt.Sprintf("LanWatch agent %s (commit: %s, built: %s, go: %s)",
		Version, GitCommit, BuildDate, runtime.Version())
}

// Short returns just the version string (e.g., "0.1.0" or "dev").
func Short() string {
	return Version
}

// Map returns version info as a map for JSON serialization.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}

// canonical turns "1.2.3" into "v1.2.3" so it can be compared with semver.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// IsNewer reports whether latest is a strictly newer semantic version than current.
// Non-semver strings (such as "dev") never compare as newer.
func IsNewer(current, latest string) bool {
	c, l := canonical(current), canonical(latest)
	if !semver.IsValid(c) || !semver.IsValid(l) {
		return false
	}
	return semver.Compare(l, c) > 0
}

// UpgradeAvailable combines the server's upgrade flag with a local comparison.
// The server flag wins when the local build carries no comparable version.
func UpgradeAvailable(current, latest string, serverFlag bool) bool {
	if serverFlag {
		return true
	}
	return IsNewer(current, latest)
}
