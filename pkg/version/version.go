package version

import (
	"fmt"
	"runtime"
	"time"

	"golang.org/x/mod/semver"
)

// Version information - these can be overridden at build time using ldflags
var (
	// Version is the semantic version of dubhe
	Version = "v0.4.0"

	// GitCommit is the git commit hash (set at build time)
	GitCommit = "unknown"

	// BuildTime is when the binary was built (set at build time)
	BuildTime = "unknown"
)

// PatternFormat is the newest pattern library version this build reads.
const PatternFormat = "v1.0.0"

// BuildInfo contains build and version information
type BuildInfo struct {
	Version       string    `json:"version"`
	GitCommit     string    `json:"git_commit"`
	BuildTime     string    `json:"build_time"`
	GoVersion     string    `json:"go_version"`
	Platform      string    `json:"platform"`
	PatternFormat string    `json:"pattern_format"`
	CompileTime   time.Time `json:"compile_time"`
}

// GetBuildInfo returns build information
func GetBuildInfo() *BuildInfo {
	compileTime, _ := time.Parse(time.RFC3339, BuildTime)
	if BuildTime == "unknown" {
		// Fallback to a reasonable default for development builds
		compileTime = time.Now()
	}

	return &BuildInfo{
		Version:       Version,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		GoVersion:     runtime.Version(),
		Platform:      fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		PatternFormat: PatternFormat,
		CompileTime:   compileTime,
	}
}

// GetVersion returns the semantic version string
func GetVersion() string {
	return Version
}

// GetVersionWithCommit returns version with git commit info
func GetVersionWithCommit() string {
	if GitCommit != "unknown" && len(GitCommit) >= 7 {
		return fmt.Sprintf("%s (%s)", Version, GitCommit[:7])
	}
	return Version
}

// GetFullVersionString returns a version string for CLI display
func GetFullVersionString() string {
	info := GetBuildInfo()
	return fmt.Sprintf("dubhe %s\nBuilt: %s\nCommit: %s\nGo: %s\nPlatform: %s\nPattern format: %s",
		info.Version,
		info.BuildTime,
		info.GitCommit,
		info.GoVersion,
		info.Platform,
		info.PatternFormat,
	)
}

// IsPrerelease reports whether Version carries a prerelease suffix such as
// -beta or -rc.1.
func IsPrerelease() bool {
	return semver.Prerelease(Version) != ""
}

// SupportsPatterns reports whether a pattern library of the given version
// can be read by this build: same major version, not newer than
// PatternFormat.
func SupportsPatterns(libraryVersion string) bool {
	if !semver.IsValid(libraryVersion) {
		return false
	}
	return semver.Major(libraryVersion) == semver.Major(PatternFormat) &&
		semver.Compare(libraryVersion, PatternFormat) <= 0
}
