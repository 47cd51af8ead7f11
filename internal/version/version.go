// Package version reports how the cltv binary was built. The variables are
// set with -ldflags "-X github.com/paveg/cltv/internal/version.Version=...".
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	unknownValue     = "unknown"
	commitHashLength = 7
)

// Build-time variables set by ldflags
var (
	Version   = "dev"
	BuildDate = unknownValue
	GitCommit = unknownValue
	GoVersion = runtime.Version()
)

// BuildInfo contains the build information printed by `cltv version`
type BuildInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Module    string `json:"module"`
	Dirty     bool   `json:"dirty"`
}

// Info returns the build information, falling back to the VCS stamp the Go
// toolchain embeds when ldflags were not set
func Info() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: GoVersion,
		Dirty:     strings.HasSuffix(GitCommit, "-dirty"),
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		info.Module = buildInfo.Main.Path
		for _, setting := range buildInfo.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.GitCommit == unknownValue {
					info.GitCommit = setting.Value
				}
			case "vcs.time":
				if info.BuildDate == unknownValue {
					info.BuildDate = setting.Value
				}
			case "vcs.modified":
				info.Dirty = info.Dirty || setting.Value == "true"
			}
		}
	}

	return info
}

// String returns a formatted version string
func (b BuildInfo) String() string {
	var sb strings.Builder
	sb.WriteString("cltv: customer lifetime value pipeline\n")
	fmt.Fprintf(&sb, "Version: %s", b.Version)
	if b.Dirty {
		sb.WriteString(" (dirty)")
	}
	sb.WriteString("\n")

	if b.BuildDate != unknownValue {
		fmt.Fprintf(&sb, "Build Date: %s\n", b.BuildDate)
	}
	if b.GitCommit != unknownValue {
		commit := b.GitCommit
		if len(commit) > commitHashLength {
			commit = commit[:commitHashLength]
		}
		fmt.Fprintf(&sb, "Git Commit: %s\n", commit)
	}
	fmt.Fprintf(&sb, "Go Version: %s\n", b.GoVersion)
	if b.Module != "" {
		fmt.Fprintf(&sb, "Module: %s\n", b.Module)
	}
	return sb.String()
}

// IsRelease returns true if this is a release version (not dev)
func IsRelease() bool {
	return Version != "dev" && !strings.Contains(Version, "-")
}
