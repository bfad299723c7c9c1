package wpclient

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the library release. GitCommit and BuildDate may be set with
// -ldflags; otherwise they are read from the embedded VCS build settings.
var (
	Version   = "0.4.0"
	GitCommit = ""
	BuildDate = ""
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
	Modified  bool
}

// ReadBuildInfo merges the ldflags values with the VCS settings the Go
// toolchain embeds in module builds.
func ReadBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = info.withSettings(bi.Settings)
	}
	if info.GitCommit == "" {
		info.GitCommit = "unknown"
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}
	return info
}

func (b BuildInfo) withSettings(settings []debug.BuildSetting) BuildInfo {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if b.GitCommit == "" {
				b.GitCommit = s.Value
				if len(b.GitCommit) > 12 {
					b.GitCommit = b.GitCommit[:12]
				}
			}
		case "vcs.time":
			if b.BuildDate == "" {
				b.BuildDate = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

// GetVersion returns a one-line version string for --version output.
func GetVersion() string {
	b := ReadBuildInfo()
	commit := b.GitCommit
	if b.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("wpclient %s (commit %s, built %s, %s)", b.Version, commit, b.BuildDate, b.GoVersion)
}

// GetVersionInfo returns the build description as labels for the
// wpclient_build_info gauge.
func GetVersionInfo() map[string]string {
	b := ReadBuildInfo()
	return map[string]string{
		"version":    b.Version,
		"commit":     b.GitCommit,
		"build_date": b.BuildDate,
		"go_version": b.GoVersion,
	}
}
