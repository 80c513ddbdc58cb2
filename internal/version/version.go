// Package version reports the build identity of the mpwizard binary.
//
// Values injected with -ldflags "-X" win; otherwise the module version and
// VCS stamps the Go toolchain embeds are used.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Set at build time with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo is what `mpwizard version` and GET /health report.
type BuildInfo struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	BuildTime time.Time `json:"build_time" yaml:"build_time"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
	Dirty     bool      `json:"dirty,omitempty" yaml:"dirty,omitempty"`
}

// stamp is the part of debug.BuildInfo mpwizard cares about.
type stamp struct {
	module   string
	revision string
	modified bool
}

var embedded = sync.OnceValue(func() stamp {
	var s stamp
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return s
	}
	if v := info.Main.Version; v != "(devel)" {
		s.module = v
	}
	for _, kv := range info.Settings {
		switch kv.Key {
		case "vcs.revision":
			s.revision = kv.Value
		case "vcs.modified":
			s.modified = kv.Value == "true"
		}
	}

	return s
})

func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:   GetVersion(),
		GitCommit: GetGitCommit(),
		BuildTime: parseBuildTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Dirty:     embedded().modified,
	}
}

// GetVersion prefers the injected version, then the module version, then
// "dev-" plus the abbreviated revision.
func GetVersion() string {
	s := embedded()
	switch {
	case Version != "" && Version != "dev":
		return Version
	case s.module != "":
		return s.module
	case len(s.revision) >= 7:
		return "dev-" + s.revision[:7]
	}

	return "dev"
}

func GetGitCommit() string {
	switch {
	case GitCommit != "" && GitCommit != "unknown":
		return GitCommit
	case embedded().revision != "":
		return embedded().revision
	}

	return "unknown"
}

// GetShortVersion is the version with the abbreviated commit appended when
// one is known, e.g. "v1.2.3 (0123456)".
func GetShortVersion() string {
	v, commit := GetVersion(), GetGitCommit()
	if len(commit) < 7 || commit == "unknown" || strings.HasPrefix(v, "dev-") {
		return v
	}

	return fmt.Sprintf("%s (%s)", v, commit[:7])
}

// GetDetailedVersion renders BuildInfo as "Key: value" lines.
func GetDetailedVersion() string {
	info := GetBuildInfo()

	var b strings.Builder
	line := func(key, value string) { fmt.Fprintf(&b, "%s: %s\n", key, value) }

	line("Version", info.Version)
	if info.GitCommit != "unknown" {
		commit := info.GitCommit
		if info.Dirty {
			commit += " (dirty)"
		}
		line("Commit", commit)
	}
	if !info.BuildTime.IsZero() {
		line("Built", info.BuildTime.Format(time.RFC3339))
	}
	line("Go", info.GoVersion)
	line("Platform", info.Platform)

	return strings.TrimSuffix(b.String(), "\n")
}

var buildTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// parseBuildTime returns the zero time for values none of buildTimeLayouts
// accept.
func parseBuildTime(s string) time.Time {
	for _, layout := range buildTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	return time.Time{}
}
