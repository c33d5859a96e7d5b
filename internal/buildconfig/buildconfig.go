// Package buildconfig reports the factgraph build that is running. Version
// and commit are injected via ldflags:
//
//	go build -ldflags "-X github.com/Harshitk-cp/factgraph/internal/buildconfig.version=v1.2.0"
package buildconfig

import (
	"runtime"
	"runtime/debug"
)

var (
	version = "dev"
	commit  = ""
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

func Version() string {
	return version
}

// Commit returns the injected commit, falling back to the VCS revision the
// Go toolchain stamped into the binary.
func Commit() string {
	if commit != "" {
		return commit
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return shortRevision(s.Value)
			}
		}
	}
	return "unknown"
}

func Current() Info {
	return Info{
		Version:   Version(),
		Commit:    Commit(),
		GoVersion: runtime.Version(),
	}
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
