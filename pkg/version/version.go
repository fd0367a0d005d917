// Package version reports the build identity of the chatbridge binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Overridden at link time, e.g.
// -ldflags "-X github.com/jonny/chatbridge/pkg/version.Version=v1.2.0".
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

type Info struct {
	Version   string
	Commit    string
	BuildTime string
	GoVersion string
}

// Get fills commit and build time from the embedded VCS stamp when they
// were not set at link time.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, BuildTime: BuildTime, GoVersion: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.Commit == "":
				info.Commit = s.Value
			case s.Key == "vcs.time" && info.BuildTime == "":
				info.BuildTime = s.Value
			}
		}
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}
	return info
}

func (i Info) String() string {
	return fmt.Sprintf("chatbridge %s (commit: %s, built: %s, %s)", i.Version, i.Commit, i.BuildTime, i.GoVersion)
}

func String() string {
	return Get().String()
}
