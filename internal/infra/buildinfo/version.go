package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time, e.g.
//
//	go build -ldflags "-X github.com/yndnr/jsonkeep-go/internal/infra/buildinfo.Version=v1.0.0"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the build description reported by the version endpoints.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the build description. GoVersion always comes from the
// runtime; Commit falls back to the VCS revision embedded by the Go
// toolchain when no ldflag was set.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    commit(),
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String renders the one-line form used by --version output.
func String() string {
	return fmt.Sprintf("%s (%s) built at %s", Version, commit(), BuildTime)
}

func commit() string {
	if Commit != "unknown" {
		return Commit
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return Commit
}
