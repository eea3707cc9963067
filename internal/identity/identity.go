// Package identity reports what this metaCo install is and where it runs.
package identity

import (
	"os"
	"runtime"
	"runtime/debug"
)

// DefaultVersion is reported when no version was stamped at build time.
const DefaultVersion = "0.1.0-dev"

// Version is set at build time:
//
//	go build -ldflags "-X github.com/metaco/metaco/internal/identity.Version=1.2.3"
var Version = ""

// Info describes the running agent for /api/info.
type Info struct {
	Hostname  string `json:"hostname"`
	Version   string `json:"version"`
	Platform  string `json:"platform"`
	StatePath string `json:"state_path,omitempty"`
	HostMode  string `json:"host_mode,omitempty"`
}

// GetHostname returns the system hostname.
func GetHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return h
}

// GetVersion returns the stamped version, then the module version recorded
// in the binary, then DefaultVersion.
func GetVersion() string {
	return versionFrom(Version, debug.ReadBuildInfo)
}

func versionFrom(stamped string, read func() (*debug.BuildInfo, bool)) string {
	if stamped != "" {
		return stamped
	}
	if bi, ok := read(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return DefaultVersion
}

// Get collects identity for an agent using statePath and hostMode.
func Get(statePath, hostMode string) Info {
	return Info{
		Hostname:  GetHostname(),
		Version:   GetVersion(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		StatePath: statePath,
		HostMode:  hostMode,
	}
}
