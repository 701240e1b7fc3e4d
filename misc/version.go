// Package misc carries build identification shared by every front end.
package misc

import "runtime/debug"

const appName = "brc"

// Set by the build system, debug.ReadBuildInfo fills the gaps for plain
// "go build" and "go install" binaries.
var (
	version = ""
	gitHash = ""
)

// GetAppName returns the short program name used for logs, temporary
// files and reports.
func GetAppName() string {
	return appName
}

// GetVersion returns the program version.
func GetVersion() string {
	if version != "" {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		return bi.Main.Version
	}
	return "(devel)"
}

// GetGitHash returns the vcs revision the program was built from.
func GetGitHash() string {
	if gitHash != "" {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
