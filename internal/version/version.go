package version

import "runtime/debug"

// Set with -ldflags "-X github.com/MeKo-Tech/docscan/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the version, commit and build date. Values not set at link
// time are taken from the module and VCS build info when the binary has it.
func Info() (string, string, string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version, GitCommit, BuildDate
	}
	return resolve(info)
}

func resolve(info *debug.BuildInfo) (string, string, string) {
	v, commit, date := Version, GitCommit, BuildDate
	if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && commit == "unknown":
			commit = s.Value
		case s.Key == "vcs.time" && date == "unknown":
			date = s.Value
		}
	}
	return v, commit, date
}
