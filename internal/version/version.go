package version

import "runtime"

// Build metadata, overridden at link time with
// -ldflags "-X taskflow/internal/version.Version=... -X taskflow/internal/version.Commit=...".
var (
	Version   = "0.1.0"
	Commit    = ""
	BuildTime = ""
)

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"buildTime,omitempty"`
	GoVersion string `json:"goVersion"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String renders the one-line form printed by the version command.
func (i Info) String() string {
	s := "taskflow " + i.Version
	if i.Commit != "" {
		s += " (" + i.Commit + ")"
	}
	if i.BuildTime != "" {
		s += " built " + i.BuildTime
	}
	return s + " " + i.GoVersion
}
