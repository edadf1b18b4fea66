package version

import (
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X .../version.buildVersion=...".
var (
	buildVersion = "dev"
	builtAt      = "unknown"
)

type Info struct {
	BuildVersion string `json:"buildVersion"`
	BuiltAt      string `json:"builtAt"`
	Revision     string `json:"revision,omitempty"`
	GoVersion    string `json:"goVersion,omitempty"`
	Modified     bool   `json:"modified,omitempty"`
}

var readBuildInfo = sync.OnceValue(func() *debug.BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return info
})

func Get() Info {
	info := Info{
		BuildVersion: buildVersion,
		BuiltAt:      builtAt,
	}

	build := readBuildInfo()
	if build == nil {
		return info
	}
	info.GoVersion = build.GoVersion
	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Revision = setting.Value
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}
	return info
}

// Label is the short form shown in page footers, e.g. "dev (1a2b3c4)".
func (i Info) Label() string {
	if len(i.Revision) >= 7 {
		label := i.BuildVersion + " (" + i.Revision[:7]
		if i.Modified {
			label += "+"
		}
		return label + ")"
	}
	return i.BuildVersion
}
