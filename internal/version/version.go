package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set through -ldflags "-X .../internal/version.Version=..." at build time.
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit,omitempty"`
	BuildDate string `json:"buildDate,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func Get() Info {
	return Info{
		Version:   GetVersion(),
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	version := i.Version
	if len(i.GitCommit) >= 7 {
		version = fmt.Sprintf("%s (%s)", version, i.GitCommit[:7])
	}

	if i.BuildDate != "" {
		version = fmt.Sprintf("%s built %s", version, i.BuildDate)
	}

	return fmt.Sprintf("flowengine %s %s %s", version, i.GoVersion, i.Platform)
}

// GetVersion prefers the ldflags value, then the module version from build info.
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return "dev"
}
