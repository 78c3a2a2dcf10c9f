package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const devVersion = "0.1.0-dev"

// Overridden at link time:
//
//	-ldflags "-X github.com/openmined/treesync/internal/version.Version=0.2.0"
var (
	AppName   = "treesync"
	Version   = devVersion
	Revision  = "HEAD"
	BuildDate = ""
)

// BuildInfo is the machine readable form of the version strings.
type BuildInfo struct {
	App       string `json:"app"`
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func Current() BuildInfo {
	return BuildInfo{
		App:       AppName,
		Version:   Version,
		Revision:  Revision,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Short is `0.1.0 (5e23a4)`.
func (b BuildInfo) Short() string {
	return fmt.Sprintf("%s (%s)", b.Version, b.Revision)
}

// String is `0.1.0 (5e23a4; go1.23.6; linux/amd64; 2025-01-01T00:00:00Z)`.
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (%s; %s; %s; %s)", b.Version, b.Revision, b.GoVersion, b.Platform, b.BuildDate)
}

func Short() string {
	return Current().Short()
}

func Detailed() string {
	return Current().String()
}

func DetailedWithApp() string {
	return AppName + " " + Detailed()
}

// fillFromModule fills the values ldflags left at their defaults from the main
// module version and its vcs.* build settings.
func fillFromModule(mainVersion string, vcs map[string]string) {
	if (Version == devVersion || Version == "") && mainVersion != "" && mainVersion != "(devel)" {
		Version = strings.TrimPrefix(mainVersion, "v")
	}

	if rev := vcs["vcs.revision"]; rev != "" && (Revision == "HEAD" || Revision == "") {
		if vcs["vcs.modified"] == "true" {
			rev += "-dirty"
		}
		Revision = rev
	}

	if BuildDate == "" {
		BuildDate = vcs["vcs.time"]
	}
}

func init() {
	if info, ok := debug.ReadBuildInfo(); ok && info != nil {
		vcs := make(map[string]string, len(info.Settings))
		for _, s := range info.Settings {
			if strings.HasPrefix(s.Key, "vcs.") {
				vcs[s.Key] = s.Value
			}
		}
		fillFromModule(info.Main.Version, vcs)
	}

	if BuildDate == "" {
		BuildDate = time.Now().UTC().Format(time.RFC3339)
	}
}
