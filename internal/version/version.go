package version

import (
	"fmt"
	"runtime"
)

// Build information, set with -ldflags "-X github.com/vibesql/vibelite/internal/version.Version=..."
var (
	Version   = "0.1.0"
	GitCommit = "dev"
	BuildDate = "unknown"
)

const Name = "vibelite"

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String returns a one-line version string
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, %s %s/%s)",
		Name, i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.OS, i.Arch)
}

func (i Info) Short() string {
	return i.Version
}

// Rows returns label/value pairs for tabular output.
func (i Info) Rows() [][]string {
	return [][]string{
		{"Version", i.Version},
		{"Git Commit", i.GitCommit},
		{"Build Date", i.BuildDate},
		{"Go Version", i.GoVersion},
		{"OS/Arch", i.OS + "/" + i.Arch},
	}
}
