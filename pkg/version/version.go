// Package version records build identification for the qkd-fh binary.
// The variables are meant to be overridden at link time:
//
//	go build -ldflags "-X github.com/pzverkov/qkd-go/pkg/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import "fmt"

var (
	// Version is the semantic release version.
	Version = "1.0.0"

	// GitCommit is the short commit hash of the build.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// String renders the full build identification line.
func String() string {
	return fmt.Sprintf("qkd-fh %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
