// Package version holds build metadata injected via ldflags:
//
//	-X github.com/kailas-cloud/docrel/internal/version.Version=v0.3.0
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build as "docrel <version> (<commit>, built <date>)".
func String() string {
	return fmt.Sprintf("docrel %s (%s, built %s)", Version, Commit, Date)
}
