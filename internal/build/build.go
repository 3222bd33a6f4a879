// Package build provides build information that is linked into the binary
// at build time via -ldflags.
package build

var (
	// Version is the release version of the binary.
	Version = "dev"

	// Commit is the git commit the binary was built from.
	Commit = "none"

	// Date is the date the binary was built.
	Date = "unknown"

	// ProjectName is the namespace used for exported metrics.
	ProjectName = "prolog_service"
)
