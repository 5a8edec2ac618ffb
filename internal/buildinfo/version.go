// Package buildinfo carries build-time version metadata injected via
// -ldflags.
package buildinfo

var (
	// Version is the release version, "dev" for local builds
	Version = "dev"
	// Commit is the git revision the binary was built from
	Commit = "none"
	// Date is the build timestamp
	Date = "unknown"
)

// String renders the version line shown by --version
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
