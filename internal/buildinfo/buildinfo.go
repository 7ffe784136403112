// Package buildinfo holds build metadata injected with -ldflags, for
// example:
//
//	-X github.com/garyellow/lullabot-go/internal/buildinfo.Version=v1.2.0
package buildinfo

// Version is the release tag. Empty for local builds.
var Version = ""

// Commit is the git commit SHA.
var Commit = ""

// BuildDate is the RFC3339 build timestamp.
var BuildDate = ""

// String renders the metadata for logs and the startup banner.
func String() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	if Commit != "" {
		c := Commit
		if len(c) > 7 {
			c = c[:7]
		}
		v += " (" + c + ")"
	}
	return v
}
