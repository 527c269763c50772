// Package version provides build version information embedding.
//
// Version, git commit, branch, and build time are set at compile time
// via -ldflags:
//
//	go build -ldflags "-X github.com/Montinou/interview-companion-sub000/version.Version=1.0.0"
package version
