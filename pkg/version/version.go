// Package version exposes the build version.
package version

// Version is the current release. Overridden at build time via
// -ldflags "-X lectern/pkg/version.Version=...".
var Version = "0.3.0"
