// SPDX-License-Identifier: MIT

// Package version holds build metadata injected via ldflags.
package version

var (
	// Version is the application version.
	Version = "dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String renders the build metadata on one line.
func String() string {
	return Version + " (commit " + Commit + ", built " + Date + ")"
}
