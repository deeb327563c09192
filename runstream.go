// Package runstream streams live flow execution progress from a relay server
// to interested clients
package runstream

const (
	// Name identifies this service in logs and User-Agent headers
	Name = "runstream"

	// Version is overridden at build time via -ldflags
	Version = "dev"
)
