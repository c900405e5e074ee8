// Package version reports the craft release.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var embedded string

// Override replaces the embedded version when set at link time:
//
//	go build -ldflags "-X github.com/ShayCichocki/craft/internal/version.Override=1.2.3"
var Override string

// Get returns the release version. A build from an empty VERSION file
// reports "dev".
func Get() string {
	if v := strings.TrimSpace(Override); v != "" {
		return v
	}
	if v := strings.TrimSpace(embedded); v != "" {
		return v
	}
	return "dev"
}
