package config

import "fmt"

// Version is the release token shown by --version. Overridden at build
// time with -ldflags "-X peercam/pkg/config.Version=...".
var Version = "2026.1-dev"

// VersionString returns the full version banner.
func VersionString() string {
	return fmt.Sprintf("peercam version %s USE_HWENC=%d", Version, hwEncoder)
}
