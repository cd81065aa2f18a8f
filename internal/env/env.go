// Package env holds build-time identity stamped into the binary via
// linker flags (-ldflags "-X ...").
package env

var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)
