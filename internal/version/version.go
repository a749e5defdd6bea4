// Package version carries build identification.
package version

// Set with -ldflags "-X github.com/couchcryptid/adcontext-bridge/internal/version.Version=...".
var (
	Version = "1.0.0"
	// Distribution marks how the build was produced: "s" for source builds,
	// "c" for packaged builds.
	Distribution = "s"
)

// SDKVersion is the value reported in the metadata payload.
func SDKVersion() string {
	return Version + "-" + Distribution
}
