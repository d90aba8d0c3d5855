package version

// Version is the current version of the nearby share toolchain.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/irfan-khan-96/ruff-web/internal/version.Version=v1.0.0'"
var Version = "dev"
