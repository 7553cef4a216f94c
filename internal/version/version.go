package version

// Version is the current version of searchrunner.
// Can be overridden at build time with -ldflags "-X ...version.Version=..."
var Version = "0.4.0"

// Name is the application name.
const Name = "searchrunner"

// Description is a short description of the application.
const Description = "Standalone query cluster with a search-index catalog for development and testing"
