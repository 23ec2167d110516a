//go:build dev

package build

// Release is "dev" for developer builds.
const Release = "dev"
