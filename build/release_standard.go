//go:build !testing && !dev

package build

// Release indicates the kind of release that is built.
// Possibilities: standard, testing, dev. No code in this module reads it.
const Release = "standard"
