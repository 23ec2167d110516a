//go:build debug

package build

// DEBUG is true when the repo is built with `-tags debug`.
const DEBUG = true
