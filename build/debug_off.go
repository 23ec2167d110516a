//go:build !debug

package build

// DEBUG indicates whether this is a debug build. In debug builds,
// Critical panics immediately so invariant violations are caught during
// development and testing; in release builds it logs and continues,
// since panicking in a deployed wallet process risks losing in-flight
// state.
const DEBUG = false
