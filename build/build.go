// Package build carries compile-time release mode and the
// Critical/Severe helpers used throughout the wallet core to flag
// invariant violations the type system cannot express.
package build
