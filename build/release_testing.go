//go:build testing

package build

// Release is "testing" for builds made with `-tags testing`.
const Release = "testing"
