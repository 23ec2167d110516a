package build

import (
	"fmt"
	"log"
)

// Critical should be called when a state is reached that should be
// impossible given the program's invariants (an input that was
// pre-validated by the caller turning out to be invalid, a bucket
// containing a key image it shouldn't, ...). In debug builds it panics,
// surfacing the bug immediately in tests. In release builds it logs the
// message and returns, on the theory that a deployed wallet process
// should keep running on its other subwallets rather than take down the
// whole program over one corrupted invariant.
func Critical(v ...interface{}) {
	msg := "Critical error: " + fmt.Sprintln(v...)
	if DEBUG {
		panic(msg)
	}
	log.Print(msg)
}

// Severe is Critical's non-fatal sibling: used for conditions that are
// suspicious but recoverable (a duplicate insert into a set, a diff that
// removes an entry that was never added). It never panics even in debug
// builds, since these conditions are expected to be hit by property-based
// tests that intentionally explore edge cases.
func Severe(v ...interface{}) {
	log.Print("Severe: " + fmt.Sprintln(v...))
}
