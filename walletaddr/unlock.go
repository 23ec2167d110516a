package walletaddr

import "time"

// UnlockTimeThreshold is the boundary
// below which an unlock time is interpreted as a block height and above
// which it is interpreted as a UNIX timestamp.
const UnlockTimeThreshold = 500_000_000

// IsUnlocked reports whether an input with the given unlockTime can be
// spent at currentHeight. Height-based unlock times are
// compared directly against currentHeight; timestamp-based unlock times
// are compared against wall-clock time, since a timestamp-locked output's
// maturity has nothing to do with how many blocks have been scanned.
func IsUnlocked(unlockTime uint64, currentHeight uint64) bool {
	if unlockTime == 0 {
		return true
	}
	if unlockTime < UnlockTimeThreshold {
		return unlockTime <= currentHeight
	}
	return unlockTime <= uint64(nowUnix())
}

// nowUnix is a var so tests can freeze time without depending on a clock
// abstraction threaded through every caller.
var nowUnix = func() int64 { return time.Now().Unix() }
