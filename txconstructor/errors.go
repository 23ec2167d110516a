package txconstructor

import "errors"

// Error taxonomy, grouped by the stage of the pipeline that can raise
// them. Every entry here is a distinct sentinel so callers can branch
// on errors.Is without string matching.
var (
	// Validation (step 1).
	ErrDestinationsEmpty = errors.New("txconstructor: destination list is empty")
	ErrAmountIsZero      = errors.New("txconstructor: destination amount is zero")
	ErrInvalidAddress    = errors.New("txconstructor: destination address is invalid")
	ErrPaymentIDConflict = errors.New("txconstructor: integrated address payment ID conflicts with supplied payment ID")
	ErrInvalidPaymentID  = errors.New("txconstructor: payment ID must be empty or 64 hex characters")
	ErrUnknownAddress    = errors.New("txconstructor: address is not tracked by this wallet")
	ErrMixinOutOfRange   = errors.New("txconstructor: mixin is outside the allowable range for this height")
	ErrFeeTooSmall       = errors.New("txconstructor: fee is below the network minimum")

	// Balance (step 3).
	ErrNotEnoughBalance = errors.New("txconstructor: not enough unlocked balance")
	ErrAmountOverflow   = errors.New("txconstructor: sum of requested amounts overflows")

	// Construction (steps 5-9).
	ErrNotEnoughFakeOutputs        = errors.New("txconstructor: not enough decoy outputs available")
	ErrInvalidGeneratedKeyImage    = errors.New("txconstructor: derived one-time key does not match the on-chain key")
	ErrFailedToCreateRingSignature = errors.New("txconstructor: ring signature generation or self-verification failed")

	// Size/economics (step 10).
	ErrTooManyInputsToFitInBlock = errors.New("txconstructor: transaction is too large even after optimization")
	ErrInvalidAmounts            = errors.New("txconstructor: an output amount is not in the pretty-denomination set")
	ErrUnexpectedFee             = errors.New("txconstructor: actual fee does not match the expected fee")
	ErrFullyOptimized            = errors.New("txconstructor: no further fusion is possible, wallet is fully optimized")

	// Network (step 11) — re-exported from package node by the caller via
	// errors.Is against node.ErrOffline / node.ErrRejected; txconstructor
	// wraps them rather than redefining them so callers only learn one
	// taxonomy for the transport boundary.
)
