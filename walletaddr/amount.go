package walletaddr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrTooManyDecimals is returned by ParseAmount when the input string
	// has more fractional digits than the configured display precision.
	ErrTooManyDecimals = errors.New("walletaddr: amount has too many decimal places")

	// ErrBelowMinimum is returned by ParseAmount when the parsed amount is
	// below the configured minimum send amount.
	ErrBelowMinimum = errors.New("walletaddr: amount is below the minimum")

	// ErrAmountOverflow is returned when summing amounts would overflow
	// a uint64.
	ErrAmountOverflow = errors.New("walletaddr: amount overflow")
)

// Units describes the display conventions for atomic amounts: how many
// decimal places are shown, and the smallest amount the wallet will parse
// or send.
type Units struct {
	Decimals   int
	MinimumRaw uint64
}

// ParseAmount converts a display string (e.g. "1.2345") into atomic
// units, rejecting more fractional digits than u.Decimals allows and
// amounts below u.MinimumRaw.
func (u Units) ParseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	if neg {
		return 0, fmt.Errorf("walletaddr: negative amount %q", s)
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if !hasFrac {
		frac = ""
	}
	if len(frac) > u.Decimals {
		return 0, ErrTooManyDecimals
	}
	frac = frac + strings.Repeat("0", u.Decimals-len(frac))

	if whole == "" {
		whole = "0"
	}
	wholeVal, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("walletaddr: parsing integer part of %q: %w", s, err)
	}
	fracVal := uint64(0)
	if frac != "" {
		fracVal, err = strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("walletaddr: parsing fractional part of %q: %w", s, err)
		}
	}

	scale := pow10(u.Decimals)
	if wholeVal > math.MaxUint64/scale {
		return 0, ErrAmountOverflow
	}
	total := wholeVal*scale + fracVal
	if total < fracVal {
		return 0, ErrAmountOverflow
	}
	if total < u.MinimumRaw {
		return 0, ErrBelowMinimum
	}
	return total, nil
}

// FormatAmount renders atomic units as a fixed-precision display string.
func (u Units) FormatAmount(raw uint64) string {
	scale := pow10(u.Decimals)
	whole := raw / scale
	frac := raw % scale
	if u.Decimals == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fracStr := strconv.FormatUint(frac, 10)
	fracStr = strings.Repeat("0", u.Decimals-len(fracStr)) + fracStr
	return fmt.Sprintf("%d.%s", whole, fracStr)
}

func pow10(n int) uint64 {
	v := uint64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// SplitAmountIntoDenominations rewrites an amount as the sum of base-10
// digit multiples: 1234 becomes
// [4, 30, 200, 1000]. Each element is, by construction, in the "pretty"
// denomination set (a single significant digit times a power of ten).
// Zero-amount digits are skipped, so the result never contains zeros.
func SplitAmountIntoDenominations(amount uint64) []uint64 {
	var out []uint64
	place := uint64(1)
	for amount > 0 {
		digit := amount % 10
		if digit != 0 {
			out = append(out, digit*place)
		}
		amount /= 10
		place *= 10
	}
	return out
}

// IsPrettyDenomination reports whether v is a single significant decimal
// digit times a power of ten.
func IsPrettyDenomination(v uint64) bool {
	if v == 0 {
		return false
	}
	for v%10 == 0 {
		v /= 10
	}
	return v >= 1 && v <= 9
}
