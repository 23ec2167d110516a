package txconstructor

import (
	"encoding/hex"
	"fmt"
)

// validateDestinations checks the destination rules:
// non-empty, every amount positive, every address well-formed for this
// network. Integrated addresses are split into a plain address and an
// embedded payment ID; if the caller also supplied an explicit payment
// ID it must agree with every integrated destination's embedded one.
func (c *Constructor) validateDestinations(destinations []Destination, callerPaymentID *[32]byte) ([]Destination, *[32]byte, error) {
	if len(destinations) == 0 {
		return nil, nil, ErrDestinationsEmpty
	}

	resolvedPaymentID := callerPaymentID
	out := make([]Destination, len(destinations))
	for i, d := range destinations {
		if d.Amount == 0 {
			return nil, nil, ErrAmountIsZero
		}

		plain, pid, isIntegrated := c.splitIfIntegrated(d.Address)
		if isIntegrated {
			if resolvedPaymentID != nil && *resolvedPaymentID != pid {
				return nil, nil, ErrPaymentIDConflict
			}
			resolvedPaymentID = &pid
			out[i] = Destination{Address: plain, Amount: d.Amount}
			continue
		}

		if _, err := c.network.Decode(d.Address); err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, d.Address, err)
		}
		out[i] = d
	}
	return out, resolvedPaymentID, nil
}

// splitIfIntegrated reports whether address decodes as an integrated
// address, returning the plain address and embedded payment ID if so.
func (c *Constructor) splitIfIntegrated(address string) (plain string, paymentID [32]byte, ok bool) {
	a, pid, err := c.network.DecodeIntegrated(address)
	if err != nil {
		return "", [32]byte{}, false
	}
	return c.network.Encode(a), pid, true
}

// validatePaymentID requires an empty payment ID or exactly 64 hex
// characters.
func validatePaymentID(paymentID string) (*[32]byte, error) {
	if paymentID == "" {
		return nil, nil
	}
	if len(paymentID) != 64 {
		return nil, ErrInvalidPaymentID
	}
	raw, err := hex.DecodeString(paymentID)
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidPaymentID
	}
	var out [32]byte
	copy(out[:], raw)
	return &out, nil
}

// validateOurAddresses ensures every source subwallet and the change
// address are tracked by this wallet's SubWallets store.
func (c *Constructor) validateOurAddresses(sourceAddresses []string, changeAddress string) error {
	for _, addr := range sourceAddresses {
		if _, err := c.store.Get(addr); err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownAddress, addr)
		}
	}
	if changeAddress == "" {
		return nil
	}
	if _, err := c.store.Get(changeAddress); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownAddress, changeAddress)
	}
	return nil
}

// validateMixin checks mixin against the allowable range for the current
// height.
func (c *Constructor) validateMixin(mixin uint64, height uint64) error {
	minMixin, maxMixin := c.config.MixinBounds(height)
	if mixin < minMixin || mixin > maxMixin {
		return fmt.Errorf("%w: %d not in [%d,%d] at height %d", ErrMixinOutOfRange, mixin, minMixin, maxMixin, height)
	}
	return nil
}

// validateAmount checks the requested total (destinations + fee) against
// the available unlocked balance of the source subwallets.
func (c *Constructor) validateAmount(total uint64, height uint64, sourceAddresses []string) error {
	unlocked, _ := c.store.GetBalance(height, sourceAddresses...)
	if unlocked < total {
		return fmt.Errorf("%w: have %d, need %d", ErrNotEnoughBalance, unlocked, total)
	}
	return nil
}

// sumDestinations totals destination amounts, detecting overflow.
func sumDestinations(destinations []Destination) (uint64, error) {
	var sum uint64
	for _, d := range destinations {
		next := sum + d.Amount
		if next < sum {
			return 0, ErrAmountOverflow
		}
		sum = next
	}
	return sum, nil
}
