package txconstructor

import (
	"context"
	"errors"
	"fmt"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/kryptokrona/kryptokrona-sub002/subwallet"
	"github.com/kryptokrona/kryptokrona-sub002/subwallets"
)

// FusionParams configures an advanced fusion send. Fusion transactions
// carry no fee: they exist purely to consolidate a wallet's own dust
// into fewer, larger outputs so future
// ordinary spends need fewer ring members.
type FusionParams struct {
	Mixin           uint64
	Destination     string
	SourceAddresses []string
}

// SendFusionTransactionBasic consolidates dust at the wallet's own
// primary address using the constructor's configured default mixin.
func (c *Constructor) SendFusionTransactionBasic(ctx context.Context, height uint64) (SendResult, error) {
	return c.SendFusionTransactionAdvanced(ctx, height, FusionParams{
		Mixin:       c.config.DefaultMixin,
		Destination: c.store.PrimaryAddress(),
	})
}

// SendFusionTransactionAdvanced runs the fusion pipeline:
// select the most fragmented denomination bucket, verify the input:output
// ratio invariant, and build/sign/relay exactly as an ordinary transfer
// except with zero fee and a single destination receiving every input's
// value. If the resulting transaction is too large to fit a block, the
// single largest input is dropped and the attempt retried, bounded by
// Config.MaxSplitAttempts.
func (c *Constructor) SendFusionTransactionAdvanced(ctx context.Context, height uint64, p FusionParams) (SendResult, error) {
	if err := c.validateOurAddresses(nil, p.Destination); err != nil {
		return SendResult{}, err
	}
	if err := c.validateMixin(p.Mixin, height); err != nil {
		return SendResult{}, err
	}

	maxInputs := c.config.MaxFusionInputsForMixin(p.Mixin)
	minInputsPerBucket := c.config.MinFusionInputRatio + 1

	selected := c.store.SelectFusionInputs(height, maxInputs, minInputsPerBucket, p.SourceAddresses...)
	if len(selected) == 0 {
		return SendResult{}, ErrFullyOptimized
	}

	attempts := c.config.MaxSplitAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if len(selected) == 0 {
			return SendResult{}, ErrFullyOptimized
		}

		total := sumInputs(selected)
		destinations := []Destination{{Address: p.Destination, Amount: total}}
		planned := splitDestinations(destinations)
		if len(planned) == 0 || len(selected) < c.config.MinFusionInputRatio*len(planned) {
			selected = dropLargestInput(selected)
			continue
		}

		result, selfOutputs, err := c.buildSignAndRelay(ctx, height, selected, destinations, 0, 0, p.Mixin, nil)
		if err == nil {
			var lockedImages []crypto.KeyImage
			for _, in := range selected {
				lockedImages = append(lockedImages, in.Input.KeyImage)
			}
			tx := subwallets.UnconfirmedTransaction{Hash: result.Hash, LockedKeyImages: lockedImages}
			if err := c.store.CommitSentTransaction(selected, tx, selfOutputs); err != nil {
				return SendResult{}, fmt.Errorf("txconstructor: post-relay bookkeeping: %w", err)
			}
			return result, nil
		}
		if !errors.Is(err, ErrTooManyInputsToFitInBlock) {
			return SendResult{}, err
		}
		selected = dropLargestInput(selected)
	}

	return SendResult{}, fmt.Errorf("%w: still too large after %d attempts", ErrTooManyInputsToFitInBlock, attempts)
}

// dropLargestInput removes the single highest-amount input, giving the
// oversized-transaction retry loop the best chance of fitting within one
// fewer attempt.
func dropLargestInput(selected []subwallet.SpendableInput) []subwallet.SpendableInput {
	if len(selected) == 0 {
		return selected
	}
	largest := 0
	for i, in := range selected {
		if in.Input.Amount > selected[largest].Input.Amount {
			largest = i
		}
	}
	out := make([]subwallet.SpendableInput, 0, len(selected)-1)
	out = append(out, selected[:largest]...)
	out = append(out, selected[largest+1:]...)
	return out
}
