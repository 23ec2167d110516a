package txconstructor

import (
	"context"
	"fmt"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/kryptokrona/kryptokrona-sub002/node"
	"github.com/kryptokrona/kryptokrona-sub002/subwallet"
)

// buildSignAndRelay runs the stages common to both standard and fusion
// transactions: denomination split, decoy mixing, key derivation,
// output construction, assembly, signing, bounds checking, and relay.
// Inputs are assumed already selected by the caller.
func (c *Constructor) buildSignAndRelay(
	ctx context.Context,
	height uint64,
	selected []subwallet.SpendableInput,
	destinations []Destination,
	unlockTime uint64,
	fee uint64,
	mixin uint64,
	paymentID *[32]byte,
) (SendResult, map[string][]subwallet.UnconfirmedInput, error) {
	// Step 4: denomination split.
	planned := splitDestinations(destinations)

	// Step 5: decoy mixing.
	obscured, err := c.mixInputs(ctx, selected, mixin)
	if err != nil {
		return SendResult{}, nil, err
	}

	// Step 6: per-input key derivation.
	derived, err := c.deriveInputKeys(obscured)
	if err != nil {
		return SendResult{}, nil, err
	}

	// Step 7: build outputs.
	txSecret, txPublic, outputs, err := c.buildOutputs(planned)
	if err != nil {
		return SendResult{}, nil, err
	}

	// Steps 8-9: assemble and sign.
	tx, err := c.assembleAndSign(obscured, derived, outputs, unlockTime, txPublic, paymentID)
	if err != nil {
		return SendResult{}, nil, err
	}

	// Step 10: bounds checks.
	if err := c.checkBounds(tx, height, sumInputs(selected), fee); err != nil {
		return SendResult{}, nil, err
	}

	// Step 11: relay.
	raw := tx.Serialize()
	hash := crypto.HashBytes(raw)
	if err := c.node.SubmitTransaction(ctx, raw); err != nil {
		if err == node.ErrOffline {
			return SendResult{}, nil, fmt.Errorf("txconstructor: relay: %w", err)
		}
		return SendResult{}, nil, fmt.Errorf("txconstructor: relay rejected: %w", err)
	}

	c.store.StoreTransactionSecretKey(hash, txSecret)

	selfOutputs := map[string][]subwallet.UnconfirmedInput{}
	for i, p := range planned {
		if _, err := c.store.Get(p.address); err != nil {
			continue
		}
		selfOutputs[p.address] = append(selfOutputs[p.address], subwallet.UnconfirmedInput{
			Amount:                p.amount,
			OneTimePublicKey:      outputs[i].Key,
			ParentTransactionHash: hash,
		})
	}

	return SendResult{Hash: hash, Fee: fee}, selfOutputs, nil
}
