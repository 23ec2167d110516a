// Package txconstructor builds, signs, and relays transactions: input
// selection, decoy mixing, one-time key and key-image derivation,
// ring-signature generation, transaction size/amount/fee validation,
// relay, and local bookkeeping for both standard transfers and
// input-consolidating fusion transactions. The pipeline is staged:
// inputs and outputs are accumulated, then signed exactly once, after
// which the result is immutable.
package txconstructor

import (
	"context"
	"fmt"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/kryptokrona/kryptokrona-sub002/node"
	"github.com/kryptokrona/kryptokrona-sub002/subwallet"
	"github.com/kryptokrona/kryptokrona-sub002/subwallets"
	"github.com/kryptokrona/kryptokrona-sub002/walletaddr"
)

// Config bundles every height-dependent and policy knob the constructor
// needs, set once at WalletBackend construction time.
type Config struct {
	Network walletaddr.Network
	Units   walletaddr.Units

	// MixinBounds returns the allowable [min,max] mixin range at a given
	// height.
	MixinBounds func(height uint64) (min, max uint64)

	// MaxTransactionSize returns the maximum serialized transaction size
	// in bytes at a given height.
	MaxTransactionSize func(height uint64) int

	// MaxFusionInputsForMixin returns how many inputs a single fusion
	// transaction may consolidate at the given mixin — smaller mixins
	// allow more inputs per transaction.
	MaxFusionInputsForMixin func(mixin uint64) int

	// MinFusionInputRatio is the minimum input:output count ratio a
	// fusion transaction must satisfy, typically 4.
	MinFusionInputRatio int

	// DefaultMixin and DefaultFee are used by the Basic entry points.
	DefaultMixin uint64
	DefaultFee   uint64

	// MinimumFee is the network's flat minimum for any non-fusion
	// transaction; a caller-supplied fee below it is rejected before any
	// network call. FeePerByte additionally scales the minimum with the
	// serialized size, for MinimumFee estimation.
	MinimumFee uint64
	FeePerByte uint64

	// MaxSplitAttempts bounds the oversized-transaction retry loop, so
	// repeatedly shrinking a transaction that will never fit cannot
	// spin forever.
	MaxSplitAttempts int

	// DecoyCache, when non-nil, mirrors recent decoy responses so a
	// short node outage doesn't block sends. Never
	// authoritative: it is only consulted when the node itself fails.
	DecoyCache DecoyCache
}

// DecoyCache is the narrow slice of persist.CheckpointCache the
// constructor consumes.
type DecoyCache interface {
	StoreDecoyOutputs(amount uint64, outputs []node.RandomOutput) error
	LoadDecoyOutputs(amount uint64) ([]node.RandomOutput, bool, error)
}

// Constructor builds, signs, and relays transactions against one
// SubWallets store and one Node.
type Constructor struct {
	node    node.Node
	store   *subwallets.SubWallets
	network walletaddr.Network
	config  Config
}

// New creates a Constructor bound to n and store.
func New(n node.Node, store *subwallets.SubWallets, config Config) *Constructor {
	return &Constructor{node: n, store: store, network: config.Network, config: config}
}

// SendParams is the full set of knobs SendTransactionAdvanced accepts.
type SendParams struct {
	Destinations    []Destination
	PaymentID       string
	Mixin           uint64
	Fee             uint64
	ChangeAddress   string
	SourceAddresses []string
	UnlockTime      uint64
}

// SendResult is returned by a successful send.
type SendResult struct {
	Hash crypto.Hash
	Fee  uint64
}

// SendTransactionBasic sends to a single destination using the
// constructor's configured defaults for mixin and fee, the wallet's
// primary address as change address, and every subwallet as a funding
// source.
func (c *Constructor) SendTransactionBasic(ctx context.Context, height uint64, address string, amount uint64, paymentID string) (SendResult, error) {
	return c.SendTransactionAdvanced(ctx, height, SendParams{
		Destinations:  []Destination{{Address: address, Amount: amount}},
		PaymentID:     paymentID,
		Mixin:         c.config.DefaultMixin,
		Fee:           c.config.DefaultFee,
		ChangeAddress: c.store.PrimaryAddress(),
	})
}

// SendTransactionAdvanced is the single pipeline every send routes
// through.
func (c *Constructor) SendTransactionAdvanced(ctx context.Context, height uint64, p SendParams) (SendResult, error) {
	// Step 1: validate.
	callerPaymentID, err := validatePaymentID(p.PaymentID)
	if err != nil {
		return SendResult{}, err
	}
	destinations, paymentID, err := c.validateDestinations(p.Destinations, callerPaymentID)
	if err != nil {
		return SendResult{}, err
	}
	if err := c.validateOurAddresses(p.SourceAddresses, p.ChangeAddress); err != nil {
		return SendResult{}, err
	}
	if err := c.validateMixin(p.Mixin, height); err != nil {
		return SendResult{}, err
	}
	if p.Fee < c.config.MinimumFee {
		return SendResult{}, fmt.Errorf("%w: %d below minimum %d", ErrFeeTooSmall, p.Fee, c.config.MinimumFee)
	}

	destinationTotal, err := sumDestinations(destinations)
	if err != nil {
		return SendResult{}, err
	}
	totalAmount := destinationTotal + p.Fee
	if totalAmount < destinationTotal {
		return SendResult{}, ErrAmountOverflow
	}
	if err := c.validateAmount(totalAmount, height, p.SourceAddresses); err != nil {
		return SendResult{}, err
	}

	// Step 2: node fee.
	if nodeFeeAmount, nodeFeeAddress, err := c.node.NodeFee(ctx); err == nil && nodeFeeAmount > 0 {
		destinations = append(destinations, Destination{Address: nodeFeeAddress, Amount: nodeFeeAmount})
		totalAmount += nodeFeeAmount
	}

	// Step 3: input selection.
	selected, err := c.store.SelectInputsForAmount(totalAmount, height, p.SourceAddresses...)
	if err != nil {
		return SendResult{}, err
	}
	change := sumInputs(selected) - totalAmount
	if change > 0 {
		destinations = append(destinations, Destination{Address: p.ChangeAddress, Amount: change})
	}

	result, selfOutputs, err := c.buildSignAndRelay(ctx, height, selected, destinations, p.UnlockTime, p.Fee, p.Mixin, paymentID)
	if err != nil {
		return SendResult{}, err
	}

	transfersOut := transfersOutBySource(selected, c.store)
	var lockedImages []crypto.KeyImage
	for _, in := range selected {
		lockedImages = append(lockedImages, in.Input.KeyImage)
	}

	if err := c.store.CommitSentTransaction(selected, subwallets.UnconfirmedTransaction{
		Hash:            result.Hash,
		Fee:             p.Fee,
		PaymentID:       paymentID,
		TransfersOut:    transfersOut,
		LockedKeyImages: lockedImages,
	}, selfOutputs); err != nil {
		return SendResult{}, fmt.Errorf("txconstructor: post-relay bookkeeping: %w", err)
	}

	return result, nil
}

// transfersOutBySource attributes each selected input's amount to the
// address of the subwallet that owned it, so the unconfirmed log entry
// records exactly how much each source subwallet's balance dropped.
func transfersOutBySource(selected []subwallet.SpendableInput, store *subwallets.SubWallets) map[string]uint64 {
	out := map[string]uint64{}
	for _, in := range selected {
		for _, addr := range store.Addresses() {
			w, err := store.Get(addr)
			if err != nil || w.PublicSpendKey != in.PublicSpendKey {
				continue
			}
			out[addr] += in.Input.Amount
			break
		}
	}
	return out
}
