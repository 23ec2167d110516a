package walletbackend

import (
	"context"
	"errors"

	"github.com/kryptokrona/kryptokrona-sub002/txconstructor"
)

// SendTransactionBasic sends amount to address with the configured
// default mixin and fee, change returning to the primary address.
// View wallets cannot send.
func (b *Backend) SendTransactionBasic(ctx context.Context, address string, amount uint64, paymentID string) (txconstructor.SendResult, error) {
	if b.store.IsViewWallet() {
		return txconstructor.SendResult{}, ErrViewWallet
	}
	return b.ctor.SendTransactionBasic(ctx, b.WalletHeight(), address, amount, paymentID)
}

// SendTransactionAdvanced exposes every knob of the send pipeline.
func (b *Backend) SendTransactionAdvanced(ctx context.Context, p txconstructor.SendParams) (txconstructor.SendResult, error) {
	if b.store.IsViewWallet() {
		return txconstructor.SendResult{}, ErrViewWallet
	}
	if p.ChangeAddress == "" {
		p.ChangeAddress = b.store.PrimaryAddress()
	}
	return b.ctor.SendTransactionAdvanced(ctx, b.WalletHeight(), p)
}

// SendFusionTransactionBasic consolidates dust at the primary address
// with the default mixin.
func (b *Backend) SendFusionTransactionBasic(ctx context.Context) (txconstructor.SendResult, error) {
	if b.store.IsViewWallet() {
		return txconstructor.SendResult{}, ErrViewWallet
	}
	return b.ctor.SendFusionTransactionBasic(ctx, b.WalletHeight())
}

// SendFusionTransactionAdvanced exposes the fusion pipeline's knobs.
func (b *Backend) SendFusionTransactionAdvanced(ctx context.Context, p txconstructor.FusionParams) (txconstructor.SendResult, error) {
	if b.store.IsViewWallet() {
		return txconstructor.SendResult{}, ErrViewWallet
	}
	if p.Destination == "" {
		p.Destination = b.store.PrimaryAddress()
	}
	return b.ctor.SendFusionTransactionAdvanced(ctx, b.WalletHeight(), p)
}

// Optimize runs fusion transactions until the wallet reports it is
// fully optimized, returning the hashes of every fusion relayed. Bound
// by the configured MaxSplitAttempts so a pathological wallet can't
// spin forever.
func (b *Backend) Optimize(ctx context.Context) ([]txconstructor.SendResult, error) {
	if b.store.IsViewWallet() {
		return nil, ErrViewWallet
	}

	var sent []txconstructor.SendResult
	attempts := b.cfg.MaxSplitAttempts
	if attempts <= 0 {
		attempts = 10
	}
	for i := 0; i < attempts; i++ {
		result, err := b.ctor.SendFusionTransactionBasic(ctx, b.WalletHeight())
		if errors.Is(err, txconstructor.ErrFullyOptimized) {
			return sent, nil
		}
		if err != nil {
			return sent, err
		}
		sent = append(sent, result)
	}
	return sent, nil
}

// SendTransactionWithOptimization is the recovery path for oversized
// sends: if the constructor
// reports the transaction cannot fit a block, run an optimization pass
// to consolidate inputs and retry the send once. Neither step happens
// inside the constructor itself.
func (b *Backend) SendTransactionWithOptimization(ctx context.Context, address string, amount uint64, paymentID string) (txconstructor.SendResult, error) {
	result, err := b.SendTransactionBasic(ctx, address, amount, paymentID)
	if !errors.Is(err, txconstructor.ErrTooManyInputsToFitInBlock) {
		return result, err
	}

	if _, optErr := b.Optimize(ctx); optErr != nil {
		return txconstructor.SendResult{}, optErr
	}
	return b.SendTransactionBasic(ctx, address, amount, paymentID)
}

// EstimateMinimumFee returns the smallest fee the network and the
// current node would accept for a transaction of the given serialized
// size.
func (b *Backend) EstimateMinimumFee(ctx context.Context, sizeBytes int) uint64 {
	return b.ctor.MinimumFee(ctx, sizeBytes)
}
