package walletbackend

import (
	"errors"
	"fmt"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/kryptokrona/kryptokrona-sub002/subwallet"
	"github.com/kryptokrona/kryptokrona-sub002/subwallets"
	"github.com/kryptokrona/kryptokrona-sub002/walletaddr"
)

// ErrViewWallet is returned by operations that need a spend key on a
// container that only holds the view key.
var ErrViewWallet = errors.New("walletbackend: operation requires a spend key, this is a view-only wallet")

// AddSubWallet creates a fresh spend keypair and tracks it as a new
// address within this container. The new subwallet scans from the current wallet
// height: an address that has never existed cannot have history.
func (b *Backend) AddSubWallet() (address string, err error) {
	if b.store.IsViewWallet() {
		return "", ErrViewWallet
	}
	spendSecret, spendPub, err := crypto.GenerateKeyPair()
	if err != nil {
		return "", fmt.Errorf("walletbackend: generating subwallet keypair: %w", err)
	}
	return b.addSpendSubWallet(spendPub, spendSecret, b.WalletHeight(), 0)
}

// ImportSubWallet tracks an existing spend key as a new address,
// scanning from scanHeight so its prior history is recovered.
func (b *Backend) ImportSubWallet(privateSpendKey crypto.SecretKey, scanHeight uint64) (address string, err error) {
	if b.store.IsViewWallet() {
		return "", ErrViewWallet
	}
	spendPub, err := privateSpendKey.PublicKey()
	if err != nil {
		return "", fmt.Errorf("walletbackend: deriving public spend key: %w", err)
	}
	return b.addSpendSubWallet(spendPub, privateSpendKey, scanHeight, 0)
}

func (b *Backend) addSpendSubWallet(spendPub crypto.PublicKey, spendSecret crypto.SecretKey, scanHeight, scanTimestamp uint64) (string, error) {
	address, err := addressFor(b.network, spendPub, b.store.ViewSecretKey())
	if err != nil {
		return "", err
	}
	w := subwallet.New(spendPub, spendSecret, address, scanHeight, scanTimestamp, false)
	if err := b.store.Add(w); err != nil {
		return "", err
	}
	return address, nil
}

// ImportViewSubWallet tracks a public spend key without its secret
// half, so incoming outputs to that address are observed but never
// spendable.
func (b *Backend) ImportViewSubWallet(publicSpendKey crypto.PublicKey, scanHeight uint64) (address string, err error) {
	address, err = addressFor(b.network, publicSpendKey, b.store.ViewSecretKey())
	if err != nil {
		return "", err
	}
	w := subwallet.NewViewOnly(publicSpendKey, address, scanHeight, 0)
	if err := b.store.Add(w); err != nil {
		return "", err
	}
	return address, nil
}

// DeleteSubWallet stops tracking an address. The primary address can
// never be deleted; the error is
// subwallets.ErrWouldRemovePrimary.
func (b *Backend) DeleteSubWallet(address string) error {
	return b.store.Delete(address)
}

// Addresses returns every address tracked by this container.
func (b *Backend) Addresses() []string {
	return b.store.Addresses()
}

// PrimaryAddress returns the container's non-removable primary address.
func (b *Backend) PrimaryAddress() string {
	return b.store.PrimaryAddress()
}

// MakeIntegratedAddress bundles one of this network's plain addresses
// with a payment ID into an integrated address string.
func (b *Backend) MakeIntegratedAddress(plainAddress string, paymentID [walletaddr.PaymentIDSize]byte) (string, error) {
	return b.network.MakeIntegrated(plainAddress, paymentID)
}

// SplitIntegratedAddress is the inverse of MakeIntegratedAddress.
func (b *Backend) SplitIntegratedAddress(integratedAddress string) (plainAddress string, paymentID [walletaddr.PaymentIDSize]byte, err error) {
	return b.network.SplitIntegrated(integratedAddress, nil)
}

// Keys returns the primary address's spend keypair and the shared view
// key, for backup display. A view wallet returns ErrViewWallet.
func (b *Backend) Keys() (privateSpendKey, privateViewKey crypto.SecretKey, err error) {
	if b.store.IsViewWallet() {
		return crypto.SecretKey{}, crypto.SecretKey{}, ErrViewWallet
	}
	w, err := b.store.Get(b.store.PrimaryAddress())
	if err != nil {
		return crypto.SecretKey{}, crypto.SecretKey{}, err
	}
	return w.PrivateSpendKey, b.store.ViewSecretKey(), nil
}

// Store exposes the underlying SubWallets container for read-oriented
// collaborators such as an RPC dispatcher. Mutation must go through the
// Backend's own operations so the derived indices stay consistent.
func (b *Backend) Store() *subwallets.SubWallets {
	return b.store
}
