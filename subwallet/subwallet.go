// Package subwallet implements one address's worth of wallet state: its
// keypair and the four input buckets (unspent, locked, spent, and
// unconfirmed incoming) that track every output the address owns.
package subwallet

import (
	"fmt"

	"github.com/kryptokrona/kryptokrona-sub002/build"
	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/kryptokrona/kryptokrona-sub002/walletaddr"
)

// TransactionInput is one received output owned by this wallet.
type TransactionInput struct {
	KeyImage              crypto.KeyImage
	Amount                uint64
	BlockHeight           uint64
	TransactionPublicKey  crypto.PublicKey
	TransactionIndex      uint64
	GlobalOutputIndex     uint64
	Key                   crypto.PublicKey
	SpendHeight           uint64
	UnlockTime            uint64
	ParentTransactionHash crypto.Hash
}

// IsSpent reports whether this input has been confirmed spent.
func (i TransactionInput) IsSpent() bool { return i.SpendHeight != 0 }

// UnconfirmedInput is a not-yet-confirmed output, used for change and for
// recognizing our own outputs before their block has been scanned.
type UnconfirmedInput struct {
	Amount                uint64
	OneTimePublicKey      crypto.PublicKey
	ParentTransactionHash crypto.Hash
}

// SubWallet is one address within a SubWallets container.
type SubWallet struct {
	PublicSpendKey  crypto.PublicKey
	PrivateSpendKey crypto.SecretKey // zero value for a view-only subwallet
	HasPrivateSpend bool

	Address string

	SyncStartHeight    uint64
	SyncStartTimestamp uint64

	IsPrimary bool

	Unspent             []TransactionInput
	Locked              []TransactionInput
	Spent               []TransactionInput
	UnconfirmedIncoming []UnconfirmedInput
}

// New constructs a spending subwallet bound to a keypair.
func New(publicSpendKey crypto.PublicKey, privateSpendKey crypto.SecretKey, address string, syncStartHeight, syncStartTimestamp uint64, isPrimary bool) *SubWallet {
	return &SubWallet{
		PublicSpendKey:     publicSpendKey,
		PrivateSpendKey:    privateSpendKey,
		HasPrivateSpend:    true,
		Address:            address,
		SyncStartHeight:    syncStartHeight,
		SyncStartTimestamp: syncStartTimestamp,
		IsPrimary:          isPrimary,
	}
}

// NewViewOnly constructs a subwallet that can observe incoming outputs
// but never holds a spend key.
func NewViewOnly(publicSpendKey crypto.PublicKey, address string, syncStartHeight, syncStartTimestamp uint64) *SubWallet {
	return &SubWallet{
		PublicSpendKey:     publicSpendKey,
		HasPrivateSpend:    false,
		Address:            address,
		SyncStartHeight:    syncStartHeight,
		SyncStartTimestamp: syncStartTimestamp,
	}
}

// GetBalance returns the unlocked and locked balance of this subwallet at
// currentHeight.
func (w *SubWallet) GetBalance(currentHeight uint64) (unlocked uint64, locked uint64) {
	for _, in := range w.Unspent {
		if walletaddr.IsUnlocked(in.UnlockTime, currentHeight) {
			unlocked += in.Amount
		} else {
			locked += in.Amount
		}
	}
	for _, in := range w.UnconfirmedIncoming {
		locked += in.Amount
	}
	return unlocked, locked
}

// StoreTransactionInput atomically removes any unconfirmedIncoming entry
// matching the output's one-time public key (it just confirmed) and
// appends the input to Unspent, unless an input with the same one-time
// key and key image is already in Unspent or Locked, so rescanning a
// block does not store an output twice. For a view-only subwallet it
// stamps the sentinel zero key image itself, whatever the caller passed.
func (w *SubWallet) StoreTransactionInput(input TransactionInput) {
	if !w.HasPrivateSpend {
		input.KeyImage = crypto.KeyImage{}
	}

	kept := w.UnconfirmedIncoming[:0]
	for _, u := range w.UnconfirmedIncoming {
		if u.OneTimePublicKey == input.Key {
			continue
		}
		kept = append(kept, u)
	}
	w.UnconfirmedIncoming = kept

	for _, bucket := range [][]TransactionInput{w.Unspent, w.Locked} {
		for _, existing := range bucket {
			if existing.Key == input.Key && existing.KeyImage == input.KeyImage {
				return
			}
		}
	}
	w.Unspent = append(w.Unspent, input)
}

// StoreUnconfirmedIncoming records an expected-but-not-yet-scanned output,
// such as change from a transaction this wallet just built.
func (w *SubWallet) StoreUnconfirmedIncoming(in UnconfirmedInput) {
	w.UnconfirmedIncoming = append(w.UnconfirmedIncoming, in)
}

// MarkInputAsLocked moves an input from Unspent to Locked. The input must
// currently be in Unspent; its absence is a programmer error rather
// than a recoverable condition, since the caller is expected to have
// selected this key image from GetSpendableInputs moments before.
func (w *SubWallet) MarkInputAsLocked(keyImage crypto.KeyImage) error {
	for i, in := range w.Unspent {
		if in.KeyImage == keyImage {
			w.Locked = append(w.Locked, in)
			w.Unspent = append(w.Unspent[:i], w.Unspent[i+1:]...)
			return nil
		}
	}
	build.Critical(fmt.Sprintf("subwallet: markInputAsLocked: key image %s not found in unspent", keyImage))
	return fmt.Errorf("subwallet: key image %s not in unspent", keyImage)
}

// MarkInputAsSpent moves an input from Unspent or Locked to Spent,
// stamping spendHeight.
func (w *SubWallet) MarkInputAsSpent(keyImage crypto.KeyImage, spendHeight uint64) error {
	for i, in := range w.Unspent {
		if in.KeyImage == keyImage {
			in.SpendHeight = spendHeight
			w.Spent = append(w.Spent, in)
			w.Unspent = append(w.Unspent[:i], w.Unspent[i+1:]...)
			return nil
		}
	}
	for i, in := range w.Locked {
		if in.KeyImage == keyImage {
			in.SpendHeight = spendHeight
			w.Spent = append(w.Spent, in)
			w.Locked = append(w.Locked[:i], w.Locked[i+1:]...)
			return nil
		}
	}
	build.Critical(fmt.Sprintf("subwallet: markInputAsSpent: key image %s not found in unspent or locked", keyImage))
	return fmt.Errorf("subwallet: key image %s not in unspent or locked", keyImage)
}

// RemoveForkedInputs unwinds a chain fork: it drops
// unspent inputs received at or after forkHeight, and re-homes spent
// inputs whose spend is being unwound but whose receipt predates the
// fork. Locked and unconfirmedIncoming are cleared unconditionally, since
// they will re-derive from a resync.
func (w *SubWallet) RemoveForkedInputs(forkHeight uint64) {
	var kept []TransactionInput
	for _, in := range w.Unspent {
		if in.BlockHeight >= forkHeight {
			continue
		}
		kept = append(kept, in)
	}
	w.Unspent = kept

	var keptSpent []TransactionInput
	for _, in := range w.Spent {
		if in.BlockHeight < forkHeight && in.SpendHeight >= forkHeight {
			in.SpendHeight = 0
			w.Unspent = append(w.Unspent, in)
			continue
		}
		keptSpent = append(keptSpent, in)
	}
	w.Spent = keptSpent

	w.Locked = nil
	w.UnconfirmedIncoming = nil
}

// RemoveCancelledTransactions moves locked inputs whose parent
// transaction was cancelled (failed to confirm) back to Unspent, and
// drops the matching unconfirmedIncoming entries.
func (w *SubWallet) RemoveCancelledTransactions(cancelled map[crypto.Hash]struct{}) {
	var keptLocked []TransactionInput
	for _, in := range w.Locked {
		if _, isCancelled := cancelled[in.ParentTransactionHash]; isCancelled {
			in.SpendHeight = 0
			w.Unspent = append(w.Unspent, in)
			continue
		}
		keptLocked = append(keptLocked, in)
	}
	w.Locked = keptLocked

	var keptUnconfirmed []UnconfirmedInput
	for _, u := range w.UnconfirmedIncoming {
		if _, isCancelled := cancelled[u.ParentTransactionHash]; isCancelled {
			continue
		}
		keptUnconfirmed = append(keptUnconfirmed, u)
	}
	w.UnconfirmedIncoming = keptUnconfirmed
}

// SpendableInput binds an unspent input to the keypair needed to sign
// away its ownership.
type SpendableInput struct {
	Input           TransactionInput
	PublicSpendKey  crypto.PublicKey
	PrivateSpendKey crypto.SecretKey
}

// GetSpendableInputs returns this subwallet's unlocked unspent inputs,
// each bound to the owner's keypair so the transaction constructor can
// sign with it.
func (w *SubWallet) GetSpendableInputs(height uint64) []SpendableInput {
	var out []SpendableInput
	for _, in := range w.Unspent {
		if !walletaddr.IsUnlocked(in.UnlockTime, height) {
			continue
		}
		out = append(out, SpendableInput{
			Input:           in,
			PublicSpendKey:  w.PublicSpendKey,
			PrivateSpendKey: w.PrivateSpendKey,
		})
	}
	return out
}
