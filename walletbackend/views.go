package walletbackend

import (
	"context"

	"github.com/kryptokrona/kryptokrona-sub002/subwallets"
	"github.com/kryptokrona/kryptokrona-sub002/subwallets/txindex"
)

// Balance returns the whole container's unlocked and locked balance at
// the wallet's current height.
func (b *Backend) Balance() (unlocked, locked uint64) {
	return b.store.GetBalance(b.WalletHeight())
}

// BalanceOf returns one address's unlocked and locked balance.
func (b *Backend) BalanceOf(address string) (unlocked, locked uint64, err error) {
	if _, err := b.store.Get(address); err != nil {
		return 0, 0, err
	}
	unlocked, locked = b.store.GetBalance(b.WalletHeight(), address)
	return unlocked, locked, nil
}

// WalletHeight is the height the scanner has committed the store
// through; the store's state is consistent exactly up to here.
func (b *Backend) WalletHeight() uint64 {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()
	return b.sync.Height()
}

// SyncStatus reports the wallet's committed height alongside the
// node's local and network tips, the triple every status display wants.
func (b *Backend) SyncStatus(ctx context.Context) (walletHeight, localHeight, networkHeight uint64) {
	walletHeight = b.WalletHeight()
	if h, err := b.node.LocalTip(ctx); err == nil {
		localHeight = h
	}
	if h, err := b.node.NetworkTip(ctx); err == nil {
		networkHeight = h
	}
	return walletHeight, localHeight, networkHeight
}

// Transactions returns the confirmed transactions with startHeight <=
// blockHeight < endHeight, in the order they were recorded. endHeight
// of zero means no upper bound.
func (b *Backend) Transactions(startHeight, endHeight uint64) []subwallets.ConfirmedTransaction {
	var out []subwallets.ConfirmedTransaction
	for _, tx := range b.store.ConfirmedTransactions() {
		if tx.BlockHeight < startHeight {
			continue
		}
		if endHeight != 0 && tx.BlockHeight >= endHeight {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// UnconfirmedTransactions returns every transaction this wallet relayed
// that no scanned block has confirmed yet.
func (b *Backend) UnconfirmedTransactions() []subwallets.UnconfirmedTransaction {
	return b.store.UnconfirmedTransactions()
}

// FindTransactionsByPaymentID looks up confirmed transactions carrying
// paymentID via the disk index, falling back to a
// linear scan of the in-memory log when the index is unavailable. The
// log is authoritative either way.
func (b *Backend) FindTransactionsByPaymentID(paymentID [32]byte) []subwallets.ConfirmedTransaction {
	if b.index != nil {
		if records, err := b.index.FindByPaymentID(paymentID); err == nil {
			return b.resolveRecords(records)
		}
	}

	var out []subwallets.ConfirmedTransaction
	for _, tx := range b.store.ConfirmedTransactions() {
		if tx.PaymentID != nil && *tx.PaymentID == paymentID {
			out = append(out, tx)
		}
	}
	return out
}

// resolveRecords maps index hits back to the authoritative log entries,
// dropping any record the log no longer has (a stale index entry from a
// fork that the next Save will prune).
func (b *Backend) resolveRecords(records []txindex.Record) []subwallets.ConfirmedTransaction {
	byHash := map[string]subwallets.ConfirmedTransaction{}
	for _, tx := range b.store.ConfirmedTransactions() {
		byHash[tx.Hash.String()] = tx
	}
	var out []subwallets.ConfirmedTransaction
	for _, r := range records {
		if tx, ok := byHash[r.Hash]; ok {
			out = append(out, tx)
		}
	}
	return out
}
