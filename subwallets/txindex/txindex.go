// Package txindex provides a disk-backed secondary index over a wallet's
// confirmed transaction log, so a long-lived wallet doesn't need to
// linear-scan its full history to answer "find the transaction with this
// payment ID" or "list transactions between heights".
// It is a supplementary enrichment, not part of the core store in
// package subwallets: WalletBackend wires it in alongside SubWallets,
// rebuilds it from the confirmed log on every Save, and prunes it on Reset.
//
// Built with github.com/asdine/storm over go.etcd.io/bbolt for indexed
// struct queries instead of hand-rolled bucket key encoding.
package txindex

import (
	"fmt"

	"github.com/asdine/storm"
	"github.com/asdine/storm/q"
	"github.com/kryptokrona/kryptokrona-sub002/crypto"
)

// Record is the denormalized, storm-indexed view of one confirmed
// transaction.
type Record struct {
	Hash        string `storm:"id"`
	BlockHeight uint64 `storm:"index"`
	Timestamp   uint64 `storm:"index"`
	PaymentID   string `storm:"index"`
	Fee         uint64
	IsCoinbase  bool
}

// Index wraps a storm.DB bucket dedicated to transaction records.
type Index struct {
	db *storm.DB
}

// Open opens (creating if necessary) a storm/bbolt index file at path.
func Open(path string) (*Index, error) {
	db, err := storm.Open(path)
	if err != nil {
		return nil, fmt.Errorf("txindex: opening %s: %w", path, err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database file.
func (x *Index) Close() error {
	return x.db.Close()
}

// Put upserts a record for the given transaction.
func (x *Index) Put(hash crypto.Hash, blockHeight, timestamp, fee uint64, paymentID *[32]byte, isCoinbase bool) error {
	rec := Record{
		Hash:        hash.String(),
		BlockHeight: blockHeight,
		Timestamp:   timestamp,
		Fee:         fee,
		IsCoinbase:  isCoinbase,
	}
	if paymentID != nil {
		rec.PaymentID = fmt.Sprintf("%x", *paymentID)
	}
	return x.db.Save(&rec)
}

// Delete removes the record for hash, if present. Nothing in this module
// calls it; fork pruning goes through DeleteFromHeight.
func (x *Index) Delete(hash crypto.Hash) error {
	err := x.db.DeleteStruct(&Record{Hash: hash.String()})
	if err == storm.ErrNotFound {
		return nil
	}
	return err
}

// DeleteFromHeight removes every indexed record at or above forkHeight,
// mirroring subwallets.SubWallets.RemoveForkedTransactions.
func (x *Index) DeleteFromHeight(forkHeight uint64) error {
	var matches []Record
	if err := x.db.Select(q.Gte("BlockHeight", forkHeight)).Find(&matches); err != nil {
		if err == storm.ErrNotFound {
			return nil
		}
		return err
	}
	for _, m := range matches {
		if err := x.db.DeleteStruct(&m); err != nil {
			return err
		}
	}
	return nil
}

// FindByPaymentID returns every indexed transaction carrying the given
// payment ID.
func (x *Index) FindByPaymentID(paymentID [32]byte) ([]Record, error) {
	var out []Record
	err := x.db.Find("PaymentID", fmt.Sprintf("%x", paymentID), &out)
	if err == storm.ErrNotFound {
		return nil, nil
	}
	return out, err
}

// ListInRange returns every indexed transaction with startHeight <=
// BlockHeight <= endHeight, ordered by height.
func (x *Index) ListInRange(startHeight, endHeight uint64) ([]Record, error) {
	var out []Record
	err := x.db.Select(
		q.Gte("BlockHeight", startHeight),
		q.Lte("BlockHeight", endHeight),
	).OrderBy("BlockHeight").Find(&out)
	if err == storm.ErrNotFound {
		return nil, nil
	}
	return out, err
}
