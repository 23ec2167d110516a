// Package node defines the narrow contract the wallet core consumes from
// a remote full node. The core never talks to a node
// process directly; it only ever holds a value satisfying this interface,
// so tests can substitute an in-memory fake and a production build can
// plug in an HTTP/JSON-RPC implementation (package node/httpnode) without
// either side knowing about the other.
package node

import (
	"context"
	"errors"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
)

var (
	// ErrOffline is returned when a call could not reach the node at all
	// (connection refused, timeout, DNS failure, ...). Distinguished from
	// ErrRejected so callers can decide whether to retry.
	ErrOffline = errors.New("node: daemon is offline or unreachable")

	// ErrRejected is returned when the node reached, understood, and
	// explicitly refused a request (e.g. a submitted transaction was
	// rejected as a double spend).
	ErrRejected = errors.New("node: daemon rejected the request")

	// ErrNotEnoughFakeOutputs is returned by GetRandomOutputs when fewer
	// decoys are available for a requested amount than were asked for.
	// This is a distinct error class from a transport failure.
	ErrNotEnoughFakeOutputs = errors.New("node: not enough decoy outputs available for the requested amount")
)

// Checkpoint is one hash in the rolling window the synchronizer gives the
// node to locate where to resume streaming blocks from.
type Checkpoint struct {
	Height uint64
	Hash   crypto.Hash
}

// WalletOutput is one transaction output, prefiltered by the node to just
// the fields a wallet needs to scan it.
type WalletOutput struct {
	Key               crypto.PublicKey
	Amount            uint64
	GlobalOutputIndex uint64
}

// WalletKeyImageInput is one transaction input, identified by the key
// image it spends.
type WalletKeyImageInput struct {
	KeyImage crypto.KeyImage
	Amount   uint64
}

// WalletTransaction is a transaction as the node presents it to wallets:
// enough to detect incoming outputs and outgoing key-image spends without
// shipping the full on-wire transaction body.
type WalletTransaction struct {
	Hash                 crypto.Hash
	TransactionPublicKey crypto.PublicKey
	PaymentID            *[32]byte
	Outputs              []WalletOutput
	Inputs               []WalletKeyImageInput
}

// WalletBlock is a block, prefiltered to the wallet-relevant subset of its
// contents.
type WalletBlock struct {
	Height              uint64
	Hash                crypto.Hash
	Timestamp           uint64
	CoinbaseTransaction *WalletTransaction
	Transactions        []WalletTransaction
}

// RandomOutput is one decoy candidate returned by GetRandomOutputs.
type RandomOutput struct {
	GlobalOutputIndex uint64
	Key               crypto.PublicKey
}

// Node is the full contract the wallet core consumes from a remote node.
// Implementations must be safe for concurrent use: the downloader and any
// number of foreground send operations may call it at the same time.
type Node interface {
	// LocalTip returns the node's locally synced height, for UI display
	// and as an upper bound when gating decoy requests. Staleness is
	// tolerated.
	LocalTip(ctx context.Context) (uint64, error)

	// NetworkTip returns the network's best-known height, for UI display.
	NetworkTip(ctx context.Context) (uint64, error)

	// NodeFee returns the node's advertised relay fee and payout address,
	// or (0, "") if the node charges none.
	NodeFee(ctx context.Context) (amount uint64, address string, err error)

	// GetBlocks streams wallet-oriented blocks starting from the first
	// checkpoint hash the node still recognizes, falling back to
	// startHeight/startTimestamp if none of the checkpoints are
	// recognized. Returns an empty slice, not an error, when the node is
	// caught up to its own tip.
	GetBlocks(ctx context.Context, checkpoints []Checkpoint, startHeight uint64, startTimestamp uint64) ([]WalletBlock, error)

	// GetRandomOutputs requests requestedCount decoy candidates for each
	// amount in amounts. Returns ErrNotEnoughFakeOutputs (wrapped) as a
	// distinct error class from a transport failure when the node has
	// fewer outputs than requested for some amount.
	GetRandomOutputs(ctx context.Context, amounts []uint64, requestedCount int) (map[uint64][]RandomOutput, error)

	// SubmitTransaction broadcasts a fully signed, serialized transaction.
	// Returns ErrOffline for transport failure and ErrRejected (often
	// wrapping a more specific reason) when the node understood and
	// refused the transaction.
	SubmitTransaction(ctx context.Context, rawTransaction []byte) error
}
