package txconstructor

import (
	"encoding/binary"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
)

// Destination is one payment target: an address and an amount in atomic
// units.
type Destination struct {
	Address string
	Amount  uint64
}

// KeyImageInput is one signed transaction input: the key image being
// spent and the ring's global output indexes encoded as relative offsets.
type KeyImageInput struct {
	KeyImage      crypto.KeyImage
	OutputOffsets []uint64 // relative, ascending-sorted ring required
}

// Output is one transaction output: an amount and its one-time public
// key.
type Output struct {
	Amount uint64
	Key    crypto.PublicKey
}

// Transaction is the on-wire, consensus-critical transaction body.
// Once Signatures is populated the transaction must not be mutated; any
// further change invalidates every signature.
type Transaction struct {
	Version    uint8
	UnlockTime uint64
	Inputs     []KeyImageInput
	Outputs    []Output
	Extra      []byte
	Signatures [][]crypto.Signature // one ring per input, parallel to Inputs
}

// currentTransactionVersion is the version every transaction this
// constructor emits carries.
const currentTransactionVersion = 2

// extraTagTransactionPublicKey and extraTagPaymentID are the byte tags
// CryptoNote's `extra` field uses to identify the pieces concatenated
// into it.
const (
	extraTagTransactionPublicKey = 0x01
	extraTagPaymentID            = 0x02
)

// buildExtra assembles the extra field: the ephemeral transaction public
// key, then (if present) the tagged payment ID.
func buildExtra(txPublicKey crypto.PublicKey, paymentID *[32]byte) []byte {
	extra := make([]byte, 0, 2+crypto.HashSize+2+32)
	extra = append(extra, extraTagTransactionPublicKey)
	extra = append(extra, txPublicKey[:]...)
	if paymentID != nil {
		extra = append(extra, extraTagPaymentID)
		extra = append(extra, paymentID[:]...)
	}
	return extra
}

// PrefixHash hashes every field except Signatures — the "transaction
// prefix" that ring signatures are generated and verified against.
func (t Transaction) PrefixHash() crypto.Hash {
	buf := make([]byte, 0, 256)
	buf = append(buf, t.Version)
	buf = appendUvarint(buf, t.UnlockTime)
	buf = appendUvarint(buf, uint64(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = append(buf, in.KeyImage[:]...)
		buf = appendUvarint(buf, uint64(len(in.OutputOffsets)))
		for _, off := range in.OutputOffsets {
			buf = appendUvarint(buf, off)
		}
	}
	buf = appendUvarint(buf, uint64(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = appendUvarint(buf, out.Amount)
		buf = append(buf, out.Key[:]...)
	}
	buf = appendUvarint(buf, uint64(len(t.Extra)))
	buf = append(buf, t.Extra...)
	return crypto.HashBytes(buf)
}

// Serialize renders the fully signed transaction to its wire bytes, used
// both to estimate size against maxTxSize and to
// hand to Node.SubmitTransaction.
func (t Transaction) Serialize() []byte {
	buf := []byte{t.Version}
	buf = appendUvarint(buf, t.UnlockTime)
	buf = appendUvarint(buf, uint64(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = append(buf, in.KeyImage[:]...)
		buf = appendUvarint(buf, uint64(len(in.OutputOffsets)))
		for _, off := range in.OutputOffsets {
			buf = appendUvarint(buf, off)
		}
	}
	buf = appendUvarint(buf, uint64(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = appendUvarint(buf, out.Amount)
		buf = append(buf, out.Key[:]...)
	}
	buf = appendUvarint(buf, uint64(len(t.Extra)))
	buf = append(buf, t.Extra...)
	for _, ring := range t.Signatures {
		for _, sig := range ring {
			buf = append(buf, sig[:]...)
		}
	}
	return buf
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// RelativeOffsets converts a strictly increasing slice of absolute global
// output indexes into the compact relative-offset encoding a ring's
// inputs are stored with on chain: the first element is kept absolute,
// every later element becomes the delta from its predecessor:
// [5,10,20,21] -> [5,5,10,1].
func RelativeOffsets(absolute []uint64) []uint64 {
	out := make([]uint64, len(absolute))
	var prev uint64
	for i, v := range absolute {
		if i == 0 {
			out[i] = v
		} else {
			out[i] = v - prev
		}
		prev = v
	}
	return out
}

// AbsoluteOffsets reverses RelativeOffsets.
func AbsoluteOffsets(relative []uint64) []uint64 {
	out := make([]uint64, len(relative))
	var sum uint64
	for i, v := range relative {
		sum += v
		out[i] = sum
	}
	return out
}
