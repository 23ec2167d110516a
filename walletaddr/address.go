package walletaddr

import (
	"errors"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
)

const (
	// ChecksumSize is the number of checksum bytes appended to the raw
	// address payload before base58 encoding.
	ChecksumSize = 4

	// PaymentIDSize is the fixed size of a payment ID.
	PaymentIDSize = 32
)

var (
	// ErrInvalidCharacter is returned when a string contains a byte
	// outside the base58 alphabet.
	ErrInvalidCharacter = errors.New("walletaddr: invalid base58 character")

	// ErrWrongPrefix is returned when a decoded address's prefix byte does
	// not match the network's configured prefix.
	ErrWrongPrefix = errors.New("walletaddr: address prefix does not match this network")

	// ErrWrongLength is returned when a decoded address does not have the
	// expected standard or integrated length.
	ErrWrongLength = errors.New("walletaddr: wrong address length")

	// ErrBadChecksum is returned when the decoded checksum does not match
	// the recomputed one.
	ErrBadChecksum = errors.New("walletaddr: checksum mismatch")

	// ErrPaymentIDConflict is returned when an integrated address's
	// embedded payment ID disagrees with a payment ID the caller also
	// supplied explicitly.
	ErrPaymentIDConflict = errors.New("walletaddr: integrated address payment ID conflicts with supplied payment ID")
)

// Network bundles the single configuration knob address encoding needs:
// the prefix byte that every address on this chain must decode to.
type Network struct {
	Prefix byte
}

// Address is the decoded form of a printable wallet address: a spend key
// unique to the subwallet, and a view key shared by the whole container.
type Address struct {
	SpendKey crypto.PublicKey
	ViewKey  crypto.PublicKey
}

// Encode renders the address as its base58-check printable string:
// base58(prefix || spendKey || viewKey || checksum(prefix||spendKey||viewKey)[:4]).
func (n Network) Encode(a Address) string {
	payload := n.payload(a)
	sum := crypto.HashBytes(payload)
	return encodeBase58(append(payload, sum[:ChecksumSize]...))
}

// EncodeIntegrated renders an integrated address: the same payload with a
// 32-byte payment ID interleaved before the checksum.
func (n Network) EncodeIntegrated(a Address, paymentID [PaymentIDSize]byte) string {
	payload := n.payload(a)
	payload = append(payload, paymentID[:]...)
	sum := crypto.HashBytes(payload)
	return encodeBase58(append(payload, sum[:ChecksumSize]...))
}

func (n Network) payload(a Address) []byte {
	out := make([]byte, 0, 1+2*crypto.HashSize)
	out = append(out, n.Prefix)
	out = append(out, a.SpendKey[:]...)
	out = append(out, a.ViewKey[:]...)
	return out
}

// Decode parses a standard (non-integrated) address, validating the
// prefix byte and the checksum.
func (n Network) Decode(s string) (Address, error) {
	a, _, err := n.decode(s, false)
	return a, err
}

// DecodeIntegrated parses an integrated address, returning the plain
// address and the embedded payment ID.
func (n Network) DecodeIntegrated(s string) (Address, [PaymentIDSize]byte, error) {
	a, pid, err := n.decode(s, true)
	return a, pid, err
}

func (n Network) decode(s string, integrated bool) (Address, [PaymentIDSize]byte, error) {
	raw, err := decodeBase58(s)
	if err != nil {
		return Address{}, [PaymentIDSize]byte{}, err
	}

	wantLen := 1 + 2*crypto.HashSize + ChecksumSize
	if integrated {
		wantLen += PaymentIDSize
	}
	if len(raw) != wantLen {
		return Address{}, [PaymentIDSize]byte{}, ErrWrongLength
	}

	payload := raw[:len(raw)-ChecksumSize]
	checksum := raw[len(raw)-ChecksumSize:]
	want := crypto.HashBytes(payload)
	for i := 0; i < ChecksumSize; i++ {
		if checksum[i] != want[i] {
			return Address{}, [PaymentIDSize]byte{}, ErrBadChecksum
		}
	}

	if payload[0] != n.Prefix {
		return Address{}, [PaymentIDSize]byte{}, ErrWrongPrefix
	}

	var a Address
	copy(a.SpendKey[:], payload[1:1+crypto.HashSize])
	copy(a.ViewKey[:], payload[1+crypto.HashSize:1+2*crypto.HashSize])

	var pid [PaymentIDSize]byte
	if integrated {
		copy(pid[:], payload[1+2*crypto.HashSize:])
	}
	return a, pid, nil
}

// Length reports the printable length of a standard address on this
// network, measured on this prefix followed by zero-valued keys and
// checksum. Because base58 here is not block-encoded (see base58.go)
// the length is not perfectly constant across all byte patterns the way
// the reference block-encoded scheme guarantees; callers that need the
// canonical length for display padding should treat this as the typical,
// not absolute, length.
func (n Network) Length() int {
	payload := append(n.payload(Address{}), make([]byte, ChecksumSize)...)
	return len(encodeBase58(payload))
}

// SplitIntegrated splits an integrated address string into a plain
// address string and its payment ID, validating that if the caller also
// supplied an explicit payment ID it agrees with the embedded one.
func (n Network) SplitIntegrated(integratedAddress string, callerPaymentID *[PaymentIDSize]byte) (plainAddress string, paymentID [PaymentIDSize]byte, err error) {
	a, pid, err := n.DecodeIntegrated(integratedAddress)
	if err != nil {
		return "", [PaymentIDSize]byte{}, err
	}
	if callerPaymentID != nil && *callerPaymentID != pid {
		return "", [PaymentIDSize]byte{}, ErrPaymentIDConflict
	}
	return n.Encode(a), pid, nil
}

// MakeIntegrated combines a plain address and a payment ID into an
// integrated address string.
func (n Network) MakeIntegrated(plainAddress string, paymentID [PaymentIDSize]byte) (string, error) {
	a, err := n.Decode(plainAddress)
	if err != nil {
		return "", err
	}
	return n.EncodeIntegrated(a, paymentID), nil
}
