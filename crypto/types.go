// Package crypto implements the curve arithmetic the wallet core needs:
// shared-secret derivation, one-time key derivation, key images and ring
// signatures over the ed25519-based CryptoNote curve.
//
// Every exported operation fails closed: if the underlying curve math
// cannot complete (malformed input, a point that doesn't decode, ...) the
// operation returns an error instead of panicking or returning a zero
// value that looks like a valid answer.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	// HashSize is the length in bytes of a Hash, PublicKey, SecretKey,
	// KeyImage and half of a Signature.
	HashSize = 32

	// SignatureSize is the length in bytes of a Signature.
	SignatureSize = 64
)

var (
	// ErrInvalidSignature is returned when a signature fails to verify.
	ErrInvalidSignature = errors.New("crypto: invalid signature")

	// ErrMalformedKey is returned when a byte string does not decode to a
	// valid point on the curve.
	ErrMalformedKey = errors.New("crypto: key is not a valid curve point")

	// ErrWrongLength is returned by the hex decoders when given a string
	// of the wrong length.
	ErrWrongLength = errors.New("crypto: wrong hex length")
)

type (
	// Hash is a 32-byte opaque identifier, e.g. a transaction or block hash.
	Hash [HashSize]byte

	// PublicKey is a 32-byte curve point.
	PublicKey [HashSize]byte

	// SecretKey is a 32-byte curve scalar.
	SecretKey [HashSize]byte

	// KeyImage uniquely identifies the one-time keypair that produced it.
	// Reuse of a key image on chain proves a double spend.
	KeyImage [HashSize]byte

	// Signature is one ring member's (c, r) scalar pair, 64 bytes total.
	Signature [SignatureSize]byte
)

// String implementations make all five types hex-printable, including via
// fmt's %v/%s verbs and structured loggers.
func (h Hash) String() string      { return hex.EncodeToString(h[:]) }
func (k PublicKey) String() string { return hex.EncodeToString(k[:]) }
func (k SecretKey) String() string { return hex.EncodeToString(k[:]) }
func (k KeyImage) String() string  { return hex.EncodeToString(k[:]) }
func (s Signature) String() string { return hex.EncodeToString(s[:]) }

func (h Hash) MarshalJSON() ([]byte, error)      { return marshalHex(h[:]) }
func (k PublicKey) MarshalJSON() ([]byte, error) { return marshalHex(k[:]) }
func (k SecretKey) MarshalJSON() ([]byte, error) { return marshalHex(k[:]) }
func (k KeyImage) MarshalJSON() ([]byte, error)  { return marshalHex(k[:]) }
func (s Signature) MarshalJSON() ([]byte, error) { return marshalHex(s[:]) }

func (h *Hash) UnmarshalJSON(b []byte) error      { return unmarshalHex(b, h[:]) }
func (k *PublicKey) UnmarshalJSON(b []byte) error { return unmarshalHex(b, k[:]) }
func (k *SecretKey) UnmarshalJSON(b []byte) error { return unmarshalHex(b, k[:]) }
func (k *KeyImage) UnmarshalJSON(b []byte) error  { return unmarshalHex(b, k[:]) }
func (s *Signature) UnmarshalJSON(b []byte) error { return unmarshalHex(b, s[:]) }

// MarshalText/UnmarshalText let Hash serve as a JSON object key (e.g.
// persist's transaction-secret-key map), since encoding/json only
// consults MarshalJSON for values, never for map keys.
func (h Hash) MarshalText() ([]byte, error)  { return []byte(hex.EncodeToString(h[:])), nil }
func (h *Hash) UnmarshalText(b []byte) error { return unmarshalHex([]byte(`"`+string(b)+`"`), h[:]) }

func marshalHex(b []byte) ([]byte, error) {
	return []byte(`"` + hex.EncodeToString(b) + `"`), nil
}

func unmarshalHex(b []byte, dst []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("crypto: malformed hex JSON string")
	}
	raw, err := hex.DecodeString(string(b[1: len(b)-1]))
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return ErrWrongLength
	}
	copy(dst, raw)
	return nil
}

// HashFromHex decodes a lowercase hex string into a Hash.
func HashFromHex(s string) (h Hash, err error) {
	err = decodeFixed(s, h[:])
	return
}

// PublicKeyFromHex decodes a lowercase hex string into a PublicKey.
func PublicKeyFromHex(s string) (k PublicKey, err error) {
	err = decodeFixed(s, k[:])
	return
}

// KeyImageFromHex decodes a lowercase hex string into a KeyImage.
func KeyImageFromHex(s string) (k KeyImage, err error) {
	err = decodeFixed(s, k[:])
	return
}

func decodeFixed(s string, dst []byte) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return ErrWrongLength
	}
	copy(dst, raw)
	return nil
}

// IsNil reports whether the key is the pure zero value.
func (k PublicKey) IsNil() bool { return k == PublicKey{} }

// IsNil reports whether the key is the pure zero value.
func (k SecretKey) IsNil() bool { return k == SecretKey{} }

// IsNil reports whether the key image is the pure zero value. A nil key
// image is the sentinel stored in place of a real one for view wallets.
func (k KeyImage) IsNil() bool { return k == KeyImage{} }

// GenerateKeyPair creates a fresh, uniformly random spend or view keypair.
func GenerateKeyPair() (SecretKey, PublicKey, error) {
	var seed [HashSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return SecretKey{}, PublicKey{}, fmt.Errorf("crypto: reading entropy: %w", err)
	}
	return GenerateKeyPairDeterministic(seed)
}

// GenerateKeyPairDeterministic reduces 32 bytes of entropy to a scalar and
// derives the matching public point. Used for recreating a wallet's keys
// from a previously generated secret key, and in tests for reproducible
// fixtures.
func GenerateKeyPairDeterministic(entropy [HashSize]byte) (SecretKey, PublicKey, error) {
	sc, err := scalarFromBytesReduced(entropy[:])
	if err != nil {
		return SecretKey{}, PublicKey{}, err
	}
	var sk SecretKey
	copy(sk[:], sc.Bytes())
	pk, err := publicFromSecret(sk)
	if err != nil {
		return SecretKey{}, PublicKey{}, err
	}
	return sk, pk, nil
}

// publicFromSecret computes the public point sk*G.
func publicFromSecret(sk SecretKey) (PublicKey, error) {
	sc, err := new(edwards25519.Scalar).SetCanonicalBytes(sk[:])
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	p := new(edwards25519.Point).ScalarBaseMult(sc)
	var pk PublicKey
	copy(pk[:], p.Bytes())
	return pk, nil
}

// PublicKey derives the public point matching this secret scalar.
func (sk SecretKey) PublicKey() (PublicKey, error) {
	return publicFromSecret(sk)
}

// HashBytes hashes a byte string to a Hash. Used for checksums and as a
// building block for the transaction prefix hash; not the hash-to-scalar
// primitive used in key derivation (see scalarFromBytesReduced).
func HashBytes(data...[]byte) Hash {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
