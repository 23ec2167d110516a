package crypto

import (
	"crypto/sha512"
	"encoding/binary"
	"fmt"

	"filippo.io/edwards25519"
)

// Derivation is the shared secret point produced by deriveSharedSecret. It
// is combined with an output index to produce per-output one-time keys.
type Derivation [HashSize]byte

func (d Derivation) String() string { return fmt.Sprintf("%x", d[:]) }

// scalarFromBytesReduced hashes the reference ed25519 curve's Hs()
// convention: it maps arbitrary entropy onto a scalar by SHA-512-ing it
// to 64 bytes and reducing mod the group order. The reference CryptoNote
// implementation uses Keccak for this role; no Keccak implementation
// appears anywhere in the retrieval pack, so SHA-512 (stdlib) is used
// instead as the hash-to-scalar primitive. This is a deliberate, named
// deviation from bit-exact network compatibility for the hashing
// primitive only — documented in DESIGN.md.
func scalarFromBytesReduced(b []byte) (*edwards25519.Scalar, error) {
	sum := sha512.Sum512(b)
	sc, err := new(edwards25519.Scalar).SetUniformBytes(sum[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: reducing scalar: %w", err)
	}
	return sc, nil
}

// hashToScalar is the Hs(derivation || varint(outputIndex)) construction
// used throughout one-time key derivation.
func hashToScalar(derivation Derivation, outputIndex uint64) (*edwards25519.Scalar, error) {
	buf := make([]byte, HashSize+binary.MaxVarintLen64)
	copy(buf, derivation[:])
	n := binary.PutUvarint(buf[HashSize:], outputIndex)
	return scalarFromBytesReduced(buf[:HashSize+n])
}

// deriveSharedSecret computes 8 * privateViewKey * txPublicKey, the
// standard CryptoNote Diffie-Hellman shared secret. The cofactor
// multiplication by 8 clears the small-order component, matching the
// reference "derive_key_derivation".
func deriveSharedSecret(txPublicKey PublicKey, privateViewKey SecretKey) (Derivation, error) {
	if privateViewKey.IsNil() {
		return Derivation{}, ErrMalformedKey
	}
	p, err := new(edwards25519.Point).SetBytes(txPublicKey[:])
	if err != nil {
		return Derivation{}, fmt.Errorf("%w: transaction public key: %v", ErrMalformedKey, err)
	}
	sc, err := new(edwards25519.Scalar).SetCanonicalBytes(privateViewKey[:])
	if err != nil {
		return Derivation{}, fmt.Errorf("%w: view key: %v", ErrMalformedKey, err)
	}
	shared := new(edwards25519.Point).ScalarMult(sc, p)
	shared = shared.MultByCofactor(shared)
	var d Derivation
	copy(d[:], shared.Bytes())
	return d, nil
}

// DeriveSharedSecret is the exported form of deriveSharedSecret.
// Failure to compute it means the transaction's public key is malformed
// and scanning of that transaction must be skipped.
func DeriveSharedSecret(txPublicKey PublicKey, privateViewKey SecretKey) (Derivation, error) {
	return deriveSharedSecret(txPublicKey, privateViewKey)
}

// DerivePublicKey produces the one-time output public key posted on chain
// for a given derivation, output index and receiver spend key:
// P = receiverSpendKey + Hs(derivation, index)*G.
func DerivePublicKey(derivation Derivation, outputIndex uint64, receiverSpendKey PublicKey) (PublicKey, error) {
	sc, err := hashToScalar(derivation, outputIndex)
	if err != nil {
		return PublicKey{}, err
	}
	base, err := new(edwards25519.Point).SetBytes(receiverSpendKey[:])
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: receiver spend key: %v", ErrMalformedKey, err)
	}
	hg := new(edwards25519.Point).ScalarBaseMult(sc)
	sum := new(edwards25519.Point).Add(base, hg)
	var out PublicKey
	copy(out[:], sum.Bytes())
	return out, nil
}

// DeriveSecretKey produces the matching one-time secret scalar; only the
// true owner (who holds ownerPrivateSpendKey) can compute it:
// x = ownerPrivateSpendKey + Hs(derivation, index) mod L.
func DeriveSecretKey(derivation Derivation, outputIndex uint64, ownerPrivateSpendKey SecretKey) (SecretKey, error) {
	hs, err := hashToScalar(derivation, outputIndex)
	if err != nil {
		return SecretKey{}, err
	}
	base, err := new(edwards25519.Scalar).SetCanonicalBytes(ownerPrivateSpendKey[:])
	if err != nil {
		return SecretKey{}, fmt.Errorf("%w: owner spend key: %v", ErrMalformedKey, err)
	}
	sum := new(edwards25519.Scalar).Add(base, hs)
	var out SecretKey
	copy(out[:], sum.Bytes())
	return out, nil
}

// UnderivePublicKey reverses DerivePublicKey to recover the candidate
// spend key an on-chain output key would have to belong to:
// candidate = onChainKey - Hs(derivation, index)*G. Used while scanning:
// the caller compares the result against each of its own public spend
// keys rather than trusting the chain to say who an output belongs to.
func UnderivePublicKey(derivation Derivation, outputIndex uint64, onChainKey PublicKey) (PublicKey, error) {
	sc, err := hashToScalar(derivation, outputIndex)
	if err != nil {
		return PublicKey{}, err
	}
	onChain, err := new(edwards25519.Point).SetBytes(onChainKey[:])
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: on-chain output key: %v", ErrMalformedKey, err)
	}
	hg := new(edwards25519.Point).ScalarBaseMult(sc)
	diff := new(edwards25519.Point).Subtract(onChain, hg)
	var out PublicKey
	copy(out[:], diff.Bytes())
	return out, nil
}
