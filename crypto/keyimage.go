package crypto

import (
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
)

// hashToPoint maps a public key onto another point on the curve, used as
// the per-output base point for key images and ring signatures. The
// reference implementation uses an Elligator-style field-element mapping
// (ge_fromfe_frombytes_vartime). This implementation uses try-and-increment
// instead: it SHA-512-hashes a domain tag, the key and a counter byte,
// decodes the first 32 bytes of the digest as a point encoding, and returns
// the first candidate that decodes and is not of small order, multiplied by
// the cofactor. The result has no known discrete log relative to G, so a
// key image cannot be computed from a ring member's public key alone. It
// is not byte-compatible with the reference mapping - see DESIGN.md.
func hashToPoint(pk PublicKey) (*edwards25519.Point, error) {
	msg := append([]byte("kryptokrona-sub002/hash-to-point"), pk[:]...)
	msg = append(msg, 0)
	for counter := 0; counter < 256; counter++ {
		msg[len(msg)-1] = byte(counter)
		sum := sha512.Sum512(msg)
		p, err := new(edwards25519.Point).SetBytes(sum[:HashSize])
		if err != nil {
			continue
		}
		if p.MultByCofactor(p).Equal(edwards25519.NewIdentityPoint()) == 0 {
			return p, nil
		}
	}
	return nil, fmt.Errorf("crypto: hash-to-point: no curve point found for %s", pk)
}

// GenerateKeyImage computes the deterministic key image I = x * Hp(P) for
// a one-time keypair (P, x). Reusing I on chain proves a double spend.
func GenerateKeyImage(oneTimePub PublicKey, oneTimeSec SecretKey) (KeyImage, error) {
	hp, err := hashToPoint(oneTimePub)
	if err != nil {
		return KeyImage{}, err
	}
	sc, err := new(edwards25519.Scalar).SetCanonicalBytes(oneTimeSec[:])
	if err != nil {
		return KeyImage{}, fmt.Errorf("%w: one-time secret key: %v", ErrMalformedKey, err)
	}
	img := new(edwards25519.Point).ScalarMult(sc, hp)
	var ki KeyImage
	copy(ki[:], img.Bytes())
	return ki, nil
}
