package crypto

import (
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/NebulousLabs/fastrand"
)

// GenerateRingSignature produces one (c, r) scalar pair per ring member
// for the given key image, proving that the signer knows the secret key
// behind exactly one of ringPubKeys (realIndex) without revealing which,
// while binding the proof to the key image so a double spend of the same
// one-time output is detectable on chain.
//
// Only ringPubKeys[realIndex] is backed by oneTimeSec; every other ring
// member is simulated with random scalars. txPrefixHash binds the
// signature to the exact transaction being authorized.
func GenerateRingSignature(
	txPrefixHash Hash,
	keyImage KeyImage,
	ringPubKeys []PublicKey,
	oneTimeSec SecretKey,
	realIndex int,
) ([]Signature, error) {
	n := len(ringPubKeys)
	if n == 0 {
		return nil, fmt.Errorf("crypto: empty ring")
	}
	if realIndex < 0 || realIndex >= n {
		return nil, fmt.Errorf("crypto: real index %d out of range for ring of size %d", realIndex, n)
	}

	image, err := new(edwards25519.Point).SetBytes(keyImage[:])
	if err != nil {
		return nil, fmt.Errorf("%w: key image: %v", ErrMalformedKey, err)
	}

	terms := make([]ringTerm, n)
	cArr := make([]*edwards25519.Scalar, n)
	rArr := make([]*edwards25519.Scalar, n)

	var k *edwards25519.Scalar
	sumOthers := edwards25519.NewScalar()

	for i, pub := range ringPubKeys {
		pubPoint, err := new(edwards25519.Point).SetBytes(pub[:])
		if err != nil {
			return nil, fmt.Errorf("%w: ring member %d: %v", ErrMalformedKey, i, err)
		}
		hp, err := hashToPoint(pub)
		if err != nil {
			return nil, err
		}

		if i == realIndex {
			k, err = randomScalar()
			if err != nil {
				return nil, err
			}
			terms[i] = ringTerm{
				l: new(edwards25519.Point).ScalarBaseMult(k),
				r: new(edwards25519.Point).ScalarMult(k, hp),
			}
			continue
		}

		qi, err := randomScalar()
		if err != nil {
			return nil, err
		}
		wi, err := randomScalar()
		if err != nil {
			return nil, err
		}
		cArr[i] = wi
		rArr[i] = qi
		sumOthers.Add(sumOthers, wi)

		// L_i = q_i*G + w_i*P_i; R_i = q_i*Hp(P_i) + w_i*I
		l := new(edwards25519.Point).Add(
			new(edwards25519.Point).ScalarBaseMult(qi),
			new(edwards25519.Point).ScalarMult(wi, pubPoint),
		)
		r := new(edwards25519.Point).Add(
			new(edwards25519.Point).ScalarMult(qi, hp),
			new(edwards25519.Point).ScalarMult(wi, image),
		)
		terms[i] = ringTerm{l: l, r: r}
	}

	challenge, err := ringChallenge(txPrefixHash, terms)
	if err != nil {
		return nil, err
	}

	wReal := new(edwards25519.Scalar).Subtract(challenge, sumOthers)
	secScalar, err := new(edwards25519.Scalar).SetCanonicalBytes(oneTimeSec[:])
	if err != nil {
		return nil, fmt.Errorf("%w: one-time secret key: %v", ErrMalformedKey, err)
	}
	qReal := new(edwards25519.Scalar).Subtract(k, new(edwards25519.Scalar).Multiply(wReal, secScalar))
	cArr[realIndex] = wReal
	rArr[realIndex] = qReal

	sigs := make([]Signature, n)
	for i := range sigs {
		copy(sigs[i][:HashSize], cArr[i].Bytes())
		copy(sigs[i][HashSize:], rArr[i].Bytes())
	}
	return sigs, nil
}

// CheckRingSignature verifies a ring signature produced by
// GenerateRingSignature. It is used both by the network (conceptually)
// and by the transaction constructor itself as a post-generation
// self-check.
func CheckRingSignature(
	txPrefixHash Hash,
	keyImage KeyImage,
	ringPubKeys []PublicKey,
	sigs []Signature,
) (bool, error) {
	n := len(ringPubKeys)
	if n == 0 || len(sigs) != n {
		return false, fmt.Errorf("crypto: ring/signature length mismatch (%d pubs, %d sigs)", n, len(sigs))
	}

	image, err := new(edwards25519.Point).SetBytes(keyImage[:])
	if err != nil {
		return false, fmt.Errorf("%w: key image: %v", ErrMalformedKey, err)
	}

	terms := make([]ringTerm, n)
	sum := edwards25519.NewScalar()

	for i, pub := range ringPubKeys {
		c, err := new(edwards25519.Scalar).SetCanonicalBytes(sigs[i][:HashSize])
		if err != nil {
			return false, fmt.Errorf("%w: signature %d challenge component: %v", ErrMalformedKey, i, err)
		}
		r, err := new(edwards25519.Scalar).SetCanonicalBytes(sigs[i][HashSize:])
		if err != nil {
			return false, fmt.Errorf("%w: signature %d response component: %v", ErrMalformedKey, i, err)
		}
		pubPoint, err := new(edwards25519.Point).SetBytes(pub[:])
		if err != nil {
			return false, fmt.Errorf("%w: ring member %d: %v", ErrMalformedKey, i, err)
		}
		hp, err := hashToPoint(pub)
		if err != nil {
			return false, err
		}

		l := new(edwards25519.Point).Add(
			new(edwards25519.Point).ScalarBaseMult(r),
			new(edwards25519.Point).ScalarMult(c, pubPoint),
		)
		rr := new(edwards25519.Point).Add(
			new(edwards25519.Point).ScalarMult(r, hp),
			new(edwards25519.Point).ScalarMult(c, image),
		)
		terms[i] = ringTerm{l: l, r: rr}
		sum.Add(sum, c)
	}

	challenge, err := ringChallenge(txPrefixHash, terms)
	if err != nil {
		return false, err
	}
	return sum.Equal(challenge) == 1, nil
}

type ringTerm struct {
	l *edwards25519.Point
	r *edwards25519.Point
}

func ringChallenge(txPrefixHash Hash, terms []ringTerm) (*edwards25519.Scalar, error) {
	h := sha512.New()
	h.Write(txPrefixHash[:])
	for _, t := range terms {
		h.Write(t.l.Bytes())
		h.Write(t.r.Bytes())
	}
	sc, err := new(edwards25519.Scalar).SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("crypto: computing ring challenge: %w", err)
	}
	return sc, nil
}

func randomScalar() (*edwards25519.Scalar, error) {
	var buf [64]byte
	fastrand.Read(buf[:])
	sc, err := new(edwards25519.Scalar).SetUniformBytes(buf[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: generating random scalar: %w", err)
	}
	return sc, nil
}
