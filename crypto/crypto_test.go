package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPairDeterministic(t *testing.T) {
	var entropy [HashSize]byte
	entropy[31] = 1

	sk, pk, err := GenerateKeyPairDeterministic(entropy)
	require.NoError(t, err)
	require.False(t, sk.IsNil())
	require.False(t, pk.IsNil())

	derived, err := sk.PublicKey()
	require.NoError(t, err)
	require.Equal(t, pk, derived)

	// deterministic: same entropy, same keys
	sk2, pk2, err := GenerateKeyPairDeterministic(entropy)
	require.NoError(t, err)
	require.Equal(t, sk, sk2)
	require.Equal(t, pk, pk2)
}

func TestOneTimeKeyRoundTrip(t *testing.T) {
	var viewEntropy, spendEntropy [HashSize]byte
	viewEntropy[0] = 1
	spendEntropy[0] = 2

	viewSK, _, err := GenerateKeyPairDeterministic(viewEntropy)
	require.NoError(t, err)
	spendSK, spendPK, err := GenerateKeyPairDeterministic(spendEntropy)
	require.NoError(t, err)

	_, txPub, err := GenerateKeyPair()
	require.NoError(t, err)

	derivation, err := DeriveSharedSecret(txPub, viewSK)
	require.NoError(t, err)

	const outputIndex = uint64(3)

	oneTimePub, err := DerivePublicKey(derivation, outputIndex, spendPK)
	require.NoError(t, err)

	oneTimeSec, err := DeriveSecretKey(derivation, outputIndex, spendSK)
	require.NoError(t, err)

	recomputedPub, err := oneTimeSec.PublicKey()
	require.NoError(t, err)
	require.Equal(t, oneTimePub, recomputedPub, "derived one-time secret must match derived one-time public key")

	candidate, err := UnderivePublicKey(derivation, outputIndex, oneTimePub)
	require.NoError(t, err)
	require.Equal(t, spendPK, candidate, "underive must recover the owning spend key")
}

func TestGenerateKeyImageDeterministic(t *testing.T) {
	var entropy [HashSize]byte
	entropy[5] = 9
	sk, pk, err := GenerateKeyPairDeterministic(entropy)
	require.NoError(t, err)

	ki1, err := GenerateKeyImage(pk, sk)
	require.NoError(t, err)
	ki2, err := GenerateKeyImage(pk, sk)
	require.NoError(t, err)
	require.Equal(t, ki1, ki2)
	require.False(t, ki1.IsNil())
}

func TestRingSignatureRoundTrip(t *testing.T) {
	const ringSize = 5
	var pubs [ringSize]PublicKey
	var realSK SecretKey
	const realIndex = 2

	for i := 0; i < ringSize; i++ {
		var e [HashSize]byte
		e[0] = byte(i + 1)
		sk, pk, err := GenerateKeyPairDeterministic(e)
		require.NoError(t, err)
		pubs[i] = pk
		if i == realIndex {
			realSK = sk
		}
	}

	ki, err := GenerateKeyImage(pubs[realIndex], realSK)
	require.NoError(t, err)

	var prefixHash Hash
	prefixHash[0] = 0xAB

	sigs, err := GenerateRingSignature(prefixHash, ki, pubs[:], realSK, realIndex)
	require.NoError(t, err)
	require.Len(t, sigs, ringSize)

	ok, err := CheckRingSignature(prefixHash, ki, pubs[:], sigs)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRingSignatureRejectsTamperedMessage(t *testing.T) {
	const ringSize = 3
	var pubs [ringSize]PublicKey
	var realSK SecretKey
	const realIndex = 0

	for i := 0; i < ringSize; i++ {
		var e [HashSize]byte
		e[1] = byte(i + 1)
		sk, pk, err := GenerateKeyPairDeterministic(e)
		require.NoError(t, err)
		pubs[i] = pk
		if i == realIndex {
			realSK = sk
		}
	}

	ki, err := GenerateKeyImage(pubs[realIndex], realSK)
	require.NoError(t, err)

	var prefixHash Hash
	prefixHash[0] = 1
	sigs, err := GenerateRingSignature(prefixHash, ki, pubs[:], realSK, realIndex)
	require.NoError(t, err)

	var tamperedHash Hash
	tamperedHash[0] = 2
	ok, err := CheckRingSignature(tamperedHash, ki, pubs[:], sigs)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUnderivePublicKeyRejectsForeignSpendKey(t *testing.T) {
	var viewEntropy, ownerEntropy, strangerEntropy [HashSize]byte
	viewEntropy[2] = 7
	ownerEntropy[2] = 8
	strangerEntropy[2] = 9

	viewSK, _, err := GenerateKeyPairDeterministic(viewEntropy)
	require.NoError(t, err)
	_, ownerPK, err := GenerateKeyPairDeterministic(ownerEntropy)
	require.NoError(t, err)
	_, strangerPK, err := GenerateKeyPairDeterministic(strangerEntropy)
	require.NoError(t, err)

	_, txPub, err := GenerateKeyPair()
	require.NoError(t, err)
	derivation, err := DeriveSharedSecret(txPub, viewSK)
	require.NoError(t, err)

	oneTimePub, err := DerivePublicKey(derivation, 0, ownerPK)
	require.NoError(t, err)

	candidate, err := UnderivePublicKey(derivation, 0, oneTimePub)
	require.NoError(t, err)
	require.NotEqual(t, strangerPK, candidate)
}
