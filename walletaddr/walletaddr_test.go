package walletaddr

import (
	"testing"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	net := Network{Prefix: 0x12}
	_, spendPK, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	_, viewPK, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	addr := Address{SpendKey: spendPK, ViewKey: viewPK}
	s := net.Encode(addr)

	decoded, err := net.Decode(s)
	require.NoError(t, err)
	require.Equal(t, addr, decoded)
}

func TestAddressRejectsWrongPrefix(t *testing.T) {
	net := Network{Prefix: 0x12}
	other := Network{Prefix: 0x34}
	_, spendPK, _ := crypto.GenerateKeyPair()
	_, viewPK, _ := crypto.GenerateKeyPair()
	s := other.Encode(Address{SpendKey: spendPK, ViewKey: viewPK})

	_, err := net.Decode(s)
	require.ErrorIs(t, err, ErrWrongPrefix)
}

func TestIntegratedAddressRoundTrip(t *testing.T) {
	net := Network{Prefix: 0x12}
	_, spendPK, _ := crypto.GenerateKeyPair()
	_, viewPK, _ := crypto.GenerateKeyPair()
	addr := Address{SpendKey: spendPK, ViewKey: viewPK}
	plain := net.Encode(addr)

	var pid [PaymentIDSize]byte
	pid[0] = 0xAA

	integrated, err := net.MakeIntegrated(plain, pid)
	require.NoError(t, err)

	splitPlain, splitPID, err := net.SplitIntegrated(integrated, nil)
	require.NoError(t, err)
	require.Equal(t, plain, splitPlain)
	require.Equal(t, pid, splitPID)
}

func TestSplitIntegratedConflictingPaymentID(t *testing.T) {
	net := Network{Prefix: 0x12}
	_, spendPK, _ := crypto.GenerateKeyPair()
	_, viewPK, _ := crypto.GenerateKeyPair()
	plain := net.Encode(Address{SpendKey: spendPK, ViewKey: viewPK})

	var embedded, caller [PaymentIDSize]byte
	embedded[0] = 1
	caller[0] = 2

	integrated, err := net.MakeIntegrated(plain, embedded)
	require.NoError(t, err)

	_, _, err = net.SplitIntegrated(integrated, &caller)
	require.ErrorIs(t, err, ErrPaymentIDConflict)
}

func TestSplitAmountIntoDenominations(t *testing.T) {
	got := SplitAmountIntoDenominations(1234567)
	want := []uint64{7, 60, 500, 4000, 30000, 200000, 1000000}
	require.Equal(t, want, got)

	var sum uint64
	for _, d := range got {
		require.True(t, IsPrettyDenomination(d))
		sum += d
	}
	require.Equal(t, uint64(1234567), sum)
}

func TestParseAmount(t *testing.T) {
	u := Units{Decimals: 2, MinimumRaw: 1}
	v, err := u.ParseAmount("1.23")
	require.NoError(t, err)
	require.Equal(t, uint64(123), v)

	require.Equal(t, "1.23", u.FormatAmount(123))

	_, err = u.ParseAmount("1.234")
	require.ErrorIs(t, err, ErrTooManyDecimals)
}

func TestIsUnlockedHeightBased(t *testing.T) {
	require.True(t, IsUnlocked(100, 100))
	require.False(t, IsUnlocked(101, 100))
	require.True(t, IsUnlocked(0, 0))
}
