package subwallets

import (
	"testing"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/kryptokrona/kryptokrona-sub002/subwallet"
	"github.com/stretchr/testify/require"
)

func newSubWallet(t *testing.T, address string) *subwallet.SubWallet {
	t.Helper()
	sk, pk, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return subwallet.New(pk, sk, address, 0, 0, false)
}

func newSpendableInput(t *testing.T, w *subwallet.SubWallet, amount uint64) subwallet.TransactionInput {
	t.Helper()
	_, pk, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	var ki crypto.KeyImage
	copy(ki[:], pk[:])
	in := subwallet.TransactionInput{KeyImage: ki, Amount: amount, Key: pk}
	w.Unspent = append(w.Unspent, in)
	return in
}

func TestAddFirstWalletBecomesPrimary(t *testing.T) {
	s := New(crypto.SecretKey{})
	w := newSubWallet(t, "addr1")
	require.NoError(t, s.Add(w))
	require.Equal(t, "addr1", s.PrimaryAddress())
	require.True(t, w.IsPrimary)
}

func TestAddDuplicateAddressErrors(t *testing.T) {
	s := New(crypto.SecretKey{})
	require.NoError(t, s.Add(newSubWallet(t, "addr1")))
	require.ErrorIs(t, s.Add(newSubWallet(t, "addr1")), ErrAddressAlreadyExists)
}

func TestDeletePrimaryRejected(t *testing.T) {
	s := New(crypto.SecretKey{})
	require.NoError(t, s.Add(newSubWallet(t, "addr1")))
	require.ErrorIs(t, s.Delete("addr1"), ErrWouldRemovePrimary)
}

func TestGetBalanceAcrossMultipleSubWallets(t *testing.T) {
	s := New(crypto.SecretKey{})
	w1 := newSubWallet(t, "addr1")
	w2 := newSubWallet(t, "addr2")
	require.NoError(t, s.Add(w1))
	require.NoError(t, s.Add(w2))

	newSpendableInput(t, w1, 100)
	newSpendableInput(t, w2, 250)

	unlocked, locked := s.GetBalance(10)
	require.Equal(t, uint64(350), unlocked)
	require.Equal(t, uint64(0), locked)
}

func TestSelectInputsForAmountErrorsWhenInsufficient(t *testing.T) {
	s := New(crypto.SecretKey{})
	w := newSubWallet(t, "addr1")
	require.NoError(t, s.Add(w))
	newSpendableInput(t, w, 50)

	_, err := s.SelectInputsForAmount(100, 10)
	require.ErrorIs(t, err, ErrNotEnoughBalance)
}

func TestSelectInputsForAmountAccumulatesToTarget(t *testing.T) {
	s := New(crypto.SecretKey{})
	w := newSubWallet(t, "addr1")
	require.NoError(t, s.Add(w))
	newSpendableInput(t, w, 40)
	newSpendableInput(t, w, 40)
	newSpendableInput(t, w, 40)

	selected, err := s.SelectInputsForAmount(50, 10)
	require.NoError(t, err)

	var sum uint64
	for _, in := range selected {
		sum += in.Input.Amount
	}
	require.GreaterOrEqual(t, sum, uint64(50))
}

func TestFindOwnerLocatesKeyImage(t *testing.T) {
	s := New(crypto.SecretKey{})
	w := newSubWallet(t, "addr1")
	require.NoError(t, s.Add(w))
	in := newSpendableInput(t, w, 10)

	owner, found := s.FindOwner(in.KeyImage)
	require.True(t, found)
	require.Equal(t, w, owner)
}

func TestRemoveForkedTransactionsPrunesLog(t *testing.T) {
	s := New(crypto.SecretKey{})
	require.NoError(t, s.Add(newSubWallet(t, "addr1")))

	var hashBefore, hashAfter crypto.Hash
	hashBefore[0] = 1
	hashAfter[0] = 2

	s.ConfirmTransaction(ConfirmedTransaction{Hash: hashBefore, BlockHeight: 5})
	s.ConfirmTransaction(ConfirmedTransaction{Hash: hashAfter, BlockHeight: 15})

	s.RemoveForkedTransactions(10)

	txs := s.ConfirmedTransactions()
	require.Len(t, txs, 1)
	require.Equal(t, hashBefore, txs[0].Hash)
}

func TestCancelUnconfirmedTransactionUnlocksInputs(t *testing.T) {
	s := New(crypto.SecretKey{})
	w := newSubWallet(t, "addr1")
	require.NoError(t, s.Add(w))
	in := newSpendableInput(t, w, 10)
	require.NoError(t, w.MarkInputAsLocked(in.KeyImage))

	var hash crypto.Hash
	hash[0] = 9
	in.ParentTransactionHash = hash
	w.Locked[0].ParentTransactionHash = hash

	s.StoreUnconfirmedTransaction(UnconfirmedTransaction{Hash: hash, LockedKeyImages: []crypto.KeyImage{in.KeyImage}})
	s.CancelUnconfirmedTransaction(hash)

	require.Empty(t, w.Locked)
	require.Len(t, w.Unspent, 1)
	require.Empty(t, s.UnconfirmedTransactions())
}
