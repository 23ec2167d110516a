package txconstructor

import (
	"context"
	"testing"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/kryptokrona/kryptokrona-sub002/node"
	"github.com/kryptokrona/kryptokrona-sub002/subwallet"
	"github.com/kryptokrona/kryptokrona-sub002/subwallets"
	"github.com/kryptokrona/kryptokrona-sub002/walletaddr"
	"github.com/stretchr/testify/require"
)

var testNetwork = walletaddr.Network{Prefix: 0x66}

// fakeNode serves deterministic decoys and captures every submitted
// transaction; submitErr forces the relay step to fail.
type fakeNode struct {
	nodeFeeAmount  uint64
	nodeFeeAddress string
	decoysPerCall  int
	duplicateReal  uint64 // if nonzero, one decoy reuses this global index
	submitErr      error
	submitted      [][]byte
}

func (f *fakeNode) LocalTip(context.Context) (uint64, error)   { return 0, nil }
func (f *fakeNode) NetworkTip(context.Context) (uint64, error) { return 0, nil }

func (f *fakeNode) NodeFee(context.Context) (uint64, string, error) {
	return f.nodeFeeAmount, f.nodeFeeAddress, nil
}

func (f *fakeNode) GetBlocks(context.Context, []node.Checkpoint, uint64, uint64) ([]node.WalletBlock, error) {
	return nil, nil
}

func (f *fakeNode) GetRandomOutputs(_ context.Context, amounts []uint64, requestedCount int) (map[uint64][]node.RandomOutput, error) {
	count := f.decoysPerCall
	if count == 0 {
		count = requestedCount
	}
	out := make(map[uint64][]node.RandomOutput, len(amounts))
	for _, amount := range amounts {
		for i := 0; i < count; i++ {
			idx := uint64(100 + i)
			if f.duplicateReal != 0 && i == 0 {
				idx = f.duplicateReal
			}
			_, pub, err := crypto.GenerateKeyPair()
			if err != nil {
				return nil, err
			}
			out[amount] = append(out[amount], node.RandomOutput{GlobalOutputIndex: idx, Key: pub})
		}
	}
	return out, nil
}

func (f *fakeNode) SubmitTransaction(_ context.Context, raw []byte) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, raw)
	return nil
}

var _ node.Node = (*fakeNode)(nil)

func testConfig() Config {
	return Config{
		Network:                 testNetwork,
		MixinBounds:             func(uint64) (uint64, uint64) { return 0, 100 },
		MaxTransactionSize:      func(uint64) int { return 1_000_000 },
		MaxFusionInputsForMixin: func(uint64) int { return 20 },
		MinFusionInputRatio:     4,
		DefaultMixin:            3,
		DefaultFee:              100,
		MaxSplitAttempts:        5,
	}
}

// testWallet is a store with one spending subwallet whose address
// decodes on testNetwork, plus the keys needed to mint owned inputs.
type testWallet struct {
	store       *subwallets.SubWallets
	address     string
	viewSecret  crypto.SecretKey
	spendSecret crypto.SecretKey
	spendPub    crypto.PublicKey
}

func newTestWallet(t *testing.T) *testWallet {
	t.Helper()
	viewSecret, viewPub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	spendSecret, spendPub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	address := testNetwork.Encode(walletaddr.Address{SpendKey: spendPub, ViewKey: viewPub})
	store := subwallets.New(viewSecret)
	require.NoError(t, store.Add(subwallet.New(spendPub, spendSecret, address, 0, 0, true)))

	return &testWallet{
		store:       store,
		address:     address,
		viewSecret:  viewSecret,
		spendSecret: spendSecret,
		spendPub:    spendPub,
	}
}

// addInput mints an owned unspent input whose one-time key genuinely
// derives from the wallet's keys, so deriveInputKeys accepts it.
func (tw *testWallet) addInput(t *testing.T, amount, globalIndex uint64) {
	t.Helper()
	_, txPub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	derivation, err := crypto.DeriveSharedSecret(txPub, tw.viewSecret)
	require.NoError(t, err)
	outKey, err := crypto.DerivePublicKey(derivation, 0, tw.spendPub)
	require.NoError(t, err)
	oneTimeSecret, err := crypto.DeriveSecretKey(derivation, 0, tw.spendSecret)
	require.NoError(t, err)
	keyImage, err := crypto.GenerateKeyImage(outKey, oneTimeSecret)
	require.NoError(t, err)

	require.NoError(t, tw.store.StoreTransactionInput(tw.address, subwallet.TransactionInput{
		KeyImage:             keyImage,
		Amount:               amount,
		BlockHeight:          1,
		TransactionPublicKey: txPub,
		TransactionIndex:     0,
		GlobalOutputIndex:    globalIndex,
		Key:                  outKey,
	}))
}

// externalAddress builds a well-formed destination that does not belong
// to the wallet.
func externalAddress(t *testing.T) string {
	t.Helper()
	_, spendPub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	_, viewPub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return testNetwork.Encode(walletaddr.Address{SpendKey: spendPub, ViewKey: viewPub})
}

func TestSendTransactionEndToEnd(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	tw.addInput(t, 10_000, 8)

	fn := &fakeNode{}
	c := New(fn, tw.store, testConfig())

	result, err := c.SendTransactionBasic(context.Background(), 10, externalAddress(t), 9_900, "")
	require.NoError(t, err)
	require.Equal(t, uint64(100), result.Fee)
	require.Len(t, fn.submitted, 1)
	require.NotEmpty(t, fn.submitted[0])

	// Post-relay bookkeeping: the selected inputs are locked and the
	// outgoing transaction is in the unconfirmed log.
	unconfirmed := tw.store.UnconfirmedTransactions()
	require.Len(t, unconfirmed, 1)
	require.Equal(t, result.Hash, unconfirmed[0].Hash)
	require.NotEmpty(t, unconfirmed[0].LockedKeyImages)

	w, err := tw.store.Get(tw.address)
	require.NoError(t, err)
	require.Len(t, w.Locked, len(unconfirmed[0].LockedKeyImages))

	// The ephemeral transaction secret is retained for proofs.
	_, ok := tw.store.TransactionSecretKey(result.Hash)
	require.True(t, ok)
}

// TestSendInsufficientBalance checks that an underfunded send is
// rejected before any network call and wallet state is untouched.
func TestSendInsufficientBalance(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 1_000, 7)

	fn := &fakeNode{}
	c := New(fn, tw.store, testConfig())

	_, err := c.SendTransactionBasic(context.Background(), 10, externalAddress(t), 950, "")
	require.ErrorIs(t, err, ErrNotEnoughBalance)
	require.Empty(t, fn.submitted)

	w, getErr := tw.store.Get(tw.address)
	require.NoError(t, getErr)
	require.Len(t, w.Unspent, 1)
	require.Empty(t, w.Locked)
	require.Empty(t, tw.store.UnconfirmedTransactions())
}

func TestSendRejectsMalformedPaymentID(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	c := New(&fakeNode{}, tw.store, testConfig())

	_, err := c.SendTransactionBasic(context.Background(), 10, externalAddress(t), 1_000, "not-hex")
	require.ErrorIs(t, err, ErrInvalidPaymentID)
}

func TestSendRejectsUntrackedChangeAddress(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	c := New(&fakeNode{}, tw.store, testConfig())

	_, err := c.SendTransactionAdvanced(context.Background(), 10, SendParams{
		Destinations:  []Destination{{Address: externalAddress(t), Amount: 1_000}},
		Mixin:         3,
		Fee:           100,
		ChangeAddress: externalAddress(t),
	})
	require.ErrorIs(t, err, ErrUnknownAddress)
}

func TestSendRejectsFeeBelowMinimum(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	cfg := testConfig()
	cfg.MinimumFee = 50
	c := New(&fakeNode{}, tw.store, cfg)

	_, err := c.SendTransactionAdvanced(context.Background(), 10, SendParams{
		Destinations:  []Destination{{Address: externalAddress(t), Amount: 1_000}},
		Mixin:         3,
		Fee:           10,
		ChangeAddress: tw.address,
	})
	require.ErrorIs(t, err, ErrFeeTooSmall)
}

// TestMixInputsRingProperties checks the ring construction rules: the ring
// has exactly mixin+1 members, is strictly sorted by global index, and
// the real output sits at RealOutputIndex — even when the node returns
// our own real output among the decoys.
func TestMixInputsRingProperties(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	fn := &fakeNode{duplicateReal: 7}
	c := New(fn, tw.store, testConfig())

	inputs, err := tw.store.SelectInputsForAmount(10_000, 10)
	require.NoError(t, err)

	const mixin = 3
	obscured, err := c.mixInputs(context.Background(), inputs, mixin)
	require.NoError(t, err)
	require.Len(t, obscured, 1)

	ring := obscured[0].Ring
	require.Len(t, ring, mixin+1)
	for i := 1; i < len(ring); i++ {
		require.Less(t, ring[i-1].GlobalOutputIndex, ring[i].GlobalOutputIndex)
	}
	real := ring[obscured[0].RealOutputIndex]
	require.Equal(t, uint64(7), real.GlobalOutputIndex)
	require.Equal(t, inputs[0].Input.Key, real.Key)
}

func TestMixInputsNotEnoughDecoys(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	fn := &fakeNode{decoysPerCall: 2}
	c := New(fn, tw.store, testConfig())

	inputs, err := tw.store.SelectInputsForAmount(10_000, 10)
	require.NoError(t, err)

	_, err = c.mixInputs(context.Background(), inputs, 5)
	require.ErrorIs(t, err, ErrNotEnoughFakeOutputs)
}

// memoryDecoyCache is an in-memory DecoyCache for exercising the
// node-outage fallback.
type memoryDecoyCache struct {
	outputs map[uint64][]node.RandomOutput
}

func (m *memoryDecoyCache) StoreDecoyOutputs(amount uint64, outputs []node.RandomOutput) error {
	if m.outputs == nil {
		m.outputs = map[uint64][]node.RandomOutput{}
	}
	m.outputs[amount] = outputs
	return nil
}

func (m *memoryDecoyCache) LoadDecoyOutputs(amount uint64) ([]node.RandomOutput, bool, error) {
	outs, ok := m.outputs[amount]
	return outs, ok, nil
}

// offlineDecoyNode fails every decoy request, simulating a node outage
// between two sends.
type offlineDecoyNode struct {
	fakeNode
}

func (o *offlineDecoyNode) GetRandomOutputs(context.Context, []uint64, int) (map[uint64][]node.RandomOutput, error) {
	return nil, node.ErrOffline
}

func TestMixInputsFallsBackToDecoyCache(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)

	cache := &memoryDecoyCache{}
	cfg := testConfig()
	cfg.DecoyCache = cache

	// First send path populates the cache through a healthy node.
	healthy := New(&fakeNode{}, tw.store, cfg)
	inputs, err := tw.store.SelectInputsForAmount(10_000, 10)
	require.NoError(t, err)
	_, err = healthy.mixInputs(context.Background(), inputs, 3)
	require.NoError(t, err)
	require.NotEmpty(t, cache.outputs[10_000])

	// Second mixing round succeeds from the cache despite the outage.
	offline := New(&offlineDecoyNode{}, tw.store, cfg)
	obscured, err := offline.mixInputs(context.Background(), inputs, 3)
	require.NoError(t, err)
	require.Len(t, obscured[0].Ring, 4)

	// Without a cache the outage is surfaced as-is.
	cfgNoCache := testConfig()
	uncached := New(&offlineDecoyNode{}, tw.store, cfgNoCache)
	_, err = uncached.mixInputs(context.Background(), inputs, 3)
	require.ErrorIs(t, err, node.ErrOffline)
}

// TestRelativeOffsetsRoundTrip checks the offset encoding both ways.
func TestRelativeOffsetsRoundTrip(t *testing.T) {
	absolute := []uint64{5, 10, 20, 21, 22}
	relative := RelativeOffsets(absolute)
	require.Equal(t, []uint64{5, 5, 10, 1, 1}, relative)
	require.Equal(t, absolute, AbsoluteOffsets(relative))
}

func TestSendRelayRejectedLeavesStateUnchanged(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	fn := &fakeNode{submitErr: node.ErrRejected}
	c := New(fn, tw.store, testConfig())

	_, err := c.SendTransactionBasic(context.Background(), 10, externalAddress(t), 9_000, "")
	require.ErrorIs(t, err, node.ErrRejected)

	// Inputs are only locked after a successful relay, so a rejection
	// must leave everything spendable.
	w, getErr := tw.store.Get(tw.address)
	require.NoError(t, getErr)
	require.Len(t, w.Unspent, 1)
	require.Empty(t, w.Locked)
	require.Empty(t, tw.store.UnconfirmedTransactions())
}

func TestOversizedSendReturnsTooManyInputs(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	cfg := testConfig()
	cfg.MaxTransactionSize = func(uint64) int { return 16 }
	c := New(&fakeNode{}, tw.store, cfg)

	_, err := c.SendTransactionBasic(context.Background(), 10, externalAddress(t), 9_000, "")
	require.ErrorIs(t, err, ErrTooManyInputsToFitInBlock)

	w, getErr := tw.store.Get(tw.address)
	require.NoError(t, getErr)
	require.Len(t, w.Unspent, 1)
	require.Empty(t, tw.store.UnconfirmedTransactions())
}

func TestFusionFullyOptimizedWhenNoDust(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	c := New(&fakeNode{}, tw.store, testConfig())

	_, err := c.SendFusionTransactionBasic(context.Background(), 10)
	require.ErrorIs(t, err, ErrFullyOptimized)
}

// TestFusionConsolidatesBucket drives the happy fusion path: eight
// same-denomination inputs collapse into a single self-destined output,
// with zero fee and all eight inputs locked afterwards.
func TestFusionConsolidatesBucket(t *testing.T) {
	tw := newTestWallet(t)
	for i := 0; i < 8; i++ {
		tw.addInput(t, 1_000, uint64(10+i))
	}
	fn := &fakeNode{}
	c := New(fn, tw.store, testConfig())

	result, err := c.SendFusionTransactionAdvanced(context.Background(), 10, FusionParams{
		Mixin:       0,
		Destination: tw.address,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(0), result.Fee)
	require.Len(t, fn.submitted, 1)

	w, getErr := tw.store.Get(tw.address)
	require.NoError(t, getErr)
	require.Empty(t, w.Unspent)
	require.Len(t, w.Locked, 8)

	// The consolidated value returns to us as an unconfirmed incoming
	// entry, so the balance never dips while the fusion confirms.
	var pending uint64
	for _, u := range w.UnconfirmedIncoming {
		pending += u.Amount
	}
	require.Equal(t, uint64(8_000), pending)
}

// TestFeeConservation checks fee conservation at the API
// boundary: the inputs consumed minus the outputs produced equals the
// fee the send declared.
func TestFeeConservation(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	fn := &fakeNode{}
	c := New(fn, tw.store, testConfig())

	result, err := c.SendTransactionBasic(context.Background(), 10, externalAddress(t), 9_900, "")
	require.NoError(t, err)

	w, getErr := tw.store.Get(tw.address)
	require.NoError(t, getErr)
	var consumed uint64
	for _, in := range w.Locked {
		consumed += in.Amount
	}

	unconfirmed := tw.store.UnconfirmedTransactions()
	require.Len(t, unconfirmed, 1)
	var sentOut uint64
	for _, amount := range unconfirmed[0].TransfersOut {
		sentOut += amount
	}
	require.Equal(t, consumed, sentOut)
	require.Equal(t, uint64(100), result.Fee)
	// consumed = destination (9900) + fee (100) here: no change output,
	// since the single input covers the total exactly.
	require.Equal(t, uint64(10_000), consumed)
}

func TestMinimumFeeCombinesNodeFee(t *testing.T) {
	tw := newTestWallet(t)
	cfg := testConfig()
	cfg.MinimumFee = 40
	cfg.FeePerByte = 2
	c := New(&fakeNode{nodeFeeAmount: 5, nodeFeeAddress: externalAddress(t)}, tw.store, cfg)

	require.Equal(t, uint64(40+2*100+5), c.MinimumFee(context.Background(), 100))
}

func TestSendAppendsNodeFeeDestination(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	feeAddr := externalAddress(t)
	fn := &fakeNode{nodeFeeAmount: 50, nodeFeeAddress: feeAddr}
	c := New(fn, tw.store, testConfig())

	// 9850 + 100 fee + 50 node fee = 10000 exactly.
	result, err := c.SendTransactionBasic(context.Background(), 10, externalAddress(t), 9_850, "")
	require.NoError(t, err)
	require.Equal(t, uint64(100), result.Fee)
	require.Len(t, fn.submitted, 1)
}

func TestSplitDestinationsPrettyAndConserving(t *testing.T) {
	dest := []Destination{{Address: "a", Amount: 1_234_567}}
	planned := splitDestinations(dest)

	var sum uint64
	for _, p := range planned {
		require.True(t, walletaddr.IsPrettyDenomination(p.amount))
		sum += p.amount
	}
	require.Equal(t, uint64(1_234_567), sum)
	require.Len(t, planned, 7)
}

func TestSendIntegratedDestinationCarriesPaymentID(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	fn := &fakeNode{}
	c := New(fn, tw.store, testConfig())

	var pid [32]byte
	pid[0] = 0xaa
	integrated, err := testNetwork.MakeIntegrated(externalAddress(t), pid)
	require.NoError(t, err)

	_, err = c.SendTransactionBasic(context.Background(), 10, integrated, 9_900, "")
	require.NoError(t, err)

	unconfirmed := tw.store.UnconfirmedTransactions()
	require.Len(t, unconfirmed, 1)
	require.NotNil(t, unconfirmed[0].PaymentID)
	require.Equal(t, pid, *unconfirmed[0].PaymentID)
}

func TestSendIntegratedDestinationConflictingPaymentID(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	c := New(&fakeNode{}, tw.store, testConfig())

	var pid [32]byte
	pid[0] = 0xaa
	integrated, err := testNetwork.MakeIntegrated(externalAddress(t), pid)
	require.NoError(t, err)

	conflicting := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	_, err = c.SendTransactionBasic(context.Background(), 10, integrated, 9_900, conflicting)
	require.ErrorIs(t, err, ErrPaymentIDConflict)
}

func TestSendOverflowingDestinationsRejected(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	c := New(&fakeNode{}, tw.store, testConfig())

	var maxUint64 uint64 = ^uint64(0)
	_, err := c.SendTransactionAdvanced(context.Background(), 10, SendParams{
		Destinations: []Destination{
			{Address: externalAddress(t), Amount: maxUint64},
			{Address: externalAddress(t), Amount: 2},
		},
		Mixin:         3,
		Fee:           100,
		ChangeAddress: tw.address,
	})
	require.ErrorIs(t, err, ErrAmountOverflow)
}

func TestMixinOutOfRangeRejected(t *testing.T) {
	tw := newTestWallet(t)
	tw.addInput(t, 10_000, 7)
	cfg := testConfig()
	cfg.MixinBounds = func(uint64) (uint64, uint64) { return 1, 3 }
	c := New(&fakeNode{}, tw.store, cfg)

	_, err := c.SendTransactionAdvanced(context.Background(), 10, SendParams{
		Destinations:  []Destination{{Address: externalAddress(t), Amount: 1_000}},
		Mixin:         7,
		Fee:           100,
		ChangeAddress: tw.address,
	})
	require.ErrorIs(t, err, ErrMixinOutOfRange)
}
