// Package subwallets implements the SubWallets container: the
// aggregate of every SubWallet owned by one WalletBackend,
// owner-by-key-image lookup, input selection for spending,
// and the confirmed/unconfirmed transaction log. The store-wide lock is
// a github.com/NebulousLabs/demotemutex so that a writer elsewhere in
// the process can be starved out no more than a reader can under
// concurrent RPC load.
package subwallets

import (
	"errors"
	"fmt"
	"sort"

	"github.com/NebulousLabs/demotemutex"
	"github.com/NebulousLabs/fastrand"
	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/kryptokrona/kryptokrona-sub002/subwallet"
)

var (
	// ErrNotEnoughBalance is returned by SelectInputsForAmount when the
	// sum of all spendable, unlocked inputs across every subwallet cannot
	// cover the requested amount.
	ErrNotEnoughBalance = errors.New("subwallets: not enough unlocked balance")

	// ErrAddressNotFound is returned when an operation names an address
	// that isn't tracked by this store.
	ErrAddressNotFound = errors.New("subwallets: address not tracked")

	// ErrAddressAlreadyExists is returned by Add when the address is
	// already present.
	ErrAddressAlreadyExists = errors.New("subwallets: address already tracked")

	// ErrWouldRemovePrimary is returned by Delete for the wallet's single
	// non-removable primary address.
	ErrWouldRemovePrimary = errors.New("subwallets: cannot delete the primary address")
)

// TxPrivateKeys records the one-time secret keys a transaction's
// destinations were derived with, so the caller can later prove payment
// without re-deriving them.
type TxPrivateKeys map[crypto.Hash]crypto.SecretKey

// ConfirmedTransaction is a completed on-chain transaction as recorded in
// this wallet's own transaction log, independent of any
// single subwallet's bucket state.
type ConfirmedTransaction struct {
	Hash        crypto.Hash
	BlockHeight uint64
	Timestamp   uint64
	Fee         uint64
	PaymentID   *[32]byte
	IsCoinbase  bool

	// TransfersIn/TransfersOut are keyed by the owning subwallet's
	// address, recording how this transaction moved that subwallet's
	// balance; a fusion transaction has empty TransfersOut.
	TransfersIn  map[string]uint64
	TransfersOut map[string]uint64
}

// UnconfirmedTransaction is a transaction this wallet built and relayed
// but has not yet seen confirmed in a scanned block.
type UnconfirmedTransaction struct {
	Hash      crypto.Hash
	Fee       uint64
	PaymentID *[32]byte
	Timestamp uint64

	TransfersOut map[string]uint64

	// LockedKeyImages are the inputs this transaction consumed, so a
	// later cancellation can be rolled back by key image.
	LockedKeyImages []crypto.KeyImage
}

// SubWallets is the full address set a WalletBackend manages.
type SubWallets struct {
	mu demotemutex.DemoteMutex

	wallets map[string]*subwallet.SubWallet // keyed by address
	primary string

	viewSecretKey crypto.SecretKey

	confirmed   map[crypto.Hash]ConfirmedTransaction
	unconfirmed map[crypto.Hash]UnconfirmedTransaction
	order       []crypto.Hash // confirmed transaction hashes, insertion order

	// txSecretKeys is the mapping from transaction hash to the one-time
	// transaction secret key this wallet generated when building it
	//, retained for later
	// proof-of-payment generation.
	txSecretKeys TxPrivateKeys

	// viewWallet marks a container holding only the view key: no tracked
	// SubWallet may hold a private spend key and every stored input's key
	// image is the sentinel zero value.
	viewWallet bool
}

// SetViewWallet marks this container as view-only. It is set once, at
// construction time from the persisted
// or freshly-created wallet's kind, never toggled afterward.
func (s *SubWallets) SetViewWallet(isViewWallet bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewWallet = isViewWallet
}

// IsViewWallet reports whether this container holds only a view key.
func (s *SubWallets) IsViewWallet() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewWallet
}

// New creates an empty store bound to the wallet's shared private view
// key.
func New(viewSecretKey crypto.SecretKey) *SubWallets {
	return &SubWallets{
		wallets:       make(map[string]*subwallet.SubWallet),
		confirmed:     make(map[crypto.Hash]ConfirmedTransaction),
		unconfirmed:   make(map[crypto.Hash]UnconfirmedTransaction),
		txSecretKeys:  make(TxPrivateKeys),
		viewSecretKey: viewSecretKey,
	}
}

// StoreTransactionSecretKey records the ephemeral transaction secret key
// generated while building tx, so a later proof-of-payment request can
// find it without re-deriving it.
func (s *SubWallets) StoreTransactionSecretKey(hash crypto.Hash, secret crypto.SecretKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txSecretKeys[hash] = secret
}

// TransactionSecretKey looks up the ephemeral transaction secret key
// generated for a transaction this wallet built.
func (s *SubWallets) TransactionSecretKey(hash crypto.Hash) (crypto.SecretKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.txSecretKeys[hash]
	return k, ok
}

// ViewSecretKey returns the wallet-wide private view key every
// subwallet shares.
func (s *SubWallets) ViewSecretKey() crypto.SecretKey {
	return s.viewSecretKey
}

// Add tracks a new subwallet. The first subwallet added to an empty
// store becomes the primary address.
func (s *SubWallets) Add(w *subwallet.SubWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wallets[w.Address]; exists {
		return fmt.Errorf("%w: %s", ErrAddressAlreadyExists, w.Address)
	}
	if len(s.wallets) == 0 {
		w.IsPrimary = true
		s.primary = w.Address
	}
	s.wallets[w.Address] = w
	return nil
}

// AddRestored re-inserts a subwallet whose buckets are already populated,
// as when loading a persisted wallet file. Unlike Add, it
// never overrides w.IsPrimary — the persisted flag is authoritative,
// since the first subwallet loaded off disk need not be the one that was
// originally primary.
func (s *SubWallets) AddRestored(w *subwallet.SubWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[w.Address]; exists {
		return fmt.Errorf("%w: %s", ErrAddressAlreadyExists, w.Address)
	}
	s.wallets[w.Address] = w
	if w.IsPrimary {
		s.primary = w.Address
	}
	return nil
}

// RestoreTransactions repopulates the confirmed/unconfirmed transaction
// logs and the transaction-secret-key map from persisted state,
// preserving the confirmed log's recorded order.
func (s *SubWallets) RestoreTransactions(confirmed []ConfirmedTransaction, unconfirmed []UnconfirmedTransaction, txSecrets TxPrivateKeys) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = make([]crypto.Hash, 0, len(confirmed))
	for _, tx := range confirmed {
		s.confirmed[tx.Hash] = tx
		s.order = append(s.order, tx.Hash)
	}
	for _, tx := range unconfirmed {
		s.unconfirmed[tx.Hash] = tx
	}
	for hash, secret := range txSecrets {
		s.txSecretKeys[hash] = secret
	}
}

// Delete removes a tracked address. The primary address can never be
// removed.
func (s *SubWallets) Delete(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if address == s.primary {
		return ErrWouldRemovePrimary
	}
	if _, exists := s.wallets[address]; !exists {
		return fmt.Errorf("%w: %s", ErrAddressNotFound, address)
	}
	delete(s.wallets, address)
	return nil
}

// Addresses returns every tracked address.
func (s *SubWallets) Addresses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.wallets))
	for addr := range s.wallets {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// PrimaryAddress returns the wallet's non-removable primary address.
func (s *SubWallets) PrimaryAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary
}

// Get returns the SubWallet for address, under the store's lock; the
// caller is expected to confine the pointer to the current operation;
// all cross-goroutine access goes through this package's own methods.
func (s *SubWallets) Get(address string) (*subwallet.SubWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, address)
	}
	return w, nil
}

// FindBySpendKey returns the address and subwallet whose public spend
// key matches candidate, for the synchronizer's output-scanning loop.
func (s *SubWallets) FindBySpendKey(candidate crypto.PublicKey) (address string, w *subwallet.SubWallet, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for addr, sw := range s.wallets {
		if sw.PublicSpendKey == candidate {
			return addr, sw, true
		}
	}
	return "", nil, false
}

// FindOwner returns the subwallet that owns keyImage, if any tracked
// subwallet's derived key image matches.
func (s *SubWallets) FindOwner(keyImage crypto.KeyImage) (*subwallet.SubWallet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.wallets {
		for _, in := range w.Unspent {
			if in.KeyImage == keyImage {
				return w, true
			}
		}
		for _, in := range w.Locked {
			if in.KeyImage == keyImage {
				return w, true
			}
		}
	}
	return nil, false
}

// StoreTransactionInput records a freshly scanned output against the
// subwallet at address, under the store's write lock.
func (s *SubWallets) StoreTransactionInput(address string, input subwallet.TransactionInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAddressNotFound, address)
	}
	w.StoreTransactionInput(input)
	return nil
}

// MarkInputAsSpent locates the subwallet owning keyImage and moves its
// input into Spent, under the store's write lock.
func (s *SubWallets) MarkInputAsSpent(keyImage crypto.KeyImage, spendHeight uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		for _, in := range w.Unspent {
			if in.KeyImage == keyImage {
				return w.MarkInputAsSpent(keyImage, spendHeight)
			}
		}
		for _, in := range w.Locked {
			if in.KeyImage == keyImage {
				return w.MarkInputAsSpent(keyImage, spendHeight)
			}
		}
	}
	return fmt.Errorf("%w: key image %s not owned by any tracked subwallet", ErrAddressNotFound, keyImage)
}

// GetBalance sums the unlocked and locked balance across every tracked
// subwallet, or just the named ones when addresses is non-empty.
func (s *SubWallets) GetBalance(currentHeight uint64, addresses ...string) (unlocked uint64, locked uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wallets := s.selectLocked(addresses)
	for _, w := range wallets {
		u, l := w.GetBalance(currentHeight)
		unlocked += u
		locked += l
	}
	return unlocked, locked
}

func (s *SubWallets) selectLocked(addresses []string) []*subwallet.SubWallet {
	if len(addresses) == 0 {
		out := make([]*subwallet.SubWallet, 0, len(s.wallets))
		for _, w := range s.wallets {
			out = append(out, w)
		}
		return out
	}
	out := make([]*subwallet.SubWallet, 0, len(addresses))
	for _, addr := range addresses {
		if w, ok := s.wallets[addr]; ok {
			out = append(out, w)
		}
	}
	return out
}

// MinSyncStart returns the lowest SyncStartHeight/SyncStartTimestamp
// across every tracked subwallet, which is where WalletSynchronizer must
// resume scanning from so that no subwallet's history is missed.
func (s *SubWallets) MinSyncStart() (height uint64, timestamp uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := true
	for _, w := range s.wallets {
		if first || w.SyncStartHeight < height {
			height = w.SyncStartHeight
		}
		if first || w.SyncStartTimestamp < timestamp {
			timestamp = w.SyncStartTimestamp
		}
		first = false
	}
	return height, timestamp
}

// SelectInputsForAmount picks the inputs to fund a spend: shuffle the
// unlocked spendable inputs across every tracked subwallet with
// fastrand (avoiding the address-order bias a deterministic scan would
// leak on-chain) and greedily accumulate
// until the target is met or exceeded. Returns ErrNotEnoughBalance,
// wrapped, if the full set of spendable inputs can't reach amount.
func (s *SubWallets) SelectInputsForAmount(amount uint64, height uint64, addresses ...string) ([]subwallet.SpendableInput, error) {
	s.mu.RLock()
	wallets := s.selectLocked(addresses)
	var all []subwallet.SpendableInput
	for _, w := range wallets {
		all = append(all, w.GetSpendableInputs(height)...)
	}
	s.mu.RUnlock()

	perm := fastrand.Perm(len(all))
	shuffled := make([]subwallet.SpendableInput, len(all))
	for i, j := range perm {
		shuffled[j] = all[i]
	}
	all = shuffled

	var selected []subwallet.SpendableInput
	var sum uint64
	for _, in := range all {
		if sum >= amount {
			break
		}
		selected = append(selected, in)
		sum += in.Input.Amount
	}
	if sum < amount {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughBalance, sum, amount)
	}
	return selected, nil
}

// SelectFusionInputs picks the maximal set of inputs belonging to a single
// denomination bucket (optimizing the dustiest, most-fragmented
// denomination first) up to maxFusionInputs, subject to the input:output
// ratio invariant the transaction constructor must later satisfy.
// Returns nil if no bucket has enough inputs to form a useful fusion
// (fewer than minInputsPerBucket).
func (s *SubWallets) SelectFusionInputs(height uint64, maxFusionInputs int, minInputsPerBucket int, addresses ...string) []subwallet.SpendableInput {
	s.mu.RLock()
	wallets := s.selectLocked(addresses)
	buckets := make(map[uint64][]subwallet.SpendableInput)
	for _, w := range wallets {
		for _, in := range w.GetSpendableInputs(height) {
			buckets[in.Input.Amount] = append(buckets[in.Input.Amount], in)
		}
	}
	s.mu.RUnlock()

	var bestAmount uint64
	bestCount := -1
	for amount, ins := range buckets {
		if len(ins) < minInputsPerBucket {
			continue
		}
		if len(ins) > bestCount {
			bestCount = len(ins)
			bestAmount = amount
		}
	}
	if bestCount < 0 {
		return nil
	}

	picked := buckets[bestAmount]
	if len(picked) > maxFusionInputs {
		picked = picked[:maxFusionInputs]
	}
	return picked
}

// LockInputs moves every selected input, by key image, from Unspent to
// Locked in the subwallet that owns it. It records no transaction in the
// unconfirmed log.
func (s *SubWallets) LockInputs(selected []subwallet.SpendableInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range selected {
		w, ok := s.wallets[addressOwning(s.wallets, in)]
		if !ok {
			return fmt.Errorf("%w: owner of key image %s vanished mid-lock", ErrAddressNotFound, in.Input.KeyImage)
		}
		if err := w.MarkInputAsLocked(in.Input.KeyImage); err != nil {
			return err
		}
	}
	return nil
}

func addressOwning(wallets map[string]*subwallet.SubWallet, in subwallet.SpendableInput) string {
	for addr, w := range wallets {
		if w.PublicSpendKey == in.PublicSpendKey {
			return addr
		}
	}
	return ""
}

// StoreUnconfirmedTransaction records a just-relayed transaction in the
// unconfirmed log, so WalletBackend.UnconfirmedTransactions can see it
// before the next block confirms it. It leaves every subwallet's buckets,
// and so GetBalance, unchanged.
func (s *SubWallets) StoreUnconfirmedTransaction(tx UnconfirmedTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unconfirmed[tx.Hash] = tx
}

// CommitSentTransaction performs a relayed transaction's bookkeeping as
// a single atomic operation: every selected input is
// moved from unspent to locked, the outgoing transaction is recorded in
// the unconfirmed log, and an unconfirmedIncoming entry is stored for
// every self-destined output (typically just the change) so that
// GetBalance reflects the spend before the block carrying it is scanned.
// Doing all three under one lock acquisition avoids a window where a
// concurrent balance query could see locked inputs without yet seeing
// the offsetting unconfirmedIncoming change.
func (s *SubWallets) CommitSentTransaction(selected []subwallet.SpendableInput, tx UnconfirmedTransaction, selfOutputs map[string][]subwallet.UnconfirmedInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range selected {
		w, ok := s.wallets[addressOwning(s.wallets, in)]
		if !ok {
			return fmt.Errorf("%w: owner of key image %s vanished mid-commit", ErrAddressNotFound, in.Input.KeyImage)
		}
		if err := w.MarkInputAsLocked(in.Input.KeyImage); err != nil {
			return err
		}
	}

	s.unconfirmed[tx.Hash] = tx

	for addr, entries := range selfOutputs {
		w, ok := s.wallets[addr]
		if !ok {
			return fmt.Errorf("%w: self-destined address %s vanished mid-commit", ErrAddressNotFound, addr)
		}
		for _, entry := range entries {
			w.StoreUnconfirmedIncoming(entry)
		}
	}
	return nil
}

// CancelUnconfirmedTransaction rolls back a relay failure or abandoned
// send: unlocks every input the transaction had locked and removes it
// from the unconfirmed log.
func (s *SubWallets) CancelUnconfirmedTransaction(hash crypto.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.unconfirmed[hash]
	if !ok {
		return
	}
	delete(s.unconfirmed, hash)

	cancelled := map[crypto.Hash]struct{}{hash: {}}
	lockedImages := make(map[crypto.KeyImage]struct{}, len(tx.LockedKeyImages))
	for _, ki := range tx.LockedKeyImages {
		lockedImages[ki] = struct{}{}
	}
	for _, w := range s.wallets {
		w.RemoveCancelledTransactions(cancelled)
		var keptLocked []subwallet.TransactionInput
		for _, in := range w.Locked {
			if _, ok := lockedImages[in.KeyImage]; ok {
				in.SpendHeight = 0
				w.Unspent = append(w.Unspent, in)
				continue
			}
			keptLocked = append(keptLocked, in)
		}
		w.Locked = keptLocked
	}
}

// ConfirmTransaction promotes an unconfirmed transaction into the
// confirmed log once its block has been scanned, or inserts a freshly
// observed confirmed transaction that this wallet never relayed itself
// (an incoming payment).
func (s *SubWallets) ConfirmTransaction(tx ConfirmedTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.unconfirmed, tx.Hash)
	if _, exists := s.confirmed[tx.Hash]; !exists {
		s.order = append(s.order, tx.Hash)
	}
	s.confirmed[tx.Hash] = tx
}

// RemoveForkedTransactions drops every confirmed transaction at or above
// forkHeight from the log and unwinds each tracked subwallet's inputs to
// match.
func (s *SubWallets) RemoveForkedTransactions(forkHeight uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []crypto.Hash
	for _, h := range s.order {
		tx := s.confirmed[h]
		if tx.BlockHeight >= forkHeight {
			delete(s.confirmed, h)
			continue
		}
		kept = append(kept, h)
	}
	s.order = kept

	for _, w := range s.wallets {
		w.RemoveForkedInputs(forkHeight)
	}
}

// ConfirmedTransactions returns every confirmed transaction in the order
// it was recorded.
func (s *SubWallets) ConfirmedTransactions() []ConfirmedTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ConfirmedTransaction, 0, len(s.order))
	for _, h := range s.order {
		out = append(out, s.confirmed[h])
	}
	return out
}

// UnconfirmedTransactions returns every transaction this wallet has
// relayed but not yet seen confirmed.
func (s *SubWallets) UnconfirmedTransactions() []UnconfirmedTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]UnconfirmedTransaction, 0, len(s.unconfirmed))
	for _, tx := range s.unconfirmed {
		out = append(out, tx)
	}
	return out
}

// Snapshot is the full on-disk shape of a SubWallets store, used by
// package persist to serialize and restore a saved wallet whole.
type Snapshot struct {
	ViewSecretKey crypto.SecretKey
	IsViewWallet  bool
	Primary       string
	Wallets       []*subwallet.SubWallet
	Confirmed     []ConfirmedTransaction
	Unconfirmed   []UnconfirmedTransaction
	TxSecretKeys  TxPrivateKeys
}

// Snapshot returns a deep-enough copy of this store's full state for
// persistence. Safe to call concurrently with any other operation.
func (s *SubWallets) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wallets := make([]*subwallet.SubWallet, 0, len(s.wallets))
	for _, addr := range sortedKeys(s.wallets) {
		w := *s.wallets[addr]
		wallets = append(wallets, &w)
	}

	confirmed := make([]ConfirmedTransaction, 0, len(s.order))
	for _, h := range s.order {
		confirmed = append(confirmed, s.confirmed[h])
	}

	unconfirmed := make([]UnconfirmedTransaction, 0, len(s.unconfirmed))
	for _, tx := range s.unconfirmed {
		unconfirmed = append(unconfirmed, tx)
	}

	txSecretKeys := make(TxPrivateKeys, len(s.txSecretKeys))
	for h, k := range s.txSecretKeys {
		txSecretKeys[h] = k
	}

	return Snapshot{
		ViewSecretKey: s.viewSecretKey,
		IsViewWallet:  s.viewWallet,
		Primary:       s.primary,
		Wallets:       wallets,
		Confirmed:     confirmed,
		Unconfirmed:   unconfirmed,
		TxSecretKeys:  txSecretKeys,
	}
}

// NewFromSnapshot rebuilds a SubWallets store from a Snapshot produced by
// an earlier call to Snapshot, restoring every tracked address, the
// transaction log, and the locked transaction-secret-key map exactly.
func NewFromSnapshot(snap Snapshot) *SubWallets {
	s := New(snap.ViewSecretKey)
	s.viewWallet = snap.IsViewWallet
	s.primary = snap.Primary

	for _, w := range snap.Wallets {
		wallet := *w
		// Snapshot wallets are unique by construction; AddRestored can
		// only fail on a duplicate address.
		_ = s.AddRestored(&wallet)
	}
	s.RestoreTransactions(snap.Confirmed, snap.Unconfirmed, snap.TxSecretKeys)

	return s
}

// sortedKeys returns a wallet map's addresses in a deterministic order,
// so Snapshot's output (and therefore the persisted wallet file) doesn't
// churn from run to run with no underlying state change.
func sortedKeys(m map[string]*subwallet.SubWallet) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
