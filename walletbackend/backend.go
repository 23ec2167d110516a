// Package walletbackend is the wallet facade: lifecycle
// (create/open/import/save), coordination of the background
// synchronizer, and the externally callable operations over the
// SubWallets store and the transaction constructor. A Backend is an
// owned handle created by a factory, never a process-wide singleton, so
// hosting several wallets in one process needs nothing more than
// several Backends.
package walletbackend

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/NebulousLabs/threadgroup"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/kryptokrona/kryptokrona-sub002/node"
	"github.com/kryptokrona/kryptokrona-sub002/persist"
	"github.com/kryptokrona/kryptokrona-sub002/subwallet"
	"github.com/kryptokrona/kryptokrona-sub002/subwallets"
	"github.com/kryptokrona/kryptokrona-sub002/subwallets/txindex"
	"github.com/kryptokrona/kryptokrona-sub002/syncstatus"
	"github.com/kryptokrona/kryptokrona-sub002/txconstructor"
	"github.com/kryptokrona/kryptokrona-sub002/walletaddr"
	"github.com/kryptokrona/kryptokrona-sub002/walletsynchronizer"
)

// Backend is one wallet container: its key state, its synchronizer, its
// transaction constructor, and the on-disk file they persist to.
type Backend struct {
	cfg     Config
	network walletaddr.Network

	node  node.Node
	store *subwallets.SubWallets
	ctor  *txconstructor.Constructor
	log   *persist.Logger

	path     string
	password string

	// index and cache are the derived, rebuildable disk artifacts.
	// Either may be nil if its file could not be opened; every use is
	// guarded, since neither is authoritative.
	index *txindex.Index
	cache *persist.CheckpointCache

	tg threadgroup.ThreadGroup

	// syncMu serializes Start/StopSync/Reset/Close, which swap out the
	// synchronizer handle (a stopped threadgroup cannot be restarted, so
	// Reset builds a fresh Synchronizer).
	syncMu             sync.Mutex
	sync               *walletsynchronizer.Synchronizer
	syncRunning        bool
	maintenanceRunning bool

	feeMu       sync.Mutex
	nodeFeeAmt  uint64
	nodeFeeAddr string

	// tipNotify, when set before Start, lets the synchronizer's
	// downloader wake as soon as the node announces a new tip instead of
	// sleeping out its at-the-tip interval.
	tipNotify <-chan struct{}
}

// newBackend wires the pieces every construction path shares. The
// caller has already populated store and decided the sync origin.
func newBackend(path, password string, n node.Node, cfg Config, store *subwallets.SubWallets, origin syncOrigin) *Backend {
	logger := persist.NewLogger(os.Stderr)
	logger.Startup()

	b := &Backend{
		cfg:      cfg,
		network:  walletaddr.Network{Prefix: cfg.NetworkPrefix},
		node:     n,
		store:    store,
		log:      logger,
		path:     path,
		password: password,
	}
	b.openDerivedState()

	ctorCfg := cfg.constructorConfig()
	if b.cache != nil {
		ctorCfg.DecoyCache = b.cache
	}
	b.ctor = txconstructor.New(n, store, ctorCfg)

	if origin.restored != nil {
		b.sync = walletsynchronizer.NewFromStatus(n, store, origin.restored, b.syncConfig())
	} else {
		b.sync = walletsynchronizer.New(n, store, origin.height, origin.timestamp, b.syncConfig())
	}

	b.reconcileCheckpointCache()
	return b
}

// reconcileCheckpointCache compares the cached checkpoint hashes with
// the authoritative status loaded from the wallet file; any
// disagreement (a fork recorded after the cache was last written, or a
// cache belonging to a different wallet file) causes the cache to be
// rewritten from the status. The cache is a warm-start hint, never
// authority.
func (b *Backend) reconcileCheckpointCache() {
	if b.cache == nil {
		return
	}
	status := b.sync.Status()

	pairs, err := b.cache.LoadCheckpoints()
	stale := err != nil
	for _, p := range pairs {
		if hash, ok := status.HaveBlockAtHeight(p.Height); ok && hash != p.Hash {
			stale = true
			break
		}
	}
	if stale {
		if err := b.cache.StoreCheckpoints(status.CheckpointPairs()); err != nil {
			b.log.Printf("walletbackend: rebuilding checkpoint cache: %v", err)
		}
	}
}

// syncOrigin carries either a restored persisted status or a fresh
// (height, timestamp) scan origin into newBackend.
type syncOrigin struct {
	restored  *syncstatus.Status
	height    uint64
	timestamp uint64
}

func (b *Backend) syncConfig() walletsynchronizer.Config {
	return walletsynchronizer.Config{
		QueueDepth:       b.cfg.SyncQueueDepth,
		TipNotifications: b.tipNotify,
		Logger:           b.log,
	}
}

// UseTipNotifications supplies a wake channel for the downloader,
// typically httpnode.TipNotifier.Notifications(). Must be called while
// the synchronizer is stopped; the call is ignored otherwise, since a
// running downloader already selected its channels.
func (b *Backend) UseTipNotifications(ch <-chan struct{}) {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()
	if b.syncRunning {
		b.log.Printf("walletbackend: tip notifications ignored while sync is running")
		return
	}
	b.tipNotify = ch
	status := b.sync.Status()
	b.sync = walletsynchronizer.NewFromStatus(b.node, b.store, &status, b.syncConfig())
}

// openDerivedState opens the transaction index and checkpoint cache
// sitting beside the wallet file. Both are best-effort: a failure is
// logged and the Backend runs without the affected artifact.
func (b *Backend) openDerivedState() {
	if b.path == "" {
		return
	}
	idx, err := txindex.Open(b.path + ".txindex")
	if err != nil {
		b.log.Printf("walletbackend: transaction index unavailable: %v", err)
	} else {
		b.index = idx
	}
	cache, err := persist.OpenCheckpointCache(b.path + ".cache")
	if err != nil {
		b.log.Printf("walletbackend: checkpoint cache unavailable: %v", err)
	} else {
		b.cache = cache
	}
}

// SetLogOutput redirects the backend's log stream, primarily so tests
// and embedding applications can capture or silence it.
func (b *Backend) SetLogOutput(w io.Writer) {
	b.log = persist.NewLogger(w)
}

// Create generates a brand new wallet: a fresh view keypair shared by
// the container and a fresh spend keypair for the primary address, then
// writes the encrypted wallet file before returning. Scanning starts
// from cfg.RescanHeight/RescanTimestamp.
func Create(path, password string, n node.Node, cfg Config) (*Backend, error) {
	viewSecret, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("walletbackend: generating view keypair: %w", err)
	}
	spendSecret, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("walletbackend: generating spend keypair: %w", err)
	}
	return CreateFromKeys(path, password, n, cfg, spendSecret, viewSecret)
}

// CreateFromKeys imports a wallet from its two private keys. The
// primary address is derived from the spend key and the shared view
// key; scanning starts from cfg.RescanHeight/RescanTimestamp so a
// restored wallet re-reads its full history.
func CreateFromKeys(path, password string, n node.Node, cfg Config, privateSpendKey, privateViewKey crypto.SecretKey) (*Backend, error) {
	spendPub, err := privateSpendKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("walletbackend: deriving public spend key: %w", err)
	}

	store := subwallets.New(privateViewKey)
	address, err := addressFor(walletaddr.Network{Prefix: cfg.NetworkPrefix}, spendPub, privateViewKey)
	if err != nil {
		return nil, err
	}
	w := subwallet.New(spendPub, privateSpendKey, address, cfg.RescanHeight, cfg.RescanTimestamp, true)
	if err := store.Add(w); err != nil {
		return nil, err
	}

	startHeight, startTimestamp := store.MinSyncStart()
	b := newBackend(path, password, n, cfg, store, syncOrigin{height: startHeight, timestamp: startTimestamp})
	if err := b.Save(); err != nil {
		return nil, err
	}
	return b, nil
}

// CreateViewWallet imports a view-only wallet from the shared private
// view key and the primary address's public spend key: incoming
// outputs are tracked, spends can never be signed.
func CreateViewWallet(path, password string, n node.Node, cfg Config, privateViewKey crypto.SecretKey, publicSpendKey crypto.PublicKey) (*Backend, error) {
	store := subwallets.New(privateViewKey)
	store.SetViewWallet(true)

	address, err := addressFor(walletaddr.Network{Prefix: cfg.NetworkPrefix}, publicSpendKey, privateViewKey)
	if err != nil {
		return nil, err
	}
	w := subwallet.NewViewOnly(publicSpendKey, address, cfg.RescanHeight, cfg.RescanTimestamp)
	if err := store.Add(w); err != nil {
		return nil, err
	}

	startHeight, startTimestamp := store.MinSyncStart()
	b := newBackend(path, password, n, cfg, store, syncOrigin{height: startHeight, timestamp: startTimestamp})
	if err := b.Save(); err != nil {
		return nil, err
	}
	return b, nil
}

// Open loads an existing wallet file, restoring the full SubWallets
// state and the synchronizer's checkpoints so scanning resumes exactly
// where the last session committed.
func Open(path, password string, n node.Node, cfg Config) (*Backend, error) {
	wf, err := persist.Load(path, password)
	if err != nil {
		return nil, err
	}

	store := subwallets.NewFromSnapshot(wf.SubWallets)
	status := wf.WalletSynchronizer
	b := newBackend(path, password, n, cfg, store, syncOrigin{restored: &status})
	return b, nil
}

// Save snapshots the store and the scanner's committed status and
// writes the encrypted wallet file atomically, then
// refreshes the derived disk artifacts from the just-saved state.
func (b *Backend) Save() error {
	b.syncMu.Lock()
	status := b.sync.Status()
	b.syncMu.Unlock()

	wf := persist.WalletFile{
		SubWallets:         b.store.Snapshot(),
		WalletSynchronizer: status,
	}
	if err := persist.Save(b.path, b.password, wf); err != nil {
		return err
	}

	if b.cache != nil {
		if err := b.cache.StoreCheckpoints(status.CheckpointPairs()); err != nil {
			b.log.Printf("walletbackend: refreshing checkpoint cache: %v", err)
		}
	}
	b.refreshTransactionIndex()
	return nil
}

// refreshTransactionIndex re-derives the transaction index from the
// confirmed log. The log is authoritative and the index rebuildable, so
// a failed clear or Put is only logged.
func (b *Backend) refreshTransactionIndex() {
	if b.index == nil {
		return
	}
	// Clearing first drops entries for transactions a fork has removed
	// from the log since the last refresh.
	if err := b.index.DeleteFromHeight(0); err != nil {
		b.log.Printf("walletbackend: clearing transaction index: %v", err)
	}
	for _, tx := range b.store.ConfirmedTransactions() {
		if err := b.index.Put(tx.Hash, tx.BlockHeight, tx.Timestamp, tx.Fee, tx.PaymentID, tx.IsCoinbase); err != nil {
			b.log.Printf("walletbackend: indexing transaction %s: %v", tx.Hash, err)
		}
	}
}

// Start launches the synchronizer's downloader/scanner pipeline and the
// backend's own background maintenance (node-fee refresh, stuck-sync
// watchdog). Idempotent while running.
func (b *Backend) Start(ctx context.Context) error {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()
	if b.syncRunning {
		return nil
	}
	b.sync.Start(ctx)
	b.syncRunning = true

	if !b.maintenanceRunning {
		if err := b.tg.Add(); err != nil {
			return err
		}
		b.maintenanceRunning = true
		go b.runMaintenance(ctx)
	}
	return nil
}

// StopSync halts the downloader/scanner pipeline, joining both
// goroutines before returning. The wallet state stays
// loaded; Start may be called again after a Reset.
func (b *Backend) StopSync() error {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()
	return b.stopSyncLocked()
}

func (b *Backend) stopSyncLocked() error {
	if !b.syncRunning {
		return nil
	}
	b.syncRunning = false
	err := b.sync.Stop()

	// A stopped synchronizer's threadgroup cannot be restarted; rebuild
	// the handle at its committed status so a later Start resumes from
	// exactly where this one left off.
	status := b.sync.Status()
	b.sync = walletsynchronizer.NewFromStatus(b.node, b.store, &status, b.syncConfig())
	return err
}

// Reset rewinds the wallet to scan again from scanHeight/scanTimestamp.
// The scanner is paused for the duration: the
// running synchronizer is stopped and joined, the store's inputs and
// transactions at or above scanHeight are unwound, and a fresh
// synchronizer is built at the new origin. If the synchronizer was
// running it is restarted before Reset returns.
func (b *Backend) Reset(ctx context.Context, scanHeight, scanTimestamp uint64) error {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()

	wasRunning := b.syncRunning
	if err := b.stopSyncLocked(); err != nil {
		return err
	}

	b.store.RemoveForkedTransactions(scanHeight)
	if b.index != nil {
		if err := b.index.DeleteFromHeight(scanHeight); err != nil {
			b.log.Printf("walletbackend: pruning transaction index: %v", err)
		}
	}

	b.sync = walletsynchronizer.New(b.node, b.store, scanHeight, scanTimestamp, b.syncConfig())
	if wasRunning {
		b.sync.Start(ctx)
		b.syncRunning = true
	}
	return nil
}

// Close performs the full shutdown sequence: stop the
// synchronizer, flush the store to the encrypted wallet file, and
// release the derived disk artifacts.
func (b *Backend) Close() error {
	if err := b.StopSync(); err != nil {
		return err
	}
	if err := b.tg.Stop(); err != nil && err != threadgroup.ErrStopped {
		return err
	}
	saveErr := b.Save()
	if b.index != nil {
		if err := b.index.Close(); err != nil && saveErr == nil {
			saveErr = err
		}
	}
	if b.cache != nil {
		if err := b.cache.Close(); err != nil && saveErr == nil {
			saveErr = err
		}
	}
	b.log.Shutdown()
	return saveErr
}

// runMaintenance is the backend's slow background loop: it refreshes
// the cached node fee and watches for a downloader that has stopped
// advancing, which is surfaced as a warning but not auto-recovered.
func (b *Backend) runMaintenance(ctx context.Context) {
	defer b.tg.Done()

	interval := time.Duration(b.cfg.NodeFeeRefreshSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	b.refreshNodeFee(ctx)

	var lastHeight uint64
	stalledTicks := 0

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.tg.StopChan():
			return
		case <-ticker.C:
		}

		b.refreshNodeFee(ctx)

		h := b.WalletHeight()
		if h == lastHeight && b.IsSyncing() {
			stalledTicks++
			if stalledTicks >= 3 {
				b.log.Severeln("walletbackend: sync height stuck at", h, "for", stalledTicks, "refresh intervals")
			}
		} else {
			stalledTicks = 0
		}
		lastHeight = h
	}
}

func (b *Backend) refreshNodeFee(ctx context.Context) {
	amount, address, err := b.node.NodeFee(ctx)
	if err != nil {
		b.log.Debugf("walletbackend: node fee query failed: %v", err)
		return
	}
	b.feeMu.Lock()
	b.nodeFeeAmt, b.nodeFeeAddr = amount, address
	b.feeMu.Unlock()
}

// NodeFee returns the most recently observed node relay fee, or (0, "")
// if the node charges none or has not answered yet.
func (b *Backend) NodeFee() (uint64, string) {
	b.feeMu.Lock()
	defer b.feeMu.Unlock()
	return b.nodeFeeAmt, b.nodeFeeAddr
}

// IsSyncing reports whether the background pipeline is running.
func (b *Backend) IsSyncing() bool {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()
	return b.syncRunning
}

// addressFor encodes the printable address for a spend key under the
// container's shared view key.
func addressFor(network walletaddr.Network, spendPub crypto.PublicKey, viewSecret crypto.SecretKey) (string, error) {
	viewPub, err := viewSecret.PublicKey()
	if err != nil {
		return "", fmt.Errorf("walletbackend: deriving public view key: %w", err)
	}
	return network.Encode(walletaddr.Address{SpendKey: spendPub, ViewKey: viewPub}), nil
}
