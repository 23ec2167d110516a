// Package walletsynchronizer implements the wallet's chain-scanning
// pipeline: a downloader and a scanner, joined by a bounded queue, that
// stream blocks from a Node and mutate a SubWallets store on detected
// activity. Shutdown is cooperative via
// github.com/NebulousLabs/threadgroup: stopping the synchronizer joins
// both goroutines before returning.
package walletsynchronizer

import (
	"context"
	"sync"
	"time"

	"github.com/NebulousLabs/threadgroup"
	"github.com/kryptokrona/kryptokrona-sub002/node"
	"github.com/kryptokrona/kryptokrona-sub002/subwallets"
	"github.com/kryptokrona/kryptokrona-sub002/syncstatus"
)

// tipReachedSleep and transportFailureSleep are the downloader's two
// backoff intervals.
const (
	tipReachedSleep       = 1 * time.Second
	transportFailureSleep = 500 * time.Millisecond
)

// Logger is the narrow logging capability the synchronizer needs;
// *persist.Logger satisfies it, and so does the standard library's
// *log.Logger via a thin adapter, keeping this package decoupled from
// persist.
type Logger interface {
	Printf(format string, v ...interface{})
	Debugf(format string, v ...interface{})
}

// nopLogger discards everything; used when Config.Logger is nil.
type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// State is the scanner's per-tick state machine:
// Idle -> Fetching -> Processing -> Commit -> Idle.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateProcessing
	StateCommit
)

// Config bundles everything a Synchronizer needs beyond its Node and
// store, all decided once at WalletBackend construction time.
type Config struct {
	// QueueDepth bounds the block queue between downloader and scanner.
	QueueDepth int

	// TipNotifications is an optional channel (typically
	// httpnode.TipNotifier.Notifications()) the downloader selects
	// on alongside its tip-reached sleep, to wake early. A nil channel
	// just means the downloader always sleeps out tipReachedSleep.
	TipNotifications <-chan struct{}

	Logger Logger
}

// Synchronizer runs the downloader and scanner loops against one Node
// and one SubWallets store.
type Synchronizer struct {
	node  node.Node
	store *subwallets.SubWallets
	queue *blockQueue
	tg    threadgroup.ThreadGroup
	log   Logger

	tipNotify <-chan struct{}

	// statusMu guards both statuses: the scanner rewinds
	// downloaderStatus on fork detection while the downloader reads it
	// concurrently to build its next checkpoint request.
	statusMu sync.Mutex

	// downloaderStatus is updated the instant a block is handed to the
	// queue, so the downloader never re-requests blocks the scanner
	// simply hasn't gotten to yet.
	downloaderStatus *syncstatus.Status

	// scannerStatus is updated only after a block's transactions are
	// committed to the store, so a crash mid-scan replays the block on
	// restart rather than silently skipping it.
	scannerStatus *syncstatus.Status

	// scannedAny guards the fork check from firing on the very first
	// block a fresh synchronizer processes, when scannerStatus's height
	// still equals its sync origin rather than a genuinely-scanned block.
	scannedAny bool

	stateMu sync.Mutex
	state   State
}

// New creates a Synchronizer. startHeight/startTimestamp seed both
// statuses identically; callers normally pass subwallets.SubWallets's
// MinSyncStart() result here.
func New(n node.Node, store *subwallets.SubWallets, startHeight, startTimestamp uint64, cfg Config) *Synchronizer {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 16
	}
	return &Synchronizer{
		node:             n,
		store:            store,
		queue:            newBlockQueue(cfg.QueueDepth),
		log:              logger,
		tipNotify:        cfg.TipNotifications,
		downloaderStatus: syncstatus.New(startHeight, startTimestamp),
		scannerStatus:    syncstatus.New(startHeight, startTimestamp),
	}
}

// NewFromStatus restores a Synchronizer from a persisted status,
// used by WalletBackend when reopening a saved wallet.
func NewFromStatus(n node.Node, store *subwallets.SubWallets, status *syncstatus.Status, cfg Config) *Synchronizer {
	s := New(n, store, status.StartHeight(), status.StartTimestamp(), cfg)
	s.downloaderStatus = status
	// The scanner status is restored to the same point: the persisted
	// status is the scanner's committed one (see Status), so blocks the
	// downloader had queued but the scanner had not processed are
	// requested again.
	restored := *status
	s.scannerStatus = &restored
	return s
}

// Height returns the scanner's last-committed height — the height up to
// which the store's state is known-consistent.
func (s *Synchronizer) Height() uint64 {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.scannerStatus.LastKnownBlockHeight()
}

// DownloaderHeight returns the downloader's own height, which may run
// ahead of Height() while the scanner drains a full queue.
func (s *Synchronizer) DownloaderHeight() uint64 {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.downloaderStatus.LastKnownBlockHeight()
}

// Status returns the persisted status the scanner has committed through,
// for WalletBackend to serialize on save.
func (s *Synchronizer) Status() syncstatus.Status {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return *s.scannerStatus
}

// State reports the scanner's current position in its per-tick state
// machine, for diagnostics.
func (s *Synchronizer) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Synchronizer) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// Start launches the downloader and scanner as background tasks and
// returns immediately. Stop makes both loops exit. ctx is only passed to
// the node's GetBlocks calls: cancelling it makes those calls fail, and
// the downloader keeps retrying until Stop.
func (s *Synchronizer) Start(ctx context.Context) {
	stop := make(chan struct{})
	s.tg.OnStop(func() error {
		close(stop)
		s.queue.close()
		return nil
	})

	go s.runDownloader(ctx, stop)
	go s.runScanner(stop)
}

// Stop joins both background tasks before returning.
func (s *Synchronizer) Stop() error {
	return s.tg.Stop()
}

func (s *Synchronizer) addWorker() (release func(), ok bool) {
	if err := s.tg.Add(); err != nil {
		return func() {}, false
	}
	return s.tg.Done, true
}
