// Package syncstatus implements SynchronizationStatus: a rolling window of the
// last 100 scanned block hashes plus a sparse deque of checkpoint hashes
// at increasing stride, used both to tell a node where to resume
// streaming blocks from and to detect that the chain has forked under
// us.
package syncstatus

import (
	"encoding/json"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
)

// recentWindowSize is the number of most-recent block hashes kept at
// full density.
const recentWindowSize = 100

// entry is one scanned block's identity.
type entry struct {
	height uint64
	hash   crypto.Hash
}

// Status tracks everything WalletSynchronizer needs to ask a node where
// to resume from, and to recognize a fork. The zero
// value is a valid, empty status.
type Status struct {
	// recent holds the last recentWindowSize scanned blocks, in
	// ascending-height order, dense (every height represented).
	recent []entry

	// checkpoints is the sparse deque: hashes at exponentially
	// increasing stride (1, 1, 1, 2, 4, 8, ...), the stride set by how
	// many checkpoints are already recorded, counted forward from the
	// first stored block. The deque is dense at its oldest end and
	// sparse toward the newest blocks, which the recent window covers
	// at full density.
	checkpoints []entry

	// strideIndex counts the blocks stored since the last checkpoint was
	// appended, so StoreBlockHash can replicate the 1,1,1,2,4,8, ...
	// progression without storing it explicitly.
	strideIndex int

	lastKnownBlockHeight uint64

	// startHeight/startTimestamp are the sync origin this status was
	// created with: whichever is non-zero
	// tells GetBlocks where to resume from before any checkpoint has
	// been recorded.
	startHeight    uint64
	startTimestamp uint64
}

// New returns an empty Status, seeded with the starting height and
// timestamp a freshly created, imported, or reset subwallet should begin
// scanning from. Exactly one of startHeight/startTimestamp
// is expected to be non-zero, matching SubWallets.MinSyncStart's
// contract.
func New(startHeight, startTimestamp uint64) *Status {
	return &Status{lastKnownBlockHeight: startHeight, startHeight: startHeight, startTimestamp: startTimestamp}
}

// StartHeight and StartTimestamp return the sync origin, for use when no
// checkpoint has been recorded yet.
func (s *Status) StartHeight() uint64    { return s.startHeight }
func (s *Status) StartTimestamp() uint64 { return s.startTimestamp }

// LastKnownBlockHeight returns the height of the most recently stored
// block.
func (s *Status) LastKnownBlockHeight() uint64 { return s.lastKnownBlockHeight }

// StoreBlockHash records a newly scanned block's hash and height,
// maintaining both the dense recent window and the sparse checkpoint
// deque. Heights must be stored in
// strictly ascending order; this mirrors the downloader's own ordering
// guarantee rather than re-validating it, since a caller
// that violates this ordering has already broken a stronger invariant
// upstream.
func (s *Status) StoreBlockHash(height uint64, hash crypto.Hash) {
	e := entry{height: height, hash: hash}

	s.recent = append(s.recent, e)
	if len(s.recent) > recentWindowSize {
		s.recent = s.recent[len(s.recent)-recentWindowSize:]
	}

	s.appendCheckpoint(e)

	if height > s.lastKnownBlockHeight {
		s.lastKnownBlockHeight = height
	}
}

// appendCheckpoint maintains the sparse deque at stride 1, 1, 1, 2, 4,
// 8, ...: checkpoint n is taken checkpointStride(n) blocks after
// checkpoint n-1, so the first three stored blocks are all kept and the
// gap then doubles with every further checkpoint. A handful of hashes
// span a history orders of magnitude longer; the gaps widen toward the
// newest blocks, and recorded checkpoints are never thinned out.
func (s *Status) appendCheckpoint(e entry) {
	stride := checkpointStride(len(s.checkpoints))
	s.strideIndex++
	if s.strideIndex < stride {
		return
	}
	s.strideIndex = 0
	s.checkpoints = append(s.checkpoints, e)
}

// checkpointStride returns the spacing for the n-th checkpoint slot:
// 1, 1, 1, 2, 4, 8, 16, ... — the first three checkpoints are kept dense,
// then the stride doubles each slot.
func checkpointStride(n int) int {
	if n < 3 {
		return 1
	}
	stride := 1
	for i := 0; i < n-2; i++ {
		stride *= 2
	}
	return stride
}

// GetBlockHashCheckpoints returns the checkpoint hashes the node should
// be given to locate a common ancestor, newest first.
func (s *Status) GetBlockHashCheckpoints() []crypto.Hash {
	out := make([]crypto.Hash, 0, len(s.recent)+len(s.checkpoints))
	for i := len(s.recent) - 1; i >= 0; i-- {
		out = append(out, s.recent[i].hash)
	}
	for i := len(s.checkpoints) - 1; i >= 0; i-- {
		out = append(out, s.checkpoints[i].hash)
	}
	return out
}

// HeightHash pairs a recorded checkpoint hash with its height, for
// callers that must
// hand a node a height alongside each checkpoint hash.
type HeightHash struct {
	Height uint64
	Hash   crypto.Hash
}

// CheckpointPairs returns the same checkpoint hashes as
// GetBlockHashCheckpoints, newest first, each paired with its height.
func (s *Status) CheckpointPairs() []HeightHash {
	out := make([]HeightHash, 0, len(s.recent)+len(s.checkpoints))
	for i := len(s.recent) - 1; i >= 0; i-- {
		out = append(out, HeightHash{Height: s.recent[i].height, Hash: s.recent[i].hash})
	}
	for i := len(s.checkpoints) - 1; i >= 0; i-- {
		out = append(out, HeightHash{Height: s.checkpoints[i].height, Hash: s.checkpoints[i].hash})
	}
	return out
}

// HaveBlockAtHeight reports whether the recent window or checkpoint
// deque has a recorded hash at exactly this height, and returns it.
func (s *Status) HaveBlockAtHeight(height uint64) (crypto.Hash, bool) {
	for _, e := range s.recent {
		if e.height == height {
			return e.hash, true
		}
	}
	for _, e := range s.checkpoints {
		if e.height == height {
			return e.hash, true
		}
	}
	return crypto.Hash{}, false
}

// RewindTo drops every recorded hash at or above forkHeight, used after
// fork detection rewinds the rest of the wallet's state.
// lastKnownBlockHeight is rewound to
// one below forkHeight so the next StoreBlockHash call resumes the
// monotonic invariant cleanly.
func (s *Status) RewindTo(forkHeight uint64) {
	s.recent = truncateAtOrAbove(s.recent, forkHeight)
	s.checkpoints = truncateAtOrAbove(s.checkpoints, forkHeight)
	if forkHeight == 0 {
		s.lastKnownBlockHeight = 0
		return
	}
	s.lastKnownBlockHeight = forkHeight - 1
}

// jsonEntry and jsonStatus are Status's on-disk shape:
// Status keeps its fields unexported so every mutation goes through its
// own invariant-preserving methods, so persistence goes through this
// separate exported mirror rather than exporting the fields themselves.
type jsonEntry struct {
	Height uint64      `json:"height"`
	Hash   crypto.Hash `json:"hash"`
}

type jsonStatus struct {
	Recent               []jsonEntry `json:"recent"`
	Checkpoints          []jsonEntry `json:"checkpoints"`
	StrideIndex          int         `json:"strideIndex"`
	LastKnownBlockHeight uint64      `json:"lastKnownBlockHeight"`
	StartHeight          uint64      `json:"startHeight"`
	StartTimestamp       uint64      `json:"startTimestamp"`
}

func toJSONEntries(entries []entry) []jsonEntry {
	out := make([]jsonEntry, len(entries))
	for i, e := range entries {
		out[i] = jsonEntry{Height: e.height, Hash: e.hash}
	}
	return out
}

func fromJSONEntries(entries []jsonEntry) []entry {
	out := make([]entry, len(entries))
	for i, e := range entries {
		out[i] = entry{height: e.Height, hash: e.Hash}
	}
	return out
}

// MarshalJSON persists Status for the wallet file.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonStatus{
		Recent:               toJSONEntries(s.recent),
		Checkpoints:          toJSONEntries(s.checkpoints),
		StrideIndex:          s.strideIndex,
		LastKnownBlockHeight: s.lastKnownBlockHeight,
		StartHeight:          s.startHeight,
		StartTimestamp:       s.startTimestamp,
	})
}

// UnmarshalJSON restores a Status saved by MarshalJSON.
func (s *Status) UnmarshalJSON(b []byte) error {
	var js jsonStatus
	if err := json.Unmarshal(b, &js); err != nil {
		return err
	}
	s.recent = fromJSONEntries(js.Recent)
	s.checkpoints = fromJSONEntries(js.Checkpoints)
	s.strideIndex = js.StrideIndex
	s.lastKnownBlockHeight = js.LastKnownBlockHeight
	s.startHeight = js.StartHeight
	s.startTimestamp = js.StartTimestamp
	return nil
}

func truncateAtOrAbove(entries []entry, height uint64) []entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.height >= height {
			continue
		}
		out = append(out, e)
	}
	return out
}
