package walletsynchronizer

import (
	"context"
	"time"

	"github.com/kryptokrona/kryptokrona-sub002/node"
)

// runDownloader is the pipeline's producer half: it repeatedly asks
// the node for more blocks and hands them to the scanner over the
// bounded queue, backing off briefly on an empty result (at the tip)
// and on a transport failure.
func (s *Synchronizer) runDownloader(ctx context.Context, stop <-chan struct{}) {
	release, ok := s.addWorker()
	if !ok {
		return
	}
	defer release()

	for {
		select {
		case <-stop:
			return
		default:
		}

		checkpoints, startHeight, startTimestamp := s.downloaderRequestParams()

		blocks, err := s.node.GetBlocks(ctx, checkpoints, startHeight, startTimestamp)
		if err != nil {
			s.log.Printf("walletsynchronizer: downloader: GetBlocks failed: %v", err)
			if !s.sleep(stop, transportFailureSleep, nil) {
				return
			}
			continue
		}

		if len(blocks) == 0 {
			if !s.sleep(stop, tipReachedSleep, s.tipNotify) {
				return
			}
			continue
		}

		for _, b := range blocks {
			if !s.queue.push(b) {
				return
			}
			s.statusMu.Lock()
			s.downloaderStatus.StoreBlockHash(b.Height, b.Hash)
			s.statusMu.Unlock()
		}
	}
}

func (s *Synchronizer) downloaderRequestParams() ([]node.Checkpoint, uint64, uint64) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	pairs := s.downloaderStatus.CheckpointPairs()
	checkpoints := make([]node.Checkpoint, len(pairs))
	for i, p := range pairs {
		checkpoints[i] = node.Checkpoint{Height: p.Height, Hash: p.Hash}
	}
	return checkpoints, s.downloaderStatus.StartHeight(), s.downloaderStatus.StartTimestamp()
}

// sleep waits for d, returning early (true) if wake fires, or returns
// false if stop fires first. A nil wake channel is fine: a receive on a
// nil channel simply never fires.
func (s *Synchronizer) sleep(stop <-chan struct{}, d time.Duration, wake <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	case <-wake:
		return true
	}
}
