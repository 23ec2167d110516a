package walletsynchronizer

import (
	"github.com/kryptokrona/kryptokrona-sub002/node"
	"github.com/kryptokrona/kryptokrona-sub002/subwallets"
)

// runScanner is the pipeline's consumer half: it pops blocks off
// the queue and processes them one at a time, implementing the
// Idle -> Fetching -> Processing -> Commit(status update) -> Idle state
// machine.
func (s *Synchronizer) runScanner(stop <-chan struct{}) {
	release, ok := s.addWorker()
	if !ok {
		return
	}
	defer release()

	for {
		s.setState(StateIdle)
		select {
		case <-stop:
			return
		default:
		}

		block, ok := s.queue.pop()
		if !ok {
			return
		}

		s.setState(StateFetching)
		s.processBlock(block)
	}
}

// processBlock handles one block: fork
// check, coinbase scan, per-transaction scan, and commit. The block's
// hash is recorded on scannerStatus only after every derived transaction
// has been committed to the store, never before.
func (s *Synchronizer) processBlock(block node.WalletBlock) {
	s.setState(StateProcessing)

	s.statusMu.Lock()
	scannerHeight := s.scannerStatus.LastKnownBlockHeight()
	hadPrior := s.scannedAny
	s.scannedAny = true
	s.statusMu.Unlock()

	if hadPrior && scannerHeight >= block.Height {
		s.invalidateTransactions(block.Height)
	}

	var committed []subwallets.ConfirmedTransaction

	if block.CoinbaseTransaction != nil {
		if tx, ok := s.scanAndBuildTransaction(block.Height, block.Timestamp, *block.CoinbaseTransaction, true); ok {
			committed = append(committed, tx)
		}
	}
	for _, wt := range block.Transactions {
		if tx, ok := s.scanAndBuildTransaction(block.Height, block.Timestamp, wt, false); ok {
			committed = append(committed, tx)
		}
	}

	s.setState(StateCommit)
	for _, tx := range committed {
		s.store.ConfirmTransaction(tx)
	}

	s.statusMu.Lock()
	s.scannerStatus.StoreBlockHash(block.Height, block.Hash)
	s.statusMu.Unlock()
}
